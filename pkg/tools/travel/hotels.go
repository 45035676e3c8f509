package travel

import (
	"context"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/flexjson"
	"github.com/ilkoid/eto-travel-mcp/pkg/hotelstore"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
	"github.com/ilkoid/eto-travel-mcp/pkg/tourvisor"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

const (
	defaultHotelsLimit = 100
	maxHotelsLimit     = 1000
)

// hotelCatalog держит названия отелей в hotelstore, догружая страну по требованию.
type hotelCatalog struct {
	api   Upstream
	store *hotelstore.Store // nil — кэш отключен
}

// save складывает отели страны в кэш. Ошибка только логируется.
func (c *hotelCatalog) save(ctx context.Context, countryID int, hotels []tourvisor.Hotel) {
	if c.store == nil {
		return
	}
	rows := make([]hotelstore.Hotel, 0, len(hotels))
	for _, h := range hotels {
		rows = append(rows, hotelstore.Hotel{
			CountryID:  countryID,
			ID:         int(h.ID),
			Name:       h.Name,
			Stars:      int(h.Stars),
			RegionName: h.RegionName,
		})
	}
	if err := c.store.SaveCountry(ctx, countryID, rows); err != nil {
		utils.Warn("Hotel store write failed", "country_id", countryID, "error", err)
	}
}

// ensure загружает справочник отелей страны, если его ещё нет в кэше.
func (c *hotelCatalog) ensure(ctx context.Context, countryID int) {
	if c.store == nil {
		return
	}
	has, err := c.store.HasCountry(ctx, countryID)
	if err != nil {
		utils.Warn("Hotel store read failed", "country_id", countryID, "error", err)
		return
	}
	if has {
		return
	}

	hotels, err := c.api.HotelsByCountry(ctx, countryID)
	if err != nil {
		utils.Warn("Hotel list fetch failed, names stay empty", "country_id", countryID, "error", err)
		return
	}
	c.save(ctx, countryID, hotels)
}

// get возвращает отель из кэша.
func (c *hotelCatalog) get(ctx context.Context, countryID, hotelID int) (hotelstore.Hotel, bool) {
	if c.store == nil {
		return hotelstore.Hotel{}, false
	}
	h, ok, err := c.store.Get(ctx, countryID, hotelID)
	if err != nil {
		utils.Warn("Hotel store read failed", "country_id", countryID, "hotel_id", hotelID, "error", err)
		return hotelstore.Hotel{}, false
	}
	return h, ok
}

func countryIDArg(id flexjson.Int) (int, error) {
	if id <= 0 {
		return 0, invalidArgs("country_id must be a positive integer")
	}
	return int(id), nil
}

// HotelTypesTool — типы размещения в стране.
type HotelTypesTool struct {
	api         Upstream
	description string
}

// NewHotelTypesTool создает инструмент get_hotel_types.
func NewHotelTypesTool(api Upstream, cfg config.ToolConfig) *HotelTypesTool {
	return &HotelTypesTool{
		api:         api,
		description: describe(cfg, "Получить типы размещения (отель, апартаменты, вилла...) для страны."),
	}
}

func (t *HotelTypesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolHotelTypes,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"country_id": map[string]any{
					"type":        "integer",
					"description": "ID страны (1 - Египет, 4 - Турция). Найти id можно через find_country.",
				},
			},
			"required": []string{"country_id"},
		},
	}
}

func (t *HotelTypesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		CountryID flexjson.Int `json:"country_id"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	countryID, err := countryIDArg(args.CountryID)
	if err != nil {
		return "", err
	}

	types, err := t.api.HotelTypes(ctx, countryID)
	if err != nil {
		return "", upstreamError(t.api, ToolHotelTypes, err)
	}
	if types == nil {
		types = []tourvisor.HotelType{}
	}

	return marshal(struct {
		Success    bool                  `json:"success"`
		CountryID  int                   `json:"country_id"`
		HotelTypes []tourvisor.HotelType `json:"hotel_types"`
	}{true, countryID, types})
}

// HotelsByCountryTool — список отелей страны.
//
// Полный список сохраняется в кэш названий, ассистенту уходит
// первые limit записей без пустых полей.
type HotelsByCountryTool struct {
	api         Upstream
	catalog     *hotelCatalog
	description string
}

// NewHotelsByCountryTool создает инструмент get_hotels_by_country.
func NewHotelsByCountryTool(api Upstream, store *hotelstore.Store, cfg config.ToolConfig) *HotelsByCountryTool {
	return &HotelsByCountryTool{
		api:         api,
		catalog:     &hotelCatalog{api: api, store: store},
		description: describe(cfg, "Получить список отелей страны (id, название, звездность, рейтинг, курорт)."),
	}
}

func (t *HotelsByCountryTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolHotelsByCountry,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"country_id": map[string]any{
					"type":        "integer",
					"description": "ID страны из find_country.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Сколько отелей вернуть (по умолчанию 100, максимум 1000).",
				},
			},
			"required": []string{"country_id"},
		},
	}
}

func (t *HotelsByCountryTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		CountryID flexjson.Int `json:"country_id"`
		Limit     flexjson.Int `json:"limit"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	countryID, err := countryIDArg(args.CountryID)
	if err != nil {
		return "", err
	}
	limit := int(args.Limit)
	if limit <= 0 {
		limit = defaultHotelsLimit
	}
	limit = min(limit, maxHotelsLimit)

	hotels, err := t.api.HotelsByCountry(ctx, countryID)
	if err != nil {
		return "", upstreamError(t.api, ToolHotelsByCountry, err)
	}
	t.catalog.save(ctx, countryID, hotels)

	shown := hotels[:min(limit, len(hotels))]
	raw := make([]map[string]any, 0, len(shown))
	for _, h := range shown {
		raw = append(raw, h.Raw)
	}

	return marshal(struct {
		Success     bool             `json:"success"`
		CountryID   int              `json:"country_id"`
		HotelsCount int              `json:"hotels_count"`
		Hotels      []map[string]any `json:"hotels"`
	}{true, countryID, len(hotels), utils.CompactRecords(raw)})
}
