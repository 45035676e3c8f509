package travel

import (
	"context"
	"strings"
	"time"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/dictionary"
	"github.com/ilkoid/eto-travel-mcp/pkg/flexjson"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
)

// LoadDictionaryTool — загрузка (или перезагрузка) справочника.
type LoadDictionaryTool struct {
	loader      *dictionary.Loader
	description string
}

// NewLoadDictionaryTool создает инструмент load_dictionary.
func NewLoadDictionaryTool(loader *dictionary.Loader, cfg config.ToolConfig) *LoadDictionaryTool {
	return &LoadDictionaryTool{
		loader:      loader,
		description: describe(cfg, "Загрузить справочник стран, регионов и городов вылета. Вызывается автоматически при первом поиске; force_reload=true принудительно обновляет его из Tourvisor."),
	}
}

func (t *LoadDictionaryTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolLoadDictionary,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"force_reload": map[string]any{
					"type":        "boolean",
					"description": "Принудительно перезагрузить справочник из API (по умолчанию false).",
				},
			},
		},
	}
}

type loadDictionaryResponse struct {
	Success  bool             `json:"success"`
	Source   string           `json:"source"` // cache | file | s3 | api
	Stats    dictionary.Stats `json:"stats"`
	LoadedAt string           `json:"loaded_at"`
}

func (t *LoadDictionaryTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		ForceReload flexjson.Bool `json:"force_reload"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}

	var (
		snap   *dictionary.Snapshot
		source string
		err    error
	)
	switch {
	case bool(args.ForceReload):
		snap, err = t.loader.Refresh(ctx)
	case t.loader.Store().Snapshot() != nil:
		snap, source = t.loader.Store().Snapshot(), "cache"
	default:
		snap, err = t.loader.EnsureLoaded(ctx)
	}
	if err != nil {
		return "", dictionaryError(err)
	}
	if source == "" {
		source = snap.Source()
	}

	return marshal(loadDictionaryResponse{
		Success:  true,
		Source:   source,
		Stats:    snap.Stats(),
		LoadedAt: snap.LoadedAt().Format(time.RFC3339),
	})
}

// lookupResponse — ответ find_* инструментов.
type lookupResponse struct {
	Success bool `json:"success"`
	dictionary.Result
	Message string `json:"message,omitempty"`
}

func newLookupResponse(res dictionary.Result, what string) lookupResponse {
	resp := lookupResponse{Success: true, Result: res}
	if !res.Found {
		resp.Message = what + " по запросу «" + res.Query + "» не найден(а)"
		if len(res.Alternatives) > 0 {
			resp.Message += ", см. alternatives"
		}
	}
	return resp
}

func queryArg(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", invalidArgs("query is required")
	}
	return q, nil
}

// FindCountryTool — поиск страны по названию.
type FindCountryTool struct {
	lookup      *dictionary.Lookup
	description string
}

// NewFindCountryTool создает инструмент find_country.
func NewFindCountryTool(lookup *dictionary.Lookup, cfg config.ToolConfig) *FindCountryTool {
	return &FindCountryTool{
		lookup:      lookup,
		description: describe(cfg, "Найти страну по названию (нечеткий поиск, допускает опечатки). Возвращает id страны для search_tours."),
	}
}

func (t *FindCountryTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolFindCountry,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Название страны (например, 'Египет', 'турция', 'Тайланд').",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *FindCountryTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	q, err := queryArg(args.Query)
	if err != nil {
		return "", err
	}

	res, err := t.lookup.FindCountry(ctx, q)
	if err != nil {
		return "", dictionaryError(err)
	}
	return marshal(newLookupResponse(res, "Страна"))
}

// FindRegionTool — поиск курорта (региона) по названию.
type FindRegionTool struct {
	lookup      *dictionary.Lookup
	description string
}

// NewFindRegionTool создает инструмент find_region.
func NewFindRegionTool(lookup *dictionary.Lookup, cfg config.ToolConfig) *FindRegionTool {
	return &FindRegionTool{
		lookup:      lookup,
		description: describe(cfg, "Найти курорт (регион) по названию, опционально только внутри страны country_id. Возвращает id региона для region_ids в search_tours."),
	}
}

func (t *FindRegionTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolFindRegion,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Название курорта (например, 'Хургада', 'Кемер').",
				},
				"country_id": map[string]any{
					"type":        "integer",
					"description": "ID страны из find_country. Если не указан, поиск по всем странам.",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *FindRegionTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Query     string        `json:"query"`
		CountryID *flexjson.Int `json:"country_id"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	q, err := queryArg(args.Query)
	if err != nil {
		return "", err
	}

	var countryID *int
	if args.CountryID != nil && *args.CountryID > 0 {
		id := int(*args.CountryID)
		countryID = &id
	}

	res, err := t.lookup.FindRegion(ctx, q, countryID)
	if err != nil {
		return "", dictionaryError(err)
	}
	return marshal(newLookupResponse(res, "Регион"))
}

// FindDepartureTool — поиск города вылета.
type FindDepartureTool struct {
	lookup      *dictionary.Lookup
	description string
}

// NewFindDepartureTool создает инструмент find_departure.
func NewFindDepartureTool(lookup *dictionary.Lookup, cfg config.ToolConfig) *FindDepartureTool {
	return &FindDepartureTool{
		lookup:      lookup,
		description: describe(cfg, "Найти город вылета по названию. Возвращает departure_id для search_tours (1 = Москва)."),
	}
}

func (t *FindDepartureTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolFindDeparture,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Город вылета (например, 'Москва', 'Питер', 'Казань').",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *FindDepartureTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	q, err := queryArg(args.Query)
	if err != nil {
		return "", err
	}

	res, err := t.lookup.FindDeparture(ctx, q)
	if err != nil {
		return "", dictionaryError(err)
	}
	return marshal(newLookupResponse(res, "Город вылета"))
}

// PopularCountriesTool — список популярных направлений.
type PopularCountriesTool struct {
	lookup      *dictionary.Lookup
	description string
}

// NewPopularCountriesTool создает инструмент get_popular_countries.
func NewPopularCountriesTool(lookup *dictionary.Lookup, cfg config.ToolConfig) *PopularCountriesTool {
	return &PopularCountriesTool{
		lookup:      lookup,
		description: describe(cfg, "Получить список популярных стран (упорядочен по id)."),
	}
}

func (t *PopularCountriesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ToolPopularCountries,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (t *PopularCountriesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	countries, err := t.lookup.PopularCountries(ctx)
	if err != nil {
		return "", dictionaryError(err)
	}
	if countries == nil {
		countries = []dictionary.NamedEntity{}
	}

	return marshal(struct {
		Success      bool                     `json:"success"`
		PopularCount int                      `json:"popular_count"`
		Countries    []dictionary.NamedEntity `json:"countries"`
	}{true, len(countries), countries})
}
