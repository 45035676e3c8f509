package travel

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/dictionary"
	"github.com/ilkoid/eto-travel-mcp/pkg/flexjson"
	"github.com/ilkoid/eto-travel-mcp/pkg/hotelstore"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
	"github.com/ilkoid/eto-travel-mcp/pkg/tourvisor"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	bestToursPerHotel  = 3
)

// SearchToursTool — поиск туров с агрегацией по отелям.
type SearchToursTool struct {
	api              Upstream
	lookup           *dictionary.Lookup
	catalog          *hotelCatalog
	defaultDeparture int
	description      string
}

// NewSearchToursTool создает инструмент search_tours.
//
// defaultDeparture используется, когда не заданы ни departure_id, ни departure.
func NewSearchToursTool(api Upstream, lookup *dictionary.Lookup, store *hotelstore.Store, defaultDeparture int, cfg config.ToolConfig) *SearchToursTool {
	return &SearchToursTool{
		api:              api,
		lookup:           lookup,
		catalog:          &hotelCatalog{api: api, store: store},
		defaultDeparture: defaultDeparture,
		description:      describe(cfg, "Поиск туров по стране и датам. Страну и город вылета можно передать id или названием. Возвращает отели по возрастанию минимальной цены с лучшими вариантами туров."),
	}
}

func (t *SearchToursTool) Definition() tools.ToolDefinition {
	intArray := map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}
	return tools.ToolDefinition{
		Name:        ToolSearchTours,
		Description: t.description,
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"country_id":   map[string]any{"type": "integer", "description": "ID страны (1 - Египет, 4 - Турция)."},
				"country":      map[string]any{"type": "string", "description": "Название страны, если id неизвестен."},
				"departure_id": map[string]any{"type": "integer", "description": "ID города вылета (1 - Москва)."},
				"departure":    map[string]any{"type": "string", "description": "Название города вылета, если id неизвестен."},
				"date_from":    map[string]any{"type": "string", "description": "Дата вылета от (DD.MM.YYYY)."},
				"date_to":      map[string]any{"type": "string", "description": "Дата вылета до (DD.MM.YYYY)."},
				"nights_from":  map[string]any{"type": "integer", "description": "Ночей от (по умолчанию 7)."},
				"nights_to":    map[string]any{"type": "integer", "description": "Ночей до (по умолчанию 14)."},
				"adults":       map[string]any{"type": "integer", "description": "Взрослых (по умолчанию 2)."},
				"children":     map[string]any{"type": "integer", "description": "Детей (по умолчанию 0)."},
				"region_ids":   withDescription(intArray, "ID курортов из find_region."),
				"hotel_ids":    withDescription(intArray, "ID отелей из get_hotels_by_country."),
				"limit":        map[string]any{"type": "integer", "description": "Сколько отелей вернуть (по умолчанию 10, максимум 50)."},
			},
			"required": []string{"date_from", "date_to"},
		},
	}
}

func withDescription(schema map[string]any, desc string) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	out["description"] = desc
	return out
}

type searchArgs struct {
	CountryID   flexjson.Int   `json:"country_id"`
	Country     string         `json:"country"`
	DepartureID flexjson.Int   `json:"departure_id"`
	Departure   string         `json:"departure"`
	DateFrom    string         `json:"date_from"`
	DateTo      string         `json:"date_to"`
	NightsFrom  *flexjson.Int  `json:"nights_from"`
	NightsTo    *flexjson.Int  `json:"nights_to"`
	Adults      *flexjson.Int  `json:"adults"`
	Children    *flexjson.Int  `json:"children"`
	RegionIDs   []flexjson.Int `json:"region_ids"`
	HotelIDs    []flexjson.Int `json:"hotel_ids"`
	Limit       flexjson.Int   `json:"limit"`
}

func intOr(v *flexjson.Int, def int) int {
	if v == nil {
		return def
	}
	return int(*v)
}

func ints(in []flexjson.Int) []int {
	out := make([]int, 0, len(in))
	for _, v := range in {
		if v > 0 {
			out = append(out, int(v))
		}
	}
	return out
}

// hotelSummary — отель в ответе search_tours.
type hotelSummary struct {
	HotelID    int              `json:"hotel_id"`
	Name       string           `json:"name,omitempty"`
	Stars      int              `json:"stars,omitempty"`
	Region     string           `json:"region,omitempty"`
	MinPrice   float64          `json:"min_price"`
	ToursCount int              `json:"tours_count"`
	BestTours  []tourvisor.Tour `json:"best_tours,omitempty"`
}

type searchResponse struct {
	Success     bool           `json:"success"`
	RequestID   string         `json:"request_id"`
	Finished    bool           `json:"finished"`
	CountryID   int            `json:"country_id"`
	CountryName string         `json:"country_name,omitempty"`
	DepartureID int            `json:"departure_id"`
	HotelsFound int            `json:"hotels_found"`
	ToursTotal  int            `json:"tours_total"`
	Hotels      []hotelSummary `json:"hotels"`
	Message     string         `json:"message,omitempty"`
}

func (t *SearchToursTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args searchArgs
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}

	countryID, countryName, err := t.resolveCountry(ctx, args)
	if err != nil {
		return "", err
	}
	departureID, err := t.resolveDeparture(ctx, args)
	if err != nil {
		return "", err
	}

	params := tourvisor.SearchParams{
		CountryID:   countryID,
		DepartureID: departureID,
		DateFrom:    strings.TrimSpace(args.DateFrom),
		DateTo:      strings.TrimSpace(args.DateTo),
		NightsFrom:  intOr(args.NightsFrom, 7),
		NightsTo:    intOr(args.NightsTo, 14),
		Adults:      intOr(args.Adults, 2),
		Children:    intOr(args.Children, 0),
		RegionIDs:   ints(args.RegionIDs),
		HotelIDs:    ints(args.HotelIDs),
	}
	if err := params.Validate(); err != nil {
		return "", err
	}

	limit := int(args.Limit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	result, err := t.api.SearchTours(ctx, params)
	if err != nil {
		if errors.Is(err, tourvisor.ErrInvalidSearch) {
			return "", err
		}
		return "", upstreamError(t.api, ToolSearchTours, err)
	}

	hotels, toursTotal := aggregateHotels(result.Blocks)
	found := len(hotels)
	hotels = hotels[:min(limit, len(hotels))]
	t.enrich(ctx, countryID, hotels)

	resp := searchResponse{
		Success:     true,
		RequestID:   result.RequestID,
		Finished:    result.Finished,
		CountryID:   countryID,
		CountryName: countryName,
		DepartureID: departureID,
		HotelsFound: found,
		ToursTotal:  toursTotal,
		Hotels:      hotels,
	}
	if !result.Finished {
		resp.Message = "Поиск не успел завершиться, результаты частичные. Повторите запрос позже для полного списка."
	}
	if found == 0 {
		resp.Message = "Туры не найдены. Попробуйте расширить даты или количество ночей."
		if !result.Finished {
			resp.Message = "Поиск не успел вернуть туры. Повторите запрос позже."
		}
	}
	return marshal(resp)
}

// resolveCountry берет country_id или ищет страну по названию.
func (t *SearchToursTool) resolveCountry(ctx context.Context, args searchArgs) (int, string, error) {
	if args.CountryID > 0 {
		name := ""
		if snap := t.lookup.Loader().Store().Snapshot(); snap != nil {
			if c, ok := snap.Country(int(args.CountryID)); ok {
				name = c.Name
			}
		}
		return int(args.CountryID), name, nil
	}

	query := strings.TrimSpace(args.Country)
	if query == "" {
		return 0, "", invalidArgs("country_id or country is required")
	}
	res, err := t.lookup.FindCountry(ctx, query)
	if err != nil {
		return 0, "", dictionaryError(err)
	}
	if !res.Found {
		return 0, "", invalidArgs("страна «%s» не найдена, уточните название через find_country", query)
	}
	return res.Entity.ID, res.Entity.Name, nil
}

// resolveDeparture берет departure_id, ищет город по названию или берет город по умолчанию.
func (t *SearchToursTool) resolveDeparture(ctx context.Context, args searchArgs) (int, error) {
	if args.DepartureID > 0 {
		return int(args.DepartureID), nil
	}

	query := strings.TrimSpace(args.Departure)
	if query == "" {
		return t.defaultDeparture, nil
	}
	res, err := t.lookup.FindDeparture(ctx, query)
	if err != nil {
		return 0, dictionaryError(err)
	}
	if !res.Found {
		return 0, invalidArgs("город вылета «%s» не найден, уточните название через find_departure", query)
	}
	return res.Entity.ID, nil
}

// aggregateHotels сворачивает блоки операторов в список отелей по возрастанию цены.
//
// Один отель приходит от нескольких операторов, поэтому туры объединяются.
// Отели без цены уходят в конец.
func aggregateHotels(blocks []tourvisor.SearchBlock) ([]hotelSummary, int) {
	byID := make(map[int]*hotelSummary)
	var order []int
	total := 0

	for _, b := range blocks {
		for _, h := range b.Hotels {
			id := int(h.ID)
			if id <= 0 {
				continue
			}
			s, ok := byID[id]
			if !ok {
				s = &hotelSummary{HotelID: id}
				byID[id] = s
				order = append(order, id)
			}
			if s.Name == "" {
				s.Name = strings.TrimSpace(h.Name)
			}
			if s.Stars == 0 {
				s.Stars = int(cmp.Or(h.Stars, b.Stars))
			}

			s.BestTours = append(s.BestTours, h.Tours...)
			s.ToursCount += len(h.Tours)
			total += len(h.Tours)

			s.MinPrice = minPositive(s.MinPrice, float64(h.Price))
			for _, tour := range h.Tours {
				s.MinPrice = minPositive(s.MinPrice, float64(tour.Price))
			}
		}
	}

	out := make([]hotelSummary, 0, len(order))
	for _, id := range order {
		s := byID[id]
		slices.SortStableFunc(s.BestTours, func(a, b tourvisor.Tour) int {
			return cmp.Compare(priceKey(float64(a.Price)), priceKey(float64(b.Price)))
		})
		if len(s.BestTours) > bestToursPerHotel {
			s.BestTours = s.BestTours[:bestToursPerHotel]
		}
		out = append(out, *s)
	}

	slices.SortFunc(out, func(a, b hotelSummary) int {
		if c := cmp.Compare(priceKey(a.MinPrice), priceKey(b.MinPrice)); c != 0 {
			return c
		}
		return cmp.Compare(a.HotelID, b.HotelID)
	})
	return out, total
}

func minPositive(cur, v float64) float64 {
	if v <= 0 {
		return cur
	}
	if cur <= 0 || v < cur {
		return v
	}
	return cur
}

// priceKey ставит нулевую (неизвестную) цену после любых известных.
func priceKey(p float64) float64 {
	if p <= 0 {
		return 1e18
	}
	return p
}

// enrich дописывает названия и курорты из кэша отелей.
func (t *SearchToursTool) enrich(ctx context.Context, countryID int, hotels []hotelSummary) {
	loaded := false
	for i := range hotels {
		h := &hotels[i]
		if h.Name != "" && h.Region != "" {
			continue
		}
		if !loaded {
			t.catalog.ensure(ctx, countryID)
			loaded = true
		}
		cached, ok := t.catalog.get(ctx, countryID, h.HotelID)
		if !ok {
			continue
		}
		h.Name = cmp.Or(h.Name, cached.Name)
		h.Region = cmp.Or(h.Region, cached.RegionName)
		h.Stars = cmp.Or(h.Stars, cached.Stars)
	}
}
