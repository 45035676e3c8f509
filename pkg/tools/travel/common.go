// Package travel содержит инструменты поиска туров для ассистента.
//
// Инструменты справочника (find_country, find_region, find_departure,
// get_popular_countries, load_dictionary) работают поверх dictionary.Lookup.
// Остальные (get_hotel_types, get_hotels_by_country, search_tours)
// пробрасывают запросы в Tourvisor и ужимают ответ.
package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/dictionary"
	"github.com/ilkoid/eto-travel-mcp/pkg/tourvisor"
)

// Имена инструментов.
const (
	ToolLoadDictionary   = "load_dictionary"
	ToolFindCountry      = "find_country"
	ToolFindRegion       = "find_region"
	ToolFindDeparture    = "find_departure"
	ToolPopularCountries = "get_popular_countries"
	ToolHotelTypes       = "get_hotel_types"
	ToolHotelsByCountry  = "get_hotels_by_country"
	ToolSearchTours      = "search_tours"
)

// Upstream — методы Tourvisor, нужные инструментам. Реализуется *tourvisor.Client.
type Upstream interface {
	HotelTypes(ctx context.Context, countryID int) ([]tourvisor.HotelType, error)
	HotelsByCountry(ctx context.Context, countryID int) ([]tourvisor.Hotel, error)
	SearchTours(ctx context.Context, p tourvisor.SearchParams) (*tourvisor.SearchResult, error)
	ClassifyError(err error) tourvisor.ErrorType
}

var _ Upstream = (*tourvisor.Client)(nil)

// ErrInvalidArguments — аргументы вызова не прошли проверку.
var ErrInvalidArguments = errors.New("invalid arguments")

// decodeArgs разбирает аргументы; пустая строка и {} допустимы.
func decodeArgs(argsJSON string, v any) error {
	argsJSON = strings.TrimSpace(argsJSON)
	if argsJSON == "" || argsJSON == "{}" || argsJSON == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(argsJSON), v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

func invalidArgs(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// describe возвращает описание из config.yaml, если оно задано.
func describe(cfg config.ToolConfig, fallback string) string {
	if d := strings.TrimSpace(cfg.Description); d != "" {
		return d
	}
	return fallback
}

// upstreamError дописывает к ошибке Tourvisor понятное ассистенту объяснение.
func upstreamError(api Upstream, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := api.ClassifyError(err)
	return fmt.Errorf("%s: %s (%s): %w", op, kind.HumanMessage(), kind, err)
}

// dictionaryError объясняет недоступность справочника.
func dictionaryError(err error) error {
	if errors.Is(err, dictionary.ErrDictionaryUnavailable) {
		return fmt.Errorf("справочник стран и регионов недоступен, повторите позже: %w", err)
	}
	return err
}
