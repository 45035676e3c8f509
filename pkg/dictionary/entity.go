// Package dictionary держит справочник стран, регионов и городов вылета
// и отвечает на нечеткие запросы по нему.
//
// Компоненты (снизу вверх):
//   - Store — текущий снимок справочника, атомарная замена
//   - Loader — загрузка снимка из кэша или upstream, single-flight
//   - Matcher — ранжирование сущностей по свободному тексту
//   - Lookup — find_country / find_region / find_departure / популярные страны
//
// Справочник небольшой (сотни-тысячи записей) и целиком живёт в памяти.
package dictionary

import (
	"fmt"
)

// Kind — тип сущности справочника.
type Kind int

const (
	KindCountry Kind = iota + 1
	KindRegion
	KindDeparture
)

// String возвращает строковое представление типа.
func (k Kind) String() string {
	switch k {
	case KindCountry:
		return "country"
	case KindRegion:
		return "region"
	case KindDeparture:
		return "departure"
	default:
		return "unknown"
	}
}

// MarshalText нужен, чтобы Kind попадал в JSON ответы строкой.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindCountry || k > KindDeparture {
		return nil, fmt.Errorf("unknown entity kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// NamedEntity — страна, регион или город вылета.
//
// Неизменяема после загрузки: при обновлении справочника заменяется
// целиком вместе со снимком.
type NamedEntity struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Kind             Kind   `json:"kind"`
	ParentID         *int   `json:"parent_id,omitempty"` // Регион → страна
	Popular          bool   `json:"popular"`
	HasDirectFlights bool   `json:"has_direct_flights"`
}
