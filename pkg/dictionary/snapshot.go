package dictionary

import (
	"fmt"
	"slices"
	"time"
)

// Источники снимка.
const (
	SourceAPI  = "api"
	SourceFile = "file"
	SourceS3   = "s3"
)

// Stats — размеры разделов снимка.
type Stats struct {
	Countries  int `json:"countries_count"`
	Regions    int `json:"regions_count"`
	Departures int `json:"departures_count"`
}

// Snapshot — неизменяемый срез справочника на момент загрузки.
//
// Разделы отсортированы по id. Инвариант: ParentID каждого региона
// либо nil, либо ссылается на страну этого же снимка.
// Методы возвращают копии, так что снимок можно безопасно
// разделять между горутинами.
type Snapshot struct {
	countries  []NamedEntity
	regions    []NamedEntity
	departures []NamedEntity

	countryIdx   map[int]int
	regionIdx    map[int]int
	departureIdx map[int]int

	source   string
	loadedAt time.Time
}

// NewSnapshot собирает снимок и проверяет его инварианты.
func NewSnapshot(countries, regions, departures []NamedEntity) (*Snapshot, error) {
	s := &Snapshot{
		countries:  sortedByID(countries),
		regions:    sortedByID(regions),
		departures: sortedByID(departures),
	}

	var err error
	if s.countryIdx, err = indexByID(s.countries, KindCountry); err != nil {
		return nil, err
	}
	if s.regionIdx, err = indexByID(s.regions, KindRegion); err != nil {
		return nil, err
	}
	if s.departureIdx, err = indexByID(s.departures, KindDeparture); err != nil {
		return nil, err
	}

	for _, r := range s.regions {
		if r.ParentID == nil {
			continue
		}
		if _, ok := s.countryIdx[*r.ParentID]; !ok {
			return nil, fmt.Errorf("%w: region %d references unknown country %d", ErrSchema, r.ID, *r.ParentID)
		}
	}

	return s, nil
}

func sortedByID(in []NamedEntity) []NamedEntity {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b NamedEntity) int { return a.ID - b.ID })
	return out
}

func indexByID(entities []NamedEntity, kind Kind) (map[int]int, error) {
	idx := make(map[int]int, len(entities))
	for i, e := range entities {
		if e.Kind != kind {
			return nil, fmt.Errorf("%w: entity %d has kind %s, want %s", ErrSchema, e.ID, e.Kind, kind)
		}
		if _, dup := idx[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate %s id %d", ErrSchema, kind, e.ID)
		}
		idx[e.ID] = i
	}
	return idx, nil
}

// Countries возвращает все страны по возрастанию id.
func (s *Snapshot) Countries() []NamedEntity { return slices.Clone(s.countries) }

// Regions возвращает все регионы по возрастанию id.
func (s *Snapshot) Regions() []NamedEntity { return slices.Clone(s.regions) }

// Departures возвращает все города вылета по возрастанию id.
func (s *Snapshot) Departures() []NamedEntity { return slices.Clone(s.departures) }

// RegionsOf возвращает регионы страны countryID.
func (s *Snapshot) RegionsOf(countryID int) []NamedEntity {
	var out []NamedEntity
	for _, r := range s.regions {
		if r.ParentID != nil && *r.ParentID == countryID {
			out = append(out, r)
		}
	}
	return out
}

// Country ищет страну по id.
func (s *Snapshot) Country(id int) (NamedEntity, bool) {
	return lookupID(s.countries, s.countryIdx, id)
}

// Region ищет регион по id.
func (s *Snapshot) Region(id int) (NamedEntity, bool) {
	return lookupID(s.regions, s.regionIdx, id)
}

// Departure ищет город вылета по id.
func (s *Snapshot) Departure(id int) (NamedEntity, bool) {
	return lookupID(s.departures, s.departureIdx, id)
}

func lookupID(entities []NamedEntity, idx map[int]int, id int) (NamedEntity, bool) {
	i, ok := idx[id]
	if !ok {
		return NamedEntity{}, false
	}
	return entities[i], true
}

// Stats возвращает размеры разделов.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Countries:  len(s.countries),
		Regions:    len(s.regions),
		Departures: len(s.departures),
	}
}

// Source — откуда загружен снимок: api, file или s3.
func (s *Snapshot) Source() string { return s.source }

// LoadedAt — момент установки снимка.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// withOrigin возвращает копию заголовка снимка с источником и временем.
// Разделы и индексы разделяются: они не меняются после NewSnapshot.
func (s *Snapshot) withOrigin(source string, at time.Time) *Snapshot {
	cp := *s
	cp.source = source
	cp.loadedAt = at
	return &cp
}
