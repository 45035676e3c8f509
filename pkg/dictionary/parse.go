package dictionary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ilkoid/eto-travel-mcp/pkg/flexjson"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

// rawEntity — запись справочника в том виде, как её отдаёт listdev.php.
type rawEntity struct {
	ID      flexjson.Int  `json:"id"`
	Name    string        `json:"name"`
	Country flexjson.Int  `json:"country"` // Только у регионов
	Popular flexjson.Bool `json:"popular"`
}

type rawPayload struct {
	Lists struct {
		AllCountry struct {
			Country []rawEntity `json:"country"`
		} `json:"allcountry"`
		Countries struct {
			Country []rawEntity `json:"country"`
		} `json:"countries"`
		Regions struct {
			Region []rawEntity `json:"region"`
		} `json:"regions"`
		Departures struct {
			Departure []rawEntity `json:"departure"`
		} `json:"departures"`
	} `json:"lists"`
}

// Parse превращает сырой payload справочника в снимок.
//
// lists.allcountry — все страны, lists.countries — страны с вылетом из
// города по умолчанию (отсюда HasDirectFlights). Запись без id или
// названия делает весь payload невалидным. Регион, ссылающийся на
// несуществующую страну, пропускается с предупреждением в логе.
func Parse(raw []byte) (*Snapshot, error) {
	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	lists := p.Lists

	allCountries := lists.AllCountry.Country
	if len(allCountries) == 0 {
		allCountries = lists.Countries.Country
	}
	if len(allCountries) == 0 {
		return nil, fmt.Errorf("%w: no countries in payload", ErrSchema)
	}

	direct := make(map[int]bool, len(lists.Countries.Country))
	for _, c := range lists.Countries.Country {
		direct[int(c.ID)] = true
	}

	countries := make([]NamedEntity, 0, len(allCountries))
	countryIDs := make(map[int]bool, len(allCountries))
	for i, rc := range allCountries {
		e, err := rc.entity(KindCountry, i)
		if err != nil {
			return nil, err
		}
		if countryIDs[e.ID] {
			utils.Warn("Duplicate country in dictionary, skipped", "id", e.ID, "name", e.Name)
			continue
		}
		countryIDs[e.ID] = true
		e.HasDirectFlights = direct[e.ID]
		countries = append(countries, e)
	}

	regions := make([]NamedEntity, 0, len(lists.Regions.Region))
	regionIDs := make(map[int]bool, len(lists.Regions.Region))
	for i, rr := range lists.Regions.Region {
		e, err := rr.entity(KindRegion, i)
		if err != nil {
			return nil, err
		}
		if regionIDs[e.ID] {
			utils.Warn("Duplicate region in dictionary, skipped", "id", e.ID, "name", e.Name)
			continue
		}
		if parent := int(rr.Country); parent > 0 {
			if !countryIDs[parent] {
				utils.Warn("Region references unknown country, skipped", "id", e.ID, "name", e.Name, "country", parent)
				continue
			}
			e.ParentID = &parent
		}
		regionIDs[e.ID] = true
		regions = append(regions, e)
	}

	departures := make([]NamedEntity, 0, len(lists.Departures.Departure))
	departureIDs := make(map[int]bool, len(lists.Departures.Departure))
	for i, rd := range lists.Departures.Departure {
		e, err := rd.entity(KindDeparture, i)
		if err != nil {
			return nil, err
		}
		if departureIDs[e.ID] {
			continue
		}
		departureIDs[e.ID] = true
		departures = append(departures, e)
	}

	return NewSnapshot(countries, regions, departures)
}

// entity проверяет обязательные поля и строит NamedEntity.
func (r rawEntity) entity(kind Kind, pos int) (NamedEntity, error) {
	name := strings.TrimSpace(r.Name)
	if r.ID <= 0 {
		return NamedEntity{}, fmt.Errorf("%w: %s #%d has no id", ErrSchema, kind, pos)
	}
	if name == "" {
		return NamedEntity{}, fmt.Errorf("%w: %s %d has no name", ErrSchema, kind, int(r.ID))
	}
	return NamedEntity{
		ID:      int(r.ID),
		Name:    name,
		Kind:    kind,
		Popular: bool(r.Popular),
	}, nil
}
