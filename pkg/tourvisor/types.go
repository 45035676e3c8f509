// Модели данных Tourvisor API.

package tourvisor

import (
	"encoding/json"

	"github.com/ilkoid/eto-travel-mcp/pkg/flexjson"
)

// HotelType — тип размещения (отель, апартаменты, вилла...).
type HotelType struct {
	ID    flexjson.Int `json:"id"`
	Name  string       `json:"name"`
	Order flexjson.Int `json:"order,omitempty"`
}

// Hotel — отель из справочника allhotel.
//
// Типизированные поля нужны для кэша названий, Raw — для ответа ассистенту
// (Tourvisor отдаёт много полей, которые мы не хотим перечислять вручную).
type Hotel struct {
	ID         flexjson.Int   `json:"id"`
	Name       string         `json:"name"`
	Stars      flexjson.Int   `json:"stars"`
	Rating     flexjson.Float `json:"rating"`
	RegionID   flexjson.Int   `json:"region"`
	RegionName string         `json:"regionname"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON заполняет и типизированные поля, и Raw.
func (h *Hotel) UnmarshalJSON(data []byte) error {
	type alias Hotel
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = Hotel(typed)
	h.Raw = raw
	return nil
}

// hotelsResponse — обертка listdev.php?type=allhotel.
type hotelsResponse struct {
	Lists struct {
		Hotels struct {
			Hotel []Hotel `json:"hotel"`
		} `json:"hotels"`
	} `json:"lists"`
}

// Tour — вариант тура внутри отеля в результатах поиска.
type Tour struct {
	ID           string         `json:"tourid,omitempty"`
	OperatorCode flexjson.Int   `json:"operatorcode,omitempty"`
	OperatorName string         `json:"operatorname,omitempty"`
	FlyDate      string         `json:"flydate,omitempty"`
	Nights       flexjson.Int   `json:"nights,omitempty"`
	Placement    string         `json:"placement,omitempty"`
	Adults       flexjson.Int   `json:"adults,omitempty"`
	Children     flexjson.Int   `json:"child,omitempty"`
	Meal         string         `json:"meal,omitempty"`
	MealRussian  string         `json:"mealrussian,omitempty"`
	Room         string         `json:"room,omitempty"`
	Price        flexjson.Float `json:"price,omitempty"`
	Currency     string         `json:"currency,omitempty"`
}

// SearchHotel — отель в блоке результатов поиска.
type SearchHotel struct {
	ID    flexjson.Int   `json:"id"`
	Name  string         `json:"name,omitempty"`
	Price flexjson.Float `json:"price"`
	Stars flexjson.Int   `json:"stars,omitempty"`
	Tours []Tour         `json:"tour"`
}

// SearchBlock — порция результатов от одного оператора.
type SearchBlock struct {
	ID     flexjson.Int  `json:"id"`
	Stars  flexjson.Int  `json:"stars,omitempty"`
	Hotels []SearchHotel `json:"hotel"`
}

// SearchStatus — прогресс поиска.
type SearchStatus struct {
	Finished flexjson.Bool `json:"finished"`
	Progress flexjson.Int  `json:"progress"`
}

// SearchPage — один ответ modresult.php.
type SearchPage struct {
	Blocks []SearchBlock `json:"block"`
	Status SearchStatus  `json:"status"`
	Final  flexjson.Bool `json:"final"`
}

// Done сообщает, что поиск завершён и опрашивать дальше не нужно.
func (p *SearchPage) Done() bool {
	return bool(p.Status.Finished) || bool(p.Final) || p.Status.Progress >= 100
}

// SearchResult — все блоки, собранные за время long polling.
type SearchResult struct {
	RequestID string
	Blocks    []SearchBlock
	Finished  bool // false — исчерпан бюджет опросов, результаты частичные
	Polls     int
}
