package tourvisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// HotelTypes возвращает активные типы размещения для страны.
//
// Endpoint отдаёт массив, но в старых версиях API он был обёрнут в {"data": [...]},
// поэтому поддерживаются оба варианта.
func (c *Client) HotelTypes(ctx context.Context, countryID int) ([]HotelType, error) {
	if countryID <= 0 {
		return nil, fmt.Errorf("country_id must be positive, got %d", countryID)
	}

	params := url.Values{}
	params.Set("active", "true")
	params.Set("sortProp", "order")
	params.Set("countryId", strconv.Itoa(countryID))

	body, err := c.get(ctx, "hotel_actypes", c.cfg.APIURL+"/hotel-actypes/all", params)
	if err != nil {
		return nil, fmt.Errorf("hotel types: %w", err)
	}

	var types []HotelType
	if err := json.Unmarshal(body, &types); err == nil {
		return types, nil
	}

	var wrapped struct {
		Data []HotelType `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("hotel types: unmarshal error: %w", err)
	}
	return wrapped.Data, nil
}

// HotelsByCountry возвращает все отели страны из справочника allhotel.
func (c *Client) HotelsByCountry(ctx context.Context, countryID int) ([]Hotel, error) {
	if countryID <= 0 {
		return nil, fmt.Errorf("country_id must be positive, got %d", countryID)
	}

	params := url.Values{}
	params.Set("type", "allhotel")
	params.Set("hotcountry", strconv.Itoa(countryID))
	params.Set("format", "json")

	body, err := c.get(ctx, "listdev_hotels", c.cfg.BaseURL+"/xml/listdev.php", params)
	if err != nil {
		return nil, fmt.Errorf("hotels by country: %w", err)
	}

	var resp hotelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("hotels by country: unmarshal error: %w", err)
	}

	return resp.Lists.Hotels.Hotel, nil
}
