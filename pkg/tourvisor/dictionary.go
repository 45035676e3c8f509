package tourvisor

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// dictionaryTypes — списки, которые нужны для справочника стран/регионов/вылетов.
const dictionaryTypes = "departure,allcountry,country,region,subregions,operator"

// flyCountry — страна, для которой listdev.php считает доступные вылеты.
// Значение взято из запроса сайта eto.travel; на состав списков не влияет.
const flyCountry = "47"

// FetchDictionary загружает сырой справочник (страны, регионы, города вылета, операторы).
//
// Возвращает тело ответа как есть: разбор и валидация — забота pkg/dictionary.
// Страны в lists.countries фильтруются по городу вылета tourvisor.default_departure.
func (c *Client) FetchDictionary(ctx context.Context) ([]byte, error) {
	departure := strconv.Itoa(c.cfg.DefaultDeparture)

	params := url.Values{}
	params.Set("type", dictionaryTypes)
	params.Set("formmode", "0")
	params.Set("cndep", departure)
	params.Set("flydeparture", departure)
	params.Set("flycountry", flyCountry)
	params.Set("format", "json")

	body, err := c.get(ctx, "listdev_dictionary", c.cfg.BaseURL+"/xml/listdev.php", params)
	if err != nil {
		return nil, fmt.Errorf("fetch dictionary: %w", err)
	}
	return body, nil
}
