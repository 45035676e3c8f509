package app

import (
	"fmt"

	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools/travel"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

// ToolNames — все инструменты сервера в порядке регистрации.
var ToolNames = []string{
	travel.ToolLoadDictionary,
	travel.ToolFindCountry,
	travel.ToolFindRegion,
	travel.ToolFindDeparture,
	travel.ToolPopularCountries,
	travel.ToolHotelTypes,
	travel.ToolHotelsByCountry,
	travel.ToolSearchTours,
}

// SetupTools регистрирует включённые в конфиге инструменты.
//
// Инструмент без секции в tools: считается включённым.
func SetupTools(c *Components) error {
	var registered []string

	for _, name := range ToolNames {
		ok, err := registerTool(name, c)
		if err != nil {
			return err
		}
		if ok {
			registered = append(registered, name)
		}
	}

	utils.Info("Tools registered", "count", len(registered), "tools", registered)
	return nil
}

// registerTool создаёт инструмент по имени и кладёт в реестр.
//
// Возвращает false, если инструмент выключен в конфиге.
func registerTool(name string, c *Components) (bool, error) {
	toolCfg := c.Config.Tool(name)
	if !toolCfg.Enabled {
		utils.Debug("Tool disabled", "name", name)
		return false, nil
	}

	var tool tools.Tool

	switch name {
	// Справочник
	case travel.ToolLoadDictionary:
		tool = travel.NewLoadDictionaryTool(c.Loader, toolCfg)
	case travel.ToolFindCountry:
		tool = travel.NewFindCountryTool(c.Lookup, toolCfg)
	case travel.ToolFindRegion:
		tool = travel.NewFindRegionTool(c.Lookup, toolCfg)
	case travel.ToolFindDeparture:
		tool = travel.NewFindDepartureTool(c.Lookup, toolCfg)
	case travel.ToolPopularCountries:
		tool = travel.NewPopularCountriesTool(c.Lookup, toolCfg)

	// Tourvisor
	case travel.ToolHotelTypes:
		tool = travel.NewHotelTypesTool(c.Tourvisor, toolCfg)
	case travel.ToolHotelsByCountry:
		tool = travel.NewHotelsByCountryTool(c.Tourvisor, c.Hotels, toolCfg)
	case travel.ToolSearchTours:
		tool = travel.NewSearchToursTool(c.Tourvisor, c.Lookup, c.Hotels,
			c.Config.Tourvisor.DefaultDeparture, toolCfg)

	default:
		return false, fmt.Errorf("unknown tool '%s'", name)
	}

	if err := c.Registry.Register(tool); err != nil {
		return false, fmt.Errorf("failed to register tool '%s': %w", name, err)
	}

	utils.Debug("Tool registered", "name", name)
	return true, nil
}
