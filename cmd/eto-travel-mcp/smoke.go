package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools/travel"
)

// smokeCall — один вызов в --test режиме.
type smokeCall struct {
	tool string
	args string
}

// smokeCalls повторяет то, что ассистент делает в начале диалога.
var smokeCalls = []smokeCall{
	{travel.ToolLoadDictionary, `{}`},
	{travel.ToolFindCountry, `{"query":"Египет"}`},
	{travel.ToolPopularCountries, `{}`},
	{travel.ToolHotelTypes, `{"country_id":1}`},
}

// runSmoke вызывает инструменты напрямую через реестр и печатает ответы.
//
// Выключенные в конфиге инструменты пропускаются. Ошибка одного вызова
// не останавливает остальные; итоговая ошибка перечисляет все упавшие.
func runSmoke(ctx context.Context, registry *tools.Registry, w io.Writer) error {
	var errs []error

	for _, call := range smokeCalls {
		fmt.Fprintf(w, "=== %s %s\n", call.tool, call.args)

		tool, err := registry.Get(call.tool)
		if err != nil {
			fmt.Fprintf(w, "skipped: %v\n\n", err)
			continue
		}

		out, err := tool.Execute(ctx, call.args)
		if err != nil {
			fmt.Fprintf(w, "ERROR: %v\n\n", err)
			errs = append(errs, fmt.Errorf("%s: %w", call.tool, err))
			continue
		}

		fmt.Fprintf(w, "%s\n\n", indent(out))
	}

	return errors.Join(errs...)
}

// indent переформатирует JSON для чтения глазами; не-JSON возвращает как есть.
func indent(raw string) string {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(pretty)
}
