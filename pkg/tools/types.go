// Интерфейс Tool и структуры определений.

package tools

import "context"

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Используется вместо interface{} для типобезопасности.
// Уходит клиенту MCP как inputSchema инструмента.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для MCP клиента.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"inputSchema"` // JSON Schema объекта аргументов
}

// Tool — контракт, который должен реализовать любой инструмент.
type Tool interface {
	// Definition возвращает описание инструмента.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента.
	// argsJSON — сырой JSON с аргументами, который прислал ассистент.
	// Возвращает результат (JSON) или ошибку.
	Execute(ctx context.Context, argsJSON string) (string, error)
}
