// Package debug сохраняет трейсы вызовов инструментов в JSON файлы.
//
// Один вызов MCP — один файл: по нему видно, что именно прислал ассистент
// и что ушло в ответ. Включается секцией app.debug_logs.
package debug

import "time"

// CallTrace — трейс одного вызова инструмента.
type CallTrace struct {
	// CallID — идентификатор вызова, тот же, что в текстовом логе
	CallID string `json:"call_id"`

	// Tool — имя инструмента
	Tool string `json:"tool"`

	// Timestamp — время начала вызова
	Timestamp time.Time `json:"timestamp"`

	// Duration — длительность выполнения в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Args — аргументы в JSON формате
	Args string `json:"args,omitempty"`

	// Result — результат (может быть обрезан по MaxResultSize)
	Result string `json:"result,omitempty"`

	// ResultTruncated — true если результат был обрезан
	ResultTruncated bool `json:"result_truncated,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Summary — агрегаты по всем вызовам с момента старта.
type Summary struct {
	TotalCalls    int            `json:"total_calls"`
	FailedCalls   int            `json:"failed_calls"`
	TotalDuration int64          `json:"total_duration_ms"`
	ByTool        map[string]int `json:"by_tool"`
}
