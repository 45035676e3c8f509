package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
)

// Recorder пишет CallTrace в LogsDir.
//
// Потокобезопасен — вызовы MCP идут из разных горутин.
type Recorder struct {
	cfg config.DebugLogsConfig

	mu      sync.Mutex
	summary Summary
}

// NewRecorder создает Recorder. Если LogsDir не существует, пытается создать её.
func NewRecorder(cfg config.DebugLogsConfig) (*Recorder, error) {
	cfg = cfg.GetDefaults()
	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	return &Recorder{
		cfg:     cfg,
		summary: Summary{ByTool: make(map[string]int)},
	}, nil
}

// Record применяет настройки включения/обрезки и сохраняет трейс.
//
// Возвращает путь к файлу.
func (r *Recorder) Record(trace CallTrace) (string, error) {
	if !r.cfg.IncludeToolArgs {
		trace.Args = ""
	}
	if !r.cfg.IncludeToolResults {
		trace.Result = ""
	} else if r.cfg.MaxResultSize > 0 && len(trace.Result) > r.cfg.MaxResultSize {
		trace.Result = truncateString(trace.Result, r.cfg.MaxResultSize)
		trace.ResultTruncated = true
	}

	r.mu.Lock()
	r.summary.TotalCalls++
	r.summary.TotalDuration += trace.Duration
	r.summary.ByTool[trace.Tool]++
	if !trace.Success {
		r.summary.FailedCalls++
	}
	r.mu.Unlock()

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal call trace: %w", err)
	}

	path := r.filePath(trace)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write call trace: %w", err)
	}
	return path, nil
}

// Summary возвращает копию агрегатов.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.ByTool = make(map[string]int, len(r.summary.ByTool))
	for k, v := range r.summary.ByTool {
		s.ByTool[k] = v
	}
	return s
}

// filePath: call_20261019_153000_find_country_1a2b3c4d.json
func (r *Recorder) filePath(trace CallTrace) string {
	id := trace.CallID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("call_%s_%s_%s.json",
		trace.Timestamp.Format("20060102_150405"), cleanName(trace.Tool), id)
	return filepath.Join(r.cfg.LogsDir, name)
}

// truncateString обрезает строку по байтам, не разрывая UTF-8 символ.
func truncateString(s string, maxSize int) string {
	if maxSize <= 0 || len(s) <= maxSize {
		return s
	}
	cut := maxSize
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// cleanName оставляет в имени инструмента только безопасные для файла символы.
func cleanName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
