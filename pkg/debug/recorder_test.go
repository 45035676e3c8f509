package debug

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
)

func readTrace(t *testing.T, path string) CallTrace {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var trace CallTrace
	require.NoError(t, json.Unmarshal(data, &trace))
	return trace
}

func TestRecorder_Record(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	r, err := NewRecorder(config.DebugLogsConfig{
		LogsDir:            dir,
		IncludeToolArgs:    true,
		IncludeToolResults: true,
	})
	require.NoError(t, err)

	path, err := r.Record(CallTrace{
		CallID:    "1a2b3c4d-5e6f",
		Tool:      "find_country",
		Timestamp: time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC),
		Duration:  12,
		Args:      `{"query":"Египет"}`,
		Result:    `{"found":true}`,
		Success:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "call_20261019_153000_find_country_1a2b3c4d.json"), path)
	got := readTrace(t, path)
	assert.Equal(t, `{"query":"Египет"}`, got.Args)
	assert.Equal(t, `{"found":true}`, got.Result)
	assert.True(t, got.Success)
}

func TestRecorder_OmitsArgsAndResultsByDefault(t *testing.T) {
	r, err := NewRecorder(config.DebugLogsConfig{LogsDir: t.TempDir()})
	require.NoError(t, err)

	path, err := r.Record(CallTrace{CallID: "x", Tool: "search_tours", Args: "{}", Result: "secret", Timestamp: time.Now()})
	require.NoError(t, err)

	got := readTrace(t, path)
	assert.Empty(t, got.Args)
	assert.Empty(t, got.Result)
}

func TestRecorder_TruncatesResult(t *testing.T) {
	r, err := NewRecorder(config.DebugLogsConfig{
		LogsDir:            t.TempDir(),
		IncludeToolResults: true,
		MaxResultSize:      5,
	})
	require.NoError(t, err)

	// "Египет" — 12 байт, обрезка не должна рвать кириллицу
	path, err := r.Record(CallTrace{CallID: "x", Tool: "t", Result: "Египет", Timestamp: time.Now()})
	require.NoError(t, err)

	got := readTrace(t, path)
	assert.True(t, got.ResultTruncated)
	assert.Equal(t, "Ег... (truncated)", got.Result)
}

func TestRecorder_Summary(t *testing.T) {
	r, err := NewRecorder(config.DebugLogsConfig{LogsDir: t.TempDir()})
	require.NoError(t, err)

	for i, ok := range []bool{true, false, true} {
		tool := "find_country"
		if i == 2 {
			tool = "search_tours"
		}
		_, err := r.Record(CallTrace{CallID: strings.Repeat("a", i+1), Tool: tool, Duration: 10, Success: ok, Timestamp: time.Now()})
		require.NoError(t, err)
	}

	s := r.Summary()
	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, 1, s.FailedCalls)
	assert.Equal(t, int64(30), s.TotalDuration)
	assert.Equal(t, map[string]int{"find_country": 2, "search_tours": 1}, s.ByTool)

	s.ByTool["find_country"] = 100
	assert.Equal(t, 2, r.Summary().ByTool["find_country"])
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "find_country", cleanName("find_country"))
	assert.Equal(t, "___etc_passwd", cleanName("../etc/passwd"))
}
