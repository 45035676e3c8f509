// Package mcpserver публикует инструменты из tools.Registry по протоколу MCP.
//
// Транспорт выбирается в server.transport:
//   - stdio — клиент запускает процесс и общается через stdin/stdout
//   - sse — HTTP + Server-Sent Events (старые клиенты)
//   - http — Streamable HTTP
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/debug"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

// shutdownTimeout — сколько ждать завершения HTTP транспорта после отмены контекста.
const shutdownTimeout = 5 * time.Second

// Server связывает реестр инструментов и MCP сервер.
type Server struct {
	cfg      config.ServerConfig
	registry *tools.Registry
	timeouts map[string]time.Duration
	recorder *debug.Recorder // nil, если app.debug_logs выключен
	mcp      *server.MCPServer
}

// New создает MCP сервер и регистрирует в нем все инструменты реестра.
//
// Таймаут вызова берется из tools.<name>.timeout; ноль — без таймаута.
func New(cfg *config.AppConfig, registry *tools.Registry) (*Server, error) {
	s := &Server{
		cfg:      cfg.Server,
		registry: registry,
		timeouts: make(map[string]time.Duration),
		mcp: server.NewMCPServer(
			cfg.Server.Name,
			cfg.Server.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}

	if cfg.App.DebugLogs.Enabled {
		recorder, err := debug.NewRecorder(cfg.App.DebugLogs)
		if err != nil {
			return nil, fmt.Errorf("failed to create debug recorder: %w", err)
		}
		s.recorder = recorder
		utils.Info("Debug recorder attached", "logs_dir", cfg.App.DebugLogs.LogsDir)
	}

	for _, def := range registry.GetDefinitions() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool '%s': failed to marshal schema: %w", def.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), s.handler(def.Name))
		s.timeouts[def.Name] = cfg.Tool(def.Name).Timeout

		utils.Debug("MCP tool registered", "tool", def.Name)
	}

	return s, nil
}

// MCP возвращает низкоуровневый сервер mcp-go.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// handler превращает tools.Tool в обработчик MCP.
//
// Ошибка инструмента возвращается клиенту как результат с isError=true,
// а не как ошибка протокола: ассистент должен её увидеть и отреагировать.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callID := uuid.NewString()
		start := time.Now()

		tool, err := s.registry.Get(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		if timeout := s.timeouts[name]; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		utils.Info("Tool call started", "tool", name, "call_id", callID, "args", string(args))

		out, err := tool.Execute(ctx, string(args))
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("инструмент %s не уложился в %s: %w", name, s.timeouts[name], err)
		}
		s.trace(callID, name, start, string(args), out, err)

		if err != nil {
			utils.Error("Tool call failed", "tool", name, "call_id", callID,
				"duration", time.Since(start), "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		utils.Info("Tool call finished", "tool", name, "call_id", callID,
			"duration", time.Since(start), "bytes", len(out))
		return mcp.NewToolResultText(out), nil
	}
}

// trace сохраняет JSON трейс вызова, если рекордер подключен.
func (s *Server) trace(callID, name string, start time.Time, args, out string, err error) {
	if s.recorder == nil {
		return
	}

	trace := debug.CallTrace{
		CallID:    callID,
		Tool:      name,
		Timestamp: start,
		Duration:  time.Since(start).Milliseconds(),
		Args:      args,
		Result:    out,
		Success:   err == nil,
	}
	if err != nil {
		trace.Error = err.Error()
	}

	if path, recErr := s.recorder.Record(trace); recErr != nil {
		utils.Warn("Failed to save call trace", "call_id", callID, "error", recErr)
	} else {
		utils.Debug("Call trace saved", "call_id", callID, "path", path)
	}
}

// Serve запускает выбранный транспорт и блокируется до отмены ctx
// (или до закрытия stdin для stdio).
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO — Serve с явными потоками для stdio транспорта.
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	utils.Info("MCP server starting", "transport", s.cfg.Transport, "addr", s.cfg.Addr)

	switch s.cfg.Transport {
	case config.TransportStdio:
		err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil

	case config.TransportSSE:
		sse := server.NewSSEServer(s.mcp, server.WithBaseURL(s.cfg.BaseURL))
		return serveHTTP(ctx, "sse", s.cfg.Addr, sse.Start, sse.Shutdown)

	case config.TransportHTTP:
		streamable := server.NewStreamableHTTPServer(s.mcp)
		return serveHTTP(ctx, "http", s.cfg.Addr, streamable.Start, streamable.Shutdown)

	default:
		return fmt.Errorf("unknown transport '%s'", s.cfg.Transport)
	}
}

// serveHTTP запускает HTTP транспорт и останавливает его по отмене ctx.
func serveHTTP(
	ctx context.Context,
	name, addr string,
	start func(addr string) error,
	shutdown func(ctx context.Context) error,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s transport: %w", name, err)
		}
		return nil

	case <-ctx.Done():
		utils.Info("MCP server shutting down", "transport", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s transport shutdown: %w", name, err)
		}
		return nil
	}
}
