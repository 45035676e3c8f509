// eto-travel-mcp — MCP сервер поиска туров (Tourvisor / eto.travel).
//
// Использование:
//
//	./eto-travel-mcp                              # stdio, config.yaml рядом
//	./eto-travel-mcp --transport http --addr :8000
//	./eto-travel-mcp --test                       # прогон инструментов и выход
//
// Логи пишутся в файл (app.log_dir): stdout занят stdio транспортом.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ilkoid/eto-travel-mcp/pkg/app"
	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/mcpserver"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

// Version — версия сервера (заполняется при сборке)
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := pflag.StringP("config", "c", "", "путь к config.yaml")
	transport := pflag.StringP("transport", "t", "", "транспорт MCP: stdio | sse | http")
	addr := pflag.String("addr", "", "адрес для sse/http, например :8000")
	testMode := pflag.Bool("test", false, "вызвать основные инструменты, напечатать результат и выйти")
	pflag.Parse()

	// 1. Конфиг
	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configFlag})
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, *transport, *addr); err != nil {
		return err
	}

	// 2. Логгер
	if err := utils.InitLogger(cfg.App.LogDir, cfg.App.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	defer utils.Close()

	utils.Info("Starting eto-travel-mcp",
		"version", Version,
		"config", cfgPath,
		"transport", cfg.Server.Transport)

	// 3. Компоненты
	comps, err := app.Initialize(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	// 4. Smoke режим
	if *testMode {
		return runSmoke(ctx, comps.Registry, os.Stdout)
	}

	// 5. MCP сервер
	srv, err := mcpserver.New(cfg, comps.Registry)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := srv.Serve(ctx); err != nil {
		utils.Error("MCP server stopped with error", "error", err)
		return err
	}

	utils.Info("MCP server stopped")
	return nil
}

// applyFlags накладывает флаги командной строки поверх конфига.
func applyFlags(cfg *config.AppConfig, transport, addr string) error {
	if transport != "" {
		switch transport {
		case config.TransportStdio, config.TransportSSE, config.TransportHTTP:
			cfg.Server.Transport = transport
		default:
			return fmt.Errorf("--transport must be one of stdio, sse, http, got '%s'", transport)
		}
	}

	if addr != "" {
		// base_url по умолчанию выводится из addr
		if cfg.Server.BaseURL == "http://localhost"+cfg.Server.Addr {
			cfg.Server.BaseURL = "http://localhost" + addr
		}
		cfg.Server.Addr = addr
	}

	return nil
}
