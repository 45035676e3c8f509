// Package app собирает компоненты сервера из конфигурации:
// клиент Tourvisor, справочник с кэшем, кэш отелей и реестр инструментов.
//
// Entry points (cmd/) только вызывают Initialize и запускают транспорт.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/dictionary"
	"github.com/ilkoid/eto-travel-mcp/pkg/hotelstore"
	"github.com/ilkoid/eto-travel-mcp/pkg/s3storage"
	"github.com/ilkoid/eto-travel-mcp/pkg/tools"
	"github.com/ilkoid/eto-travel-mcp/pkg/tourvisor"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

// Components содержит все компоненты приложения.
type Components struct {
	Config    *config.AppConfig
	Tourvisor *tourvisor.Client
	Loader    *dictionary.Loader
	Lookup    *dictionary.Lookup
	Hotels    *hotelstore.Store
	Registry  *tools.Registry
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг --config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
//
// Пустая строка означает, что файл не найден.
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага --config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	// 1. Флаг имеет приоритет
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	// 2. Текущая директория
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return resolveAbsPath(config.DefaultPath)
	}

	// 3. Директория бинарника
	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), config.DefaultPath)
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	return ""
}

// InitializeConfig загружает конфигурацию.
//
// Если файл не найден и путь не задан явно — работаем на дефолтах.
// Явно указанный, но отсутствующий файл — ошибка.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()
	if cfgPath == "" {
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// Initialize создаёт все компоненты приложения.
//
// Справочник здесь не загружается: первая загрузка ленивая (EnsureLoaded
// при первом вызове инструмента), чтобы сервер стартовал без сети.
func Initialize(cfg *config.AppConfig) (*Components, error) {
	utils.Info("Initializing components",
		"transport", cfg.Server.Transport,
		"dictionary_cache", cfg.Dictionary.Cache)

	// 1. Клиент Tourvisor
	client, err := tourvisor.NewFromConfig(cfg.Tourvisor)
	if err != nil {
		utils.Error("Tourvisor client creation failed", "error", err)
		return nil, fmt.Errorf("failed to create tourvisor client: %w", err)
	}
	utils.Info("Tourvisor client initialized",
		"session_set", cfg.Tourvisor.Session != "",
		"rate_limit", cfg.Tourvisor.RateLimit,
		"burst_limit", cfg.Tourvisor.BurstLimit)

	// 2. Кэш справочника
	cache, err := newDictionaryCache(cfg)
	if err != nil {
		utils.Error("Dictionary cache creation failed", "error", err)
		return nil, fmt.Errorf("failed to create dictionary cache: %w", err)
	}

	// 3. Справочник: store → loader → matcher → lookup
	opts := []dictionary.LoaderOption{dictionary.WithFetchTimeout(cfg.Dictionary.FetchTimeout)}
	if cache != nil {
		opts = append(opts, dictionary.WithCache(cache))
		utils.Info("Dictionary cache enabled", "backend", cache.Name())
	}
	loader := dictionary.NewLoader(dictionary.NewStore(), client, opts...)
	lookup := dictionary.NewLookup(loader, dictionary.NewMatcher(cfg.Matcher))

	// 4. Кэш отелей
	hotels, err := hotelstore.Open(cfg.Hotels.DBPath)
	if err != nil {
		utils.Error("Hotel store open failed", "path", cfg.Hotels.DBPath, "error", err)
		return nil, fmt.Errorf("failed to open hotel store: %w", err)
	}
	utils.Info("Hotel store opened", "path", cfg.Hotels.DBPath)

	c := &Components{
		Config:    cfg,
		Tourvisor: client,
		Loader:    loader,
		Lookup:    lookup,
		Hotels:    hotels,
		Registry:  tools.NewRegistry(),
	}

	// 5. Инструменты
	if err := SetupTools(c); err != nil {
		hotels.Close()
		utils.Error("Tools registration failed", "error", err)
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return c, nil
}

// newDictionaryCache выбирает бэкенд кэша по dictionary.cache.
// Для none возвращает nil.
func newDictionaryCache(cfg *config.AppConfig) (dictionary.Cache, error) {
	switch cfg.Dictionary.Cache {
	case config.CacheNone:
		return nil, nil
	case config.CacheFile:
		return dictionary.NewFileCache(cfg.Dictionary.CacheFile), nil
	case config.CacheS3:
		s3Client, err := s3storage.New(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		utils.Info("S3 client initialized", "bucket", cfg.S3.Bucket, "key", cfg.Dictionary.S3Key)
		return s3storage.NewDictionaryCache(s3Client, cfg.Dictionary.S3Key), nil
	default:
		return nil, fmt.Errorf("unknown dictionary cache '%s'", cfg.Dictionary.Cache)
	}
}

// Close освобождает ресурсы (sqlite).
func (c *Components) Close() error {
	if c.Hotels == nil {
		return nil
	}
	if err := c.Hotels.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close hotel store: %w", err)
	}
	return nil
}

// resolveAbsPath возвращает абсолютный путь, если получится.
func resolveAbsPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
