package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath — путь к конфигу, если --config не указан.
const DefaultPath = "config.yaml"

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	App        AppSpecific           `yaml:"app"`
	Server     ServerConfig          `yaml:"server"`
	Tourvisor  TourvisorConfig       `yaml:"tourvisor"`
	Dictionary DictionaryConfig      `yaml:"dictionary"`
	Matcher    MatcherConfig         `yaml:"matcher"`
	S3         S3Config              `yaml:"s3"`
	Hotels     HotelsConfig          `yaml:"hotels"`
	Tools      map[string]ToolConfig `yaml:"tools"`
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug     bool            `yaml:"debug"`
	LogDir    string          `yaml:"log_dir"` // Куда писать .log файл (stdout занят MCP)
	DebugLogs DebugLogsConfig `yaml:"debug_logs"`
}

// DebugLogsConfig — JSON трейсы вызовов инструментов (по файлу на вызов).
type DebugLogsConfig struct {
	Enabled            bool   `yaml:"enabled"`
	LogsDir            string `yaml:"logs_dir"`
	IncludeToolArgs    bool   `yaml:"include_tool_args"`
	IncludeToolResults bool   `yaml:"include_tool_results"`
	MaxResultSize      int    `yaml:"max_result_size"` // 0 — без обрезки
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *DebugLogsConfig) GetDefaults() DebugLogsConfig {
	result := *c
	if result.LogsDir == "" {
		result.LogsDir = "./debug_logs"
	}
	return result
}

// ServerConfig — настройки MCP сервера.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"` // stdio | sse | http
	Addr      string `yaml:"addr"`      // Адрес для sse/http, например ":8000"
	BaseURL   string `yaml:"base_url"`  // Публичный URL для SSE endpoint
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ServerConfig) GetDefaults() ServerConfig {
	result := *c

	if result.Name == "" {
		result.Name = "eto-travel-mcp"
	}
	if result.Version == "" {
		result.Version = "0.1.0"
	}
	if result.Transport == "" {
		result.Transport = TransportStdio
	}
	if result.Addr == "" {
		result.Addr = ":8000"
	}
	if result.BaseURL == "" {
		result.BaseURL = "http://localhost" + result.Addr
	}

	return result
}

// Транспорты MCP сервера.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// TourvisorConfig — настройки upstream API (tourvisor.ru / eto.travel).
type TourvisorConfig struct {
	BaseURL          string        `yaml:"base_url"`          // https://tourvisor.ru
	APIURL           string        `yaml:"api_url"`           // https://tourvisor.ru/api/v1.1
	SearchURL        string        `yaml:"search_url"`        // https://search3.tourvisor.ru
	Referrer         string        `yaml:"referrer"`          // https://eto.travel/search/
	Session          string        `yaml:"session"`           // Поддерживает ${TOURVISOR_SESSION}
	UserAgent        string        `yaml:"user_agent"`        // Tourvisor отдаёт данные только "браузеру"
	RateLimit        int           `yaml:"rate_limit"`        // Запросов в минуту
	BurstLimit       int           `yaml:"burst_limit"`       // Burst для rate limiter
	RetryAttempts    int           `yaml:"retry_attempts"`    // Количество retry попыток
	Timeout          string        `yaml:"timeout"`           // Timeout для HTTP запросов (например, "30s")
	DefaultDeparture int           `yaml:"default_departure"` // 1 = Москва
	PollAttempts     int           `yaml:"poll_attempts"`     // Сколько раз опрашивать modresult.php
	PollInterval     time.Duration `yaml:"poll_interval"`     // Пауза между опросами
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *TourvisorConfig) GetDefaults() TourvisorConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "https://tourvisor.ru"
	}
	if result.APIURL == "" {
		result.APIURL = "https://tourvisor.ru/api/v1.1"
	}
	if result.SearchURL == "" {
		result.SearchURL = "https://search3.tourvisor.ru"
	}
	if result.Referrer == "" {
		result.Referrer = "https://eto.travel/search/"
	}
	if result.UserAgent == "" {
		result.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 60 // запросов в минуту
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = 3
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}
	if result.DefaultDeparture == 0 {
		result.DefaultDeparture = 1
	}
	if result.PollAttempts == 0 {
		result.PollAttempts = 10
	}
	if result.PollInterval == 0 {
		result.PollInterval = 1500 * time.Millisecond
	}

	return result
}

// Бэкенды кэша справочника.
const (
	CacheFile = "file"
	CacheS3   = "s3"
	CacheNone = "none"
)

// DictionaryConfig — настройки загрузки справочника стран/регионов.
type DictionaryConfig struct {
	Cache        string        `yaml:"cache"`         // file | s3 | none
	CacheFile    string        `yaml:"cache_file"`    // Путь к JSON файлу для cache=file
	S3Key        string        `yaml:"s3_key"`        // Ключ объекта для cache=s3
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // Общий бюджет одной загрузки
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *DictionaryConfig) GetDefaults() DictionaryConfig {
	result := *c

	if result.Cache == "" {
		result.Cache = CacheFile
	}
	if result.CacheFile == "" {
		result.CacheFile = "travel-dictionary.json"
	}
	if result.S3Key == "" {
		result.S3Key = "dictionaries/travel-dictionary.json"
	}
	if result.FetchTimeout == 0 {
		result.FetchTimeout = 60 * time.Second
	}

	return result
}

// MatcherConfig — пороги нечеткого поиска.
//
// Нулевые значения заменяются дефолтами в GetDefaults.
type MatcherConfig struct {
	ExactScore       float64 `yaml:"exact_score"`
	PrefixScore      float64 `yaml:"prefix_score"`
	SubstringScore   float64 `yaml:"substring_score"`
	MinEditScore     float64 `yaml:"min_edit_score"`     // Порог для ветки Левенштейна
	MinLookupScore   float64 `yaml:"min_lookup_score"`   // Порог для find_country / find_region
	MinReversePrefix int     `yaml:"min_reverse_prefix"` // Мин. длина названия для "запрос начинается с названия"
	Suggestions      int     `yaml:"suggestions"`        // Сколько альтернатив возвращать tool'ам
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *MatcherConfig) GetDefaults() MatcherConfig {
	result := *c

	if result.ExactScore == 0 {
		result.ExactScore = 1.0
	}
	if result.PrefixScore == 0 {
		result.PrefixScore = 0.85
	}
	if result.SubstringScore == 0 {
		result.SubstringScore = 0.7
	}
	if result.MinEditScore == 0 {
		result.MinEditScore = 0.5
	}
	if result.MinLookupScore == 0 {
		result.MinLookupScore = 0.5
	}
	if result.MinReversePrefix == 0 {
		result.MinReversePrefix = 3
	}
	if result.Suggestions == 0 {
		result.Suggestions = 5
	}

	return result
}

// S3Config — настройки объектного хранилища.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// HotelsConfig — настройки кэша названий отелей.
type HotelsConfig struct {
	DBPath string `yaml:"db_path"` // Путь к sqlite файлу; ":memory:" — только на время процесса
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *HotelsConfig) GetDefaults() HotelsConfig {
	result := *c
	if result.DBPath == "" {
		result.DBPath = "hotels.db"
	}
	return result
}

// ToolConfig — настройки инструмента.
type ToolConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Description string        `yaml:"description"` // Перекрывает встроенное описание
	Timeout     time.Duration `yaml:"timeout"`
}

// Default возвращает конфигурацию со всеми дефолтами и без файла.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает содержимое config.yaml.
func Parse(raw []byte) (*AppConfig, error) {
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	c.Server = c.Server.GetDefaults()
	c.Tourvisor = c.Tourvisor.GetDefaults()
	c.Dictionary = c.Dictionary.GetDefaults()
	c.Matcher = c.Matcher.GetDefaults()
	c.Hotels = c.Hotels.GetDefaults()
	if c.App.LogDir == "" {
		c.App.LogDir = "."
	}
	c.App.DebugLogs = c.App.DebugLogs.GetDefaults()
	if c.Tools == nil {
		c.Tools = map[string]ToolConfig{}
	}
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportSSE, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be one of stdio, sse, http, got '%s'", c.Server.Transport)
	}

	if _, err := time.ParseDuration(c.Tourvisor.Timeout); err != nil {
		return fmt.Errorf("invalid tourvisor.timeout format: %w", err)
	}

	switch c.Dictionary.Cache {
	case CacheFile, CacheNone:
	case CacheS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when dictionary.cache is s3")
		}
		if c.S3.Endpoint == "" {
			return fmt.Errorf("s3.endpoint is required when dictionary.cache is s3")
		}
	default:
		return fmt.Errorf("dictionary.cache must be one of file, s3, none, got '%s'", c.Dictionary.Cache)
	}

	m := c.Matcher
	for name, v := range map[string]float64{
		"matcher.exact_score":      m.ExactScore,
		"matcher.prefix_score":     m.PrefixScore,
		"matcher.substring_score":  m.SubstringScore,
		"matcher.min_edit_score":   m.MinEditScore,
		"matcher.min_lookup_score": m.MinLookupScore,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}

	return nil
}

// Tool возвращает настройки инструмента по имени.
//
// Инструмент без секции в tools считается включённым.
func (c *AppConfig) Tool(name string) ToolConfig {
	if tc, ok := c.Tools[name]; ok {
		return tc
	}
	return ToolConfig{Enabled: true}
}
