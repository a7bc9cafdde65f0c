package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	Narrative NarrativeConfig `yaml:"narrative"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CORSConfig struct {
	AllowOrigin string `yaml:"allow_origin"`
}

type QuotesConfig struct {
	Provider    string             `yaml:"provider"`
	Mode        string             `yaml:"mode"`
	BaseURL     string             `yaml:"base_url"`
	APIKey      string             `yaml:"api_key"`
	TimeoutMs   int                `yaml:"timeout_ms"`
	Concurrency int                `yaml:"concurrency"`
	Timezone    string             `yaml:"timezone"`
	Indicators  []IndicatorMapping `yaml:"indicators"`
}

// IndicatorMapping binds one logical indicator to the provider ticker that
// stands in for it.
type IndicatorMapping struct {
	Key    string `yaml:"key"`
	Ticker string `yaml:"ticker"`
	Market string `yaml:"market"`
}

type NarrativeConfig struct {
	Backend     string  `yaml:"backend"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	ByAzure     bool    `yaml:"by_azure"`
	APIVersion  string  `yaml:"api_version"`
	Temperature float32 `yaml:"temperature"`
	TimeoutMs   int     `yaml:"timeout_ms"`
}

const (
	ProviderPolygon = "polygon"
	ProviderYahoo   = "yahoo"

	ModePrev    = "prev"
	ModeDaily   = "daily"
	ModeGrouped = "grouped"

	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 3000},
		Log:    LogConfig{Level: "info"},
		CORS:   CORSConfig{AllowOrigin: "*"},
		Quotes: QuotesConfig{
			Provider:    ProviderPolygon,
			Mode:        ModePrev,
			BaseURL:     "https://api.polygon.io",
			TimeoutMs:   5000,
			Concurrency: 1,
			Timezone:    "America/Sao_Paulo",
			Indicators:  DefaultIndicators(),
		},
		Narrative: NarrativeConfig{
			Backend:     BackendGemini,
			Model:       "gemini-2.0-flash",
			Temperature: 0.3,
			TimeoutMs:   30000,
		},
	}
}

// DefaultIndicators uses US-listed proxies so a single stocks/fx account
// covers the whole set.
func DefaultIndicators() []IndicatorMapping {
	return []IndicatorMapping{
		{Key: "minerio", Ticker: "VALE", Market: "stocks"},
		{Key: "brent", Ticker: "BNO", Market: "stocks"},
		{Key: "vix", Ticker: "VIXY", Market: "stocks"},
		{Key: "spx", Ticker: "SPY", Market: "stocks"},
		{Key: "dxy", Ticker: "UUP", Market: "stocks"},
		{Key: "dolar", Ticker: "C:USDBRL", Market: "fx"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	// A file that lists indicators replaces the default table instead of
	// being merged into it.
	cfg.Quotes.Indicators = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Quotes.Indicators) == 0 {
		cfg.Quotes.Indicators = DefaultIndicators()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MASSIVE_API_KEY"); v != "" {
		cfg.Quotes.APIKey = v
	}
	if v := os.Getenv("MASSIVE_API_URL"); v != "" {
		cfg.Quotes.BaseURL = v
	}
	if v := os.Getenv("QUOTES_PROVIDER"); v != "" {
		cfg.Quotes.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("QUOTES_MODE"); v != "" {
		cfg.Quotes.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("NARRATIVE_BACKEND"); v != "" {
		cfg.Narrative.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("NARRATIVE_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Narrative.Backend == BackendGemini {
		cfg.Narrative.APIKey = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.Quotes.Provider {
	case ProviderPolygon, ProviderYahoo:
	default:
		return fmt.Errorf("invalid quotes.provider: %q", c.Quotes.Provider)
	}
	switch c.Quotes.Mode {
	case ModePrev, ModeDaily, ModeGrouped:
	default:
		return fmt.Errorf("invalid quotes.mode: %q", c.Quotes.Mode)
	}
	if c.Quotes.Concurrency < 1 {
		c.Quotes.Concurrency = 1
	}
	switch c.Narrative.Backend {
	case BackendGemini, BackendOpenAI:
	default:
		return fmt.Errorf("invalid narrative.backend: %q", c.Narrative.Backend)
	}
	for i, ind := range c.Quotes.Indicators {
		if strings.TrimSpace(ind.Key) == "" || strings.TrimSpace(ind.Ticker) == "" {
			return fmt.Errorf("quotes.indicators[%d]: key and ticker are required", i)
		}
	}
	return nil
}
