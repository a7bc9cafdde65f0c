// Package app wires configuration into the quote and narrative services
// shared by the HTTP server and the command-line tool.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"b3-humor/internal/config"
	"b3-humor/internal/market"
	"b3-humor/internal/narrative"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

type Runtime struct {
	Config    *config.Config
	Provider  market.Provider
	Quotes    *market.Service
	Narrative *narrative.Service
}

// Build loads the config file and constructs every dependency once.
func Build(ctx context.Context, path string) (*Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	hlog.SetLevel(ParseLevel(cfg.Log.Level))
	return FromConfig(ctx, cfg)
}

func FromConfig(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	instruments := make([]market.Instrument, 0, len(cfg.Quotes.Indicators))
	for _, m := range cfg.Quotes.Indicators {
		instruments = append(instruments, market.Instrument{
			Key:    market.IndicatorKey(m.Key),
			Ticker: m.Ticker,
			Market: m.Market,
		})
	}
	resolver, err := market.NewResolver(instruments)
	if err != nil {
		return nil, fmt.Errorf("indicator table: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Quotes.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid quotes.timezone %q: %w", cfg.Quotes.Timezone, err)
	}

	timeout := time.Duration(cfg.Quotes.TimeoutMs) * time.Millisecond
	var provider market.Provider
	switch cfg.Quotes.Provider {
	case config.ProviderYahoo:
		provider = market.NewYahoo()
	default:
		client := market.NewRESTClient(cfg.Quotes.BaseURL, timeout)
		provider = market.NewPolygon(client, cfg.Quotes.APIKey, cfg.Quotes.Mode)
		if cfg.Quotes.APIKey == "" {
			hlog.Warn("MASSIVE_API_KEY is empty; quote requests will answer 500")
		}
	}

	quotes := market.NewService(provider, resolver, market.Config{
		Timeout:     timeout,
		Concurrency: cfg.Quotes.Concurrency,
		Location:    loc,
	})

	narr := narrative.New(ctx, narrative.Config{
		Backend:     cfg.Narrative.Backend,
		Model:       cfg.Narrative.Model,
		APIKey:      cfg.Narrative.APIKey,
		BaseURL:     cfg.Narrative.BaseURL,
		ByAzure:     cfg.Narrative.ByAzure,
		APIVersion:  cfg.Narrative.APIVersion,
		Temperature: cfg.Narrative.Temperature,
		TimeoutMs:   cfg.Narrative.TimeoutMs,
	})

	return &Runtime{
		Config:    cfg,
		Provider:  provider,
		Quotes:    quotes,
		Narrative: narr,
	}, nil
}

func ParseLevel(s string) hlog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "notice":
		return hlog.LevelNotice
	case "warn", "warning":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	case "fatal":
		return hlog.LevelFatal
	default:
		return hlog.LevelInfo
	}
}
