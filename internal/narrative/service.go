package narrative

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

var ErrNotConfigured = errors.New("narrative generator not configured")

// Generator turns a prompt into model text.
//
//go:generate mockgen -package=narrativemock -destination=narrativemock/mock_generator.go -source=service.go Generator
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
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
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

type Service struct {
	gen            Generator
	backend        string
	modelName      string
	disabledReason string
}

// NewService wraps an already built generator.
func NewService(gen Generator, backend, model string) *Service {
	if gen == nil {
		return &Service{disabledReason: "generator missing"}
	}
	return &Service{gen: gen, backend: backend, modelName: model}
}

// New builds the configured backend. A missing credential does not fail
// startup; the service reports itself disabled and every call returns
// ErrNotConfigured.
func New(ctx context.Context, cfg Config) *Service {
	switch cfg.Backend {
	case BackendOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Model == "" {
			cfg.Model = os.Getenv("OPENAI_MODEL")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
		if cfg.APIKey == "" || cfg.Model == "" {
			hlog.Warn("narrative disabled: missing OPENAI_API_KEY or model")
			return &Service{backend: cfg.Backend, disabledReason: "Chave de API OPENAI_API_KEY ou modelo ausente."}
		}
		gen, err := NewOpenAI(ctx, cfg)
		if err != nil {
			hlog.Errorf("narrative openai init error: %v", err)
			return &Service{backend: cfg.Backend, disabledReason: "falha ao inicializar o modelo"}
		}
		return NewService(gen, cfg.Backend, cfg.Model)
	default:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		if cfg.APIKey == "" {
			hlog.Warn("narrative disabled: missing GEMINI_API_KEY")
			return &Service{backend: BackendGemini, disabledReason: "Chave de API GEMINI_API_KEY ausente."}
		}
		gen, err := NewGemini(ctx, cfg)
		if err != nil {
			hlog.Errorf("narrative gemini init error: %v", err)
			return &Service{backend: BackendGemini, disabledReason: "falha ao inicializar o modelo"}
		}
		return NewService(gen, BackendGemini, cfg.Model)
	}
}

func (s *Service) Enabled() bool {
	return s != nil && s.gen != nil
}

func (s *Service) DisabledReason() string {
	if s == nil {
		return "not configured"
	}
	return s.disabledReason
}

// Analyze validates the input before touching the backend, asks the generator for the HTML blurb and
// strips any code fences around it.
func (s *Service) Analyze(ctx context.Context, in Input) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	if !s.Enabled() {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, s.DisabledReason())
	}
	text, err := s.gen.Generate(ctx, BuildPrompt(in))
	if err != nil {
		return "", fmt.Errorf("generate narrative: %w", err)
	}
	html := StripFences(text)
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("generate narrative: empty response")
	}
	return html, nil
}

// Ping issues a tiny generation to report backend reachability and latency.
func (s *Service) Ping(ctx context.Context) (map[string]any, error) {
	if !s.Enabled() {
		return map[string]any{
			"ok":     false,
			"mode":   "disabled",
			"reason": s.DisabledReason(),
		}, nil
	}
	start := time.Now()
	_, err := s.gen.Generate(ctx, "Responda apenas: ok")
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return map[string]any{
			"ok":      false,
			"mode":    s.backend,
			"reason":  "llm error",
			"details": err.Error(),
		}, err
	}
	return map[string]any{
		"ok":         true,
		"mode":       s.backend,
		"model":      s.modelName,
		"latency_ms": latency,
	}, nil
}

func timeoutOf(cfg Config, def time.Duration) time.Duration {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = def
	}
	return timeout
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
