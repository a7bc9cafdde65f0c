package narrative

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"google.golang.org/genai"
)

// Gemini calls the generateContent API of the Gemini backend.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	return newGemini(ctx, cfg, nil)
}

func newGemini(ctx context.Context, cfg Config, httpClient *http.Client) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL, APIVersion: cfg.APIVersion}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeoutOf(cfg, 30*time.Second),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		hlog.CtxErrorf(ctx, "gemini api error: model=%s err=%s", g.model, clip(err.Error(), 300))
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := "no candidates"
		if len(resp.Candidates) > 0 {
			reason = "finish reason " + string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("gemini returned empty content: %s", reason)
	}
	return text, nil
}
