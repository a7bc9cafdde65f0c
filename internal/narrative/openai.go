package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const openAISystem = `Você escreve análises curtas de mercado para day traders da B3.
Responda somente com fragmentos HTML (h3, p), sem <html>, <body> ou blocos de código.`

// OpenAI calls any OpenAI-compatible chat endpoint through eino.
type OpenAI struct {
	model     *openai.ChatModel
	modelName string
}

func NewOpenAI(ctx context.Context, cfg Config) (*OpenAI, error) {
	temperature := cfg.Temperature
	model, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		ByAzure:     cfg.ByAzure,
		APIVersion:  cfg.APIVersion,
		Timeout:     timeoutOf(cfg, 30*time.Second),
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}
	return &OpenAI{model: model, modelName: cfg.Model}, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(openAISystem),
		schema.UserMessage(prompt),
	}
	resp, err := o.model.Generate(ctx, messages)
	if err != nil {
		logLLMError(ctx, err)
		return "", fmt.Errorf("openai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned empty content")
	}
	return text, nil
}

func logLLMError(ctx context.Context, err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		hlog.CtxErrorf(ctx, "openai api error: status=%d message=%s", apiErr.HTTPStatusCode, clip(apiErr.Message, 300))
		return
	}
	hlog.CtxErrorf(ctx, "openai error: %v", err)
}
