package narrative_test

import (
	"context"
	"errors"
	"testing"

	"b3-humor/internal/market"
	"b3-humor/internal/narrative"
	"b3-humor/internal/narrative/narrativemock"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func validInput() narrative.Input {
	return narrative.Input{Values: map[market.IndicatorKey]string{
		market.Minerio: "1.20",
		market.Brent:   "-0.40",
		market.VIX:     "3.10",
		market.Dolar:   "0.25",
	}}
}

func TestAnalyze_StripsFences(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := narrativemock.NewMockGenerator(ctrl)

	var prompt string
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "```html\n<h3>📈 Interpretação do Cenário</h3>\n<p>O Indicador é +0.2195.</p>\n```", nil
	}).Times(1)

	svc := narrative.NewService(gen, narrative.BackendGemini, "gemini-2.0-flash")
	html, err := svc.Analyze(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "<h3>📈 Interpretação do Cenário</h3>\n<p>O Indicador é +0.2195.</p>", html)
	require.Contains(t, prompt, "VIX: 3.10%")
}

func TestAnalyze_InvalidInputSkipsGenerator(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := narrativemock.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Times(0)

	in := validInput()
	delete(in.Values, market.VIX)

	svc := narrative.NewService(gen, narrative.BackendGemini, "m")
	_, err := svc.Analyze(context.Background(), in)
	require.ErrorIs(t, err, narrative.ErrInvalidInput)
	require.ErrorContains(t, err, "vix")
}

func TestAnalyze_GeneratorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := narrativemock.NewMockGenerator(ctrl)
	upstream := errors.New("quota exceeded")
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", upstream)

	svc := narrative.NewService(gen, narrative.BackendOpenAI, "gpt-4o-mini")
	_, err := svc.Analyze(context.Background(), validInput())
	require.ErrorIs(t, err, upstream)
	require.ErrorContains(t, err, "generate narrative")
}

func TestAnalyze_EmptyAfterStripping(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := narrativemock.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("```html\n```", nil)

	svc := narrative.NewService(gen, narrative.BackendGemini, "m")
	_, err := svc.Analyze(context.Background(), validInput())
	require.ErrorContains(t, err, "empty response")
}

func TestService_Disabled(t *testing.T) {
	svc := narrative.NewService(nil, narrative.BackendGemini, "m")
	require.False(t, svc.Enabled())
	_, err := svc.Analyze(context.Background(), validInput())
	require.ErrorIs(t, err, narrative.ErrNotConfigured)

	in := validInput()
	delete(in.Values, market.Dolar)
	_, err = svc.Analyze(context.Background(), in)
	require.ErrorIs(t, err, narrative.ErrInvalidInput)

	var nilSvc *narrative.Service
	require.False(t, nilSvc.Enabled())
	require.NotEmpty(t, nilSvc.DisabledReason())
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OPENAI_BASE_URL", "")

	svc := narrative.New(context.Background(), narrative.Config{Backend: narrative.BackendGemini})
	require.False(t, svc.Enabled())
	require.Contains(t, svc.DisabledReason(), "GEMINI_API_KEY")

	svc = narrative.New(context.Background(), narrative.Config{Backend: narrative.BackendOpenAI, Model: "gpt-4o-mini"})
	require.False(t, svc.Enabled())
	require.Contains(t, svc.DisabledReason(), "OPENAI_API_KEY")
}

func TestNew_OpenAIFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_BASE_URL", "http://127.0.0.1:1/v1")

	svc := narrative.New(context.Background(), narrative.Config{Backend: narrative.BackendOpenAI, Temperature: 0.3})
	require.True(t, svc.Enabled())
}

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := narrativemock.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), "Responda apenas: ok").Return("ok", nil)

	svc := narrative.NewService(gen, narrative.BackendGemini, "gemini-2.0-flash")
	resp, err := svc.Ping(context.Background())
	require.NoError(t, err)
	require.Equal(t, true, resp["ok"])
	require.Equal(t, "gemini", resp["mode"])
	require.Equal(t, "gemini-2.0-flash", resp["model"])

	disabled, err := narrative.NewService(nil, "", "").Ping(context.Background())
	require.NoError(t, err)
	require.Equal(t, false, disabled["ok"])
	require.Equal(t, "disabled", disabled["mode"])
}
