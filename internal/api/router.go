package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"b3-humor/internal/market"
	"b3-humor/internal/narrative"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/google/uuid"
)

const (
	QuotesPath        = "/api/fetch-quotes"
	HumorPath         = "/api/humor"
	HumorPingPath     = "/api/humor/ping"
	requestIDHeader   = "X-Request-ID"
	requestIDKey      = "request_id"
	corsAllowHeaders  = "Content-Type, Authorization"
	defaultCORSOrigin = "*"
)

type Options struct {
	AllowOrigin string
}

func RegisterRoutes(h *route.Engine, opts Options, quotes *market.Service, narr *narrative.Service) {
	origin := opts.AllowOrigin
	if origin == "" {
		origin = defaultCORSOrigin
	}

	h.Use(requestID())

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.Any(QuotesPath, withCORS(origin, http.MethodGet, func(ctx context.Context, c *app.RequestContext) {
		if quotes == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "market service not configured",
			})
			return
		}
		res, err := quotes.Collect(ctx)
		if err != nil {
			hlog.CtxErrorf(ctx, "req=%s fetch quotes config error: %v", c.GetString(requestIDKey), err)
			msg := err.Error()
			if errors.Is(err, market.ErrMissingAPIKey) {
				msg = "API Key ausente."
			}
			c.JSON(http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": msg,
			})
			return
		}
		hlog.CtxInfof(ctx, "req=%s quotes source=%s session=%s fallbacks=%d", c.GetString(requestIDKey), res.Source, res.Session, len(res.Fallbacks))

		body := map[string]any{
			"success": res.Success,
			"quotes":  quotesJSON(res.Quotes),
		}
		if res.Message != "" {
			body["message"] = res.Message
		}
		c.JSON(http.StatusOK, body)
	}))

	h.Any(HumorPath, withCORS(origin, http.MethodPost, func(ctx context.Context, c *app.RequestContext) {
		in, err := narrative.ParseInput(c.Request.Body())
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"message": strings.TrimPrefix(err.Error(), narrative.ErrInvalidInput.Error()+": "),
			})
			return
		}

		if !narr.Enabled() {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": narr.DisabledReason(),
				"details": narrative.ErrNotConfigured.Error(),
			})
			return
		}

		html, err := narr.Analyze(ctx, in)
		if err != nil {
			hlog.CtxErrorf(ctx, "req=%s narrative error: %v", c.GetString(requestIDKey), err)
			c.JSON(http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "Erro na API de geração de texto.",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"html":    html,
		})
	}))

	h.GET(HumorPingPath, func(ctx context.Context, c *app.RequestContext) {
		resp, err := narr.Ping(ctx)
		if err != nil {
			hlog.CtxWarnf(ctx, "req=%s narrative ping error: %v", c.GetString(requestIDKey), err)
		}
		c.JSON(http.StatusOK, resp)
	})
}

// withCORS answers pre-flight requests, rejects every method other than
// allowed with 405 and sets the CORS headers on all responses.
func withCORS(origin, allowed string, next app.HandlerFunc) app.HandlerFunc {
	methods := allowed + "," + http.MethodOptions
	return func(ctx context.Context, c *app.RequestContext) {
		c.Response.Header.Set("Access-Control-Allow-Credentials", "true")
		c.Response.Header.Set("Access-Control-Allow-Origin", origin)
		c.Response.Header.Set("Access-Control-Allow-Methods", methods)
		c.Response.Header.Set("Access-Control-Allow-Headers", corsAllowHeaders)

		switch string(c.Method()) {
		case http.MethodOptions:
			c.Status(http.StatusOK)
		case allowed:
			next(ctx, c)
		default:
			c.Response.Header.Set("Allow", methods)
			c.JSON(http.StatusMethodNotAllowed, map[string]any{
				"success": false,
				"message": "Método não permitido.",
			})
		}
	}
}

func requestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Response.Header.Set(requestIDHeader, id)
		c.Next(ctx)
	}
}

func quotesJSON(in map[market.IndicatorKey]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}
