package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"b3-humor/internal/api"
	"b3-humor/internal/app"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

func main() {
	configPath := flag.String("config", "configs/app.yaml", "path to the YAML config file")
	flag.Parse()

	rt, err := app.Build(context.Background(), *configPath)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	cfg := rt.Config

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	api.RegisterRoutes(h.Engine, api.Options{AllowOrigin: cfg.CORS.AllowOrigin}, rt.Quotes, rt.Narrative)
	hlog.Infof("route registered: GET %s", api.QuotesPath)
	hlog.Infof("route registered: POST %s", api.HumorPath)

	hlog.Infof("server starting on %s (log.level=%s quotes=%s/%s narrative=%s)",
		addr, cfg.Log.Level, cfg.Quotes.Provider, cfg.Quotes.Mode, cfg.Narrative.Backend)
	if err := h.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}
