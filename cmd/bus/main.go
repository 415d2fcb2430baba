// Command bus runs the SOA service bus: it accepts frames on the
// platform's front port and forwards each to the backend registered
// for its service tag, relaying the response back to the client.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/bus"
	"github.com/iliyamo/campus-space-reservation/internal/config"
	"github.com/iliyamo/campus-space-reservation/internal/logger"
)

func main() {
	_ = godotenv.Load() // optional .env for development
	cfg := config.LoadBus()

	zl := logger.New(cfg.Env)
	defer func() { _ = zl.Sync() }()

	routes, err := bus.ParseRoutes(cfg.Routes)
	if err != nil {
		zl.Fatal("tabla de rutas inválida", zap.String("rutas", cfg.Routes), zap.Error(err))
	}

	b := bus.New(bus.Config{
		Addr:        cfg.Addr,
		Routes:      routes,
		DialTimeout: cfg.DialTimeout,
	}, zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Serve(ctx); err != nil {
		zl.Fatal("bus detenido con error", zap.Error(err))
	}
}
