package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"retrieval-orchestrator/internal/di"
	"retrieval-orchestrator/internal/infra"
	"retrieval-orchestrator/internal/infra/config"
	"retrieval-orchestrator/internal/infra/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New()
	slog.SetDefault(log)

	var dbPool *pgxpool.Pool
	if cfg.Store == "postgres" {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err := infra.NewPostgresDB(context.Background(), dsn)
		if err != nil {
			log.Error("failed to connect to db", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dbPool = pool
	}

	components, err := di.NewApplicationComponents(cfg, dbPool, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	components.Handler.Register(e)

	e.GET("/readyz", func(c echo.Context) error {
		if dbPool != nil {
			if err := dbPool.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting server", "addr", addr, "store", cfg.Store)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
