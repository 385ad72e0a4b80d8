package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inksnap-backend/config"
	"inksnap-backend/gateway"
	"inksnap-backend/routes"
	"inksnap-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Log)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.ConnectDB(cfg.Database)
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}

	hub := gateway.NewHub(log)
	store := gateway.NewGormStore(db, hub, log)
	storage, err := gateway.NewDiskStorage(cfg.Storage.Dir, cfg.Storage.BaseURL, cfg.Storage.MaxBytes)
	if err != nil {
		return err
	}
	deps := services.Deps{Store: store, Storage: storage, Realtime: hub, Logger: log}

	if cfg.Reminders.Enabled {
		reminders := services.NewReminderService(store, services.NewTwilioSender(cfg.Twilio), cfg.Reminders.Channel, log)
		stop, err := reminders.Start(cfg.Reminders.Schedule)
		if err != nil {
			return err
		}
		defer stop()
	}

	r := routes.SetupRouter(cfg, routes.NewHandlers(cfg, deps), log)
	if !cfg.IsProduction() {
		printRoutes(r)
	}

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", srv.Addr), slog.String("db", cfg.Database.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

func printRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
