package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/api/handlers"
	"github.com/linesmerrill/event-checkin-api/api/scheduler"
	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.New()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zap.L().Sync() }()

	a := handlers.App{Config: *conf}
	if err := a.Initialize(ctx); err != nil { //initialize database and router
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	s := scheduler.NewScheduler(
		services.NewReconciler(services.NewStore(a.DB), a.Blobs),
		databases.NewSchedulerLockDatabase(a.DB),
	)
	if err := s.Start(conf.ReconcileCron); err != nil {
		zap.S().Fatalw("failed to start scheduler", "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.S().Infow("event-checkin-api is up and running",
			"port", conf.Port,
			"url", conf.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("failed to shut down server", "error", err)
	}
	s.Stop()
	if err := a.Client.Disconnect(shutdownCtx); err != nil {
		zap.S().Errorw("failed to disconnect from database", "error", err)
	}
}
