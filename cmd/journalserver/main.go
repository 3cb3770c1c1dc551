package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghiac/journal"
	"github.com/ghiac/journal/internal/config"
	"github.com/ghiac/journal/internal/journallog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		journallog.Log.Errorf("config: %v", err)
		os.Exit(1)
	}

	journallog.Log.Infof("=== Journal Server ===")
	journallog.Log.Infof("DB driver: %s", cfg.DB.Driver)
	journallog.Log.Infof("Listen address: %s", cfg.Address())

	j, err := journal.New(cfg)
	if err != nil {
		journallog.Log.Errorf("failed to build journal: %v", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: j.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			journallog.Log.Errorf("http server: %v", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(srv, j)
}

// waitForShutdown blocks until an interrupt or SIGTERM, then drains
// in-flight requests before closing the store.
func waitForShutdown(srv *http.Server, j *journal.Journal) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	journallog.Log.Infof("received signal: %v, initiating graceful shutdown...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		journallog.Log.Errorf("http server shutdown: %v", err)
	}
	if err := j.Close(ctx); err != nil {
		journallog.Log.Errorf("store close: %v", err)
	}
	journallog.Log.Infof("graceful shutdown completed")
}
