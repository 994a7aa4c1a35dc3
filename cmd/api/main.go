// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/redapplexx/cpay-sub003/internal"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	application := app.NewApplication()
	if err := application.Initialize(context.Background()); err != nil {
		application.Logger.Error("Failed to initialize application", "error", err)
		return err
	}

	// Settlement runs past the request deadline once a transaction is committing,
	// so writes and shutdown wait for the whole commit budget.
	budget := application.WriteTimeout()
	server := &http.Server{
		Addr:              ":" + application.Config.ServerPort,
		Handler:           application.HTTPHandler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      budget,
		IdleTimeout:       idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		application.Logger.Info("Starting HTTP server", "port", application.Config.ServerPort, "write_timeout", budget)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			application.Logger.Error("HTTP server failed", "error", err)
			_ = application.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	application.Logger.Info("Shutting down HTTP server...", "grace", budget)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Application shutdown failed", "error", err)
		return err
	}

	application.Logger.Info("Application gracefully stopped.")
	return nil
}
