package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventix/internal/api"
	"eventix/internal/config"
	"eventix/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// "api validate" checks the configuration and exits
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		os.Exit(validate(cfg))
	}

	for _, problem := range cfg.Validate() {
		logger.Get().Warn("Configuration problem", "problem", problem.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	server, err := api.NewServer(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to start API", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
	}

	go func() {
		logger.Get().Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		logger.Get().Error("Error during cleanup", "error", err)
	}

	logger.Get().Info("Server stopped")
}

func validate(cfg *config.Config) int {
	problems := cfg.Validate()
	if len(problems) == 0 {
		fmt.Println("configuration OK")
		return 0
	}

	for _, problem := range problems {
		fmt.Println("-", problem)
	}
	return 1
}
