// Package main is the entry point for the vision-language model server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vlmodel/config"
	"vlmodel/internal/app"
	"vlmodel/internal/logging"
	"vlmodel/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	envFile := flag.String("env", "", "Path to an env file to load before reading configuration")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		// Optional: fall back to a .env in the working directory
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting vlmodel",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// The runtime may still be loading model weights; warn but keep serving.
	probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := application.CheckRuntime(probeCtx); err != nil {
		slog.Warn("inference runtime not reachable yet", "url", cfg.Model.RuntimeURL, "error", err)
	}
	probeCancel()

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := application.Start(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
