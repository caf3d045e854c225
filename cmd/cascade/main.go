package main

import (
	"context"
	"embed"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tigerroll/cascade/internal/app"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// embeddedConfig embeds the application's YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// migrationsFS embeds the schema migration files.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

func main() {
	sourceFile := flag.String("source", "", "path to the sales CSV file to ingest")
	flag.Parse()

	if *sourceFile == "" {
		logger.Fatalf("Usage: cascade -source <sales.csv>")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	err := app.RunApplication(ctx, app.Params{
		EnvFilePath:    envFilePath,
		EmbeddedConfig: embeddedConfig,
		MigrationsFS:   migrationsFS,
		MigrationsPath: "resources/migrations",
		SourceFile:     *sourceFile,
	})
	if err != nil {
		logger.Errorf("Pipeline run failed: %v", err)
		os.Exit(1)
	}
}
