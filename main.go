package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quotebias/internal/config"
	"quotebias/internal/container"
	"quotebias/ui"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create dependency injection container
	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Close()

	if err := appContainer.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Warm the dataset cache so configuration errors surface at startup
	if _, _, err := appContainer.Store.Datasets(ctx); err != nil {
		log.Fatalf("Failed to load datasets: %v", err)
	}

	app := ui.NewApp(ui.Config{Port: appConfig.Server.Port, Metrics: appContainer.MetricsHandler()}, appContainer.Handler, appContainer.Renderer, appContainer.Logger)
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
