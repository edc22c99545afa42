package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/acme/task-confirm-caller/internal/api"
	"github.com/acme/task-confirm-caller/internal/app"
	"github.com/acme/task-confirm-caller/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry,
		container.Config.App.Name, container.Config.App.Version)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	handlerSet, err := container.HandlerSet()
	if err != nil {
		log.Fatalf("failed to build handlers: %v", err)
	}
	server := api.NewServer(container.Config.HTTP, handlerSet)

	svc, err := container.Scheduler()
	if err != nil {
		log.Fatalf("failed to build scheduler: %v", err)
	}

	errc := make(chan error, 2)
	go func() { errc <- server.Start(ctx) }()
	go func() { errc <- svc.Run(ctx) }()

	if err := <-errc; err != nil && ctx.Err() == nil {
		log.Fatalf("service terminated: %v", err)
	}
	cancel()
	<-errc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
