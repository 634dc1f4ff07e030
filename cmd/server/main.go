package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"docwatch/internal/api"
	"docwatch/internal/app"
	"docwatch/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to docwatch.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLog := config.SetupLogger(cfg.Log.File, cfg.Log.SlogLevel())
	defer closeLog()

	// Initialize Services
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	r := api.NewRouter(api.NewHandler(a), cfg.Server.AllowedOrigins)

	// Get port from environment or config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	logger.Info("starting docwatch server",
		"addr", "http://localhost:"+port,
		"origins", cfg.Server.AllowedOrigins,
		"ai_provider", cfg.AI.Provider,
		"store", cfg.Store.Driver)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
