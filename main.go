package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Aashish23092/slice-receipts/app"
	"github.com/Aashish23092/slice-receipts/config"
	"github.com/Aashish23092/slice-receipts/handler"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg := config.LoadConfig()
	config.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(context.Background(), cfg, true)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	router := handler.NewRouter(
		handler.NewReceiptHandler(a.Receipts, cfg.MaxFileSize),
		handler.NewLobbyHandler(a.Lobbies),
		handler.RouterConfig{
			AllowedOrigins:      cfg.CORSAllowedOrigins,
			Version:             cfg.AppVersion,
			OCREngine:           cfg.OCREngine,
			SecondaryConfigured: a.Receipts.SecondaryConfigured(),
			MaxFileSize:         cfg.MaxFileSize,
		},
	)

	slog.Info("starting slice receipts service", "port", cfg.ServerPort, "version", cfg.AppVersion)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
