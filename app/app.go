// Package app assembles the services from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aashish23092/slice-receipts/client"
	"github.com/Aashish23092/slice-receipts/config"
	"github.com/Aashish23092/slice-receipts/repository"
	"github.com/Aashish23092/slice-receipts/service"
)

// App holds the wired services and the resources they own.
type App struct {
	Receipts *service.ReceiptService
	Lobbies  *service.LobbyService
	repo     repository.LobbyRepository
}

// New builds the receipt pipeline. The lobby store is opened only when
// withLobbies is set, so one-shot commands never touch the database.
func New(ctx context.Context, cfg *config.Config, withLobbies bool) (*App, error) {
	recognizer, err := NewRecognizer(cfg)
	if err != nil {
		return nil, err
	}

	var secondary service.SecondaryExtractor
	if cfg.SecondaryEnabled() {
		secondary = client.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}

	var archive service.ImageArchive
	if cfg.ArchiveEnabled() {
		store, err := client.NewR2Store(ctx, client.R2Config{
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2Bucket,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init receipt archive: %w", err)
		}
		archive = store
	}

	a := &App{
		Receipts: service.NewReceiptService(recognizer, service.NewPDFProcessor(), secondary, archive, cfg.GeminiTimeout),
	}
	if withLobbies {
		repo, err := openRepository(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.repo = repo
		a.Lobbies = service.NewLobbyService(repo)
	}

	slog.Info("services ready",
		"ocr_engine", cfg.OCREngine,
		"secondary", secondary != nil,
		"archive", archive != nil,
		"lobbies", withLobbies,
	)
	return a, nil
}

// NewRecognizer returns the OCR engine named by cfg.OCREngine.
func NewRecognizer(cfg *config.Config) (service.Recognizer, error) {
	switch cfg.OCREngine {
	case "tesseract", "":
		return client.NewTesseractClient(cfg.TesseractDataPath, cfg.TesseractLanguage), nil
	case "paddle":
		if cfg.PaddleAPIURL == "" {
			return nil, fmt.Errorf("OCR_ENGINE=paddle requires PADDLEOCR_API_URL")
		}
		return client.NewPaddleClient(cfg.PaddleAPIURL), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}
}

func openRepository(ctx context.Context, path string) (repository.LobbyRepository, error) {
	if path == config.InMemoryDB {
		return repository.NewMemoryRepository(), nil
	}
	repo, err := repository.NewSQLiteRepository(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lobby store: %w", err)
	}
	return repo, nil
}

// Close releases the lobby store.
func (a *App) Close() error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Close()
}
