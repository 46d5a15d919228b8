package main

import (
	"fmt"
	"log"

	"findocs/internal/config"
	"findocs/internal/extractor"
	"findocs/internal/extractor/claude"
	"findocs/internal/extractor/gemini"
	"findocs/internal/extractor/openai"
	"findocs/internal/handler"
	"findocs/internal/port"
	"findocs/internal/repository/postgres"
	"findocs/internal/router"
	"findocs/internal/service"
	s3storage "findocs/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	registerExtractionProviders()

	// Build the extraction chain in configured fallback order
	var extractors []port.StructuredExtractor
	var names []string
	for _, providerCfg := range cfg.Extractor.Providers() {
		ext, err := extractor.NewExtractor(providerCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize extractor %q: %w", providerCfg.Provider, err)
		}
		extractors = append(extractors, ext)
		names = append(names, providerCfg.Provider)
	}
	if len(extractors) == 0 {
		return fmt.Errorf("no extraction providers configured")
	}
	chain := extractor.NewFallbackExtractor(extractors, names)

	// Initialize services
	docSvc := service.NewDocumentService(docRepo, s3Client, chain, cfg, nil)

	// Initialize handlers
	docH := handler.NewDocumentHandler(docSvc)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(cfg, docH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func registerExtractionProviders() {
	extractor.RegisterProvider("openai", func(cfg *config.ExtractorProviderConfig) (port.StructuredExtractor, error) {
		return openai.NewExtractor(cfg), nil
	})
	extractor.RegisterProvider("claude", func(cfg *config.ExtractorProviderConfig) (port.StructuredExtractor, error) {
		return claude.NewExtractor(cfg), nil
	})
	extractor.RegisterProvider("gemini", func(cfg *config.ExtractorProviderConfig) (port.StructuredExtractor, error) {
		return gemini.NewExtractor(cfg), nil
	})
}
