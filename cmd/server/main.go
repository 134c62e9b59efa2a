package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fairaudit/internal/analysis"
	"fairaudit/internal/api"
	"fairaudit/internal/config"
	"fairaudit/internal/groundtruth"
	"fairaudit/internal/service"
	"fairaudit/internal/state"
)

func main() {
	// Configuration errors invalidate the whole run, so bail early.
	cfg, err := config.Load(config.DefaultConfigFile)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize Services
	corpus := state.NewCorpus()
	store := groundtruth.NewStore()
	csvService := analysis.NewCSVService()
	matcherService := service.NewMatcherService(cfg.Matcher)
	validatorService := service.NewValidatorService(matcherService)
	agreementService := service.NewAgreementService()
	complianceService := service.NewComplianceService(cfg.Rules, matcherService)

	// Preload the corpus when the datasets directory exists.
	if info, err := os.Stat(cfg.DatasetsDir); err == nil && info.IsDir() {
		loaded, skipped, err := csvService.LoadDirectory(cfg.DatasetsDir, corpus)
		if err != nil {
			log.Printf("Failed to preload corpus from %s: %v", cfg.DatasetsDir, err)
		} else {
			log.Printf("Preloaded %d datasets from %s (%d skipped)", len(loaded), cfg.DatasetsDir, len(skipped))
		}
	}

	// Initialize Handler
	handler := api.NewHandler(cfg, corpus, store, csvService, matcherService, validatorService, agreementService, complianceService)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001", "http://127.0.0.1:3000"},

		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fairaudit validation backend is running"))
	})

	// Register all API Routes
	handler.RegisterRoutes(r)

	log.Printf("Starting validation backend on http://localhost:%s", cfg.Port)
	log.Printf("Datasets directory: %s", cfg.DatasetsDir)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
