package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/generative-ai-go/genai"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	"github.com/openphi/deidentify/cmd/mainconfig"
	"github.com/openphi/deidentify/internal/api/router"
	"github.com/openphi/deidentify/internal/audit"
	appconfig "github.com/openphi/deidentify/internal/config"
	"github.com/openphi/deidentify/internal/detect"
	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/extract"
	"github.com/openphi/deidentify/internal/http/handlers"
	"github.com/openphi/deidentify/internal/jobs"
	"github.com/openphi/deidentify/internal/locate"
	"github.com/openphi/deidentify/internal/observability/metrics"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/internal/pipeline"
	"github.com/openphi/deidentify/internal/redact"
	"github.com/openphi/deidentify/internal/report"
	"github.com/openphi/deidentify/internal/storage"
	"github.com/openphi/deidentify/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting de-identification API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"classifier", cfg.ClassifierProvider,
		"storage", cfg.StorageBackend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Classifier
	var inner detect.Detector
	switch cfg.ClassifierProvider {
	case appconfig.ProviderBedrock:
		inner = detect.NewBedrockDetector(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, logger)
	case appconfig.ProviderOpenAI:
		inner = detect.NewOpenAIDetector(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	case appconfig.ProviderGemini:
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			logger.Error("failed to create Gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		inner = detect.NewGeminiDetector(client, cfg.GeminiModel, logger)
	}
	detector := detect.NewRetryingDetector(inner, cfg.ClassifierRetryAttempts, cfg.ClassifierRetryDelay, logger)

	// Category definitions
	definitions := phi.Definitions()
	if cfg.CategoriesFile != "" {
		definitions, err = phi.LoadDefinitions(cfg.CategoriesFile)
		if err != nil {
			logger.Error("failed to load category definitions", "path", cfg.CategoriesFile, "error", err)
			os.Exit(1)
		}
	}

	// Pipeline stages
	var extractOpts []extract.Option
	if !cfg.OCREnabled {
		extractOpts = append(extractOpts, extract.WithOCRDisabled())
	}
	extractor := extract.New(extract.NewTesseractEngine(cfg.OCRLanguage), logger, extractOpts...)

	dashboard := report.NewDashboard(cfg.DashboardHistorySize)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	pipe := pipeline.New(pipeline.Deps{
		Extractor:   extractor,
		Detector:    detector,
		Locator:     locate.New(),
		Redactor:    redact.New(logger),
		Dashboard:   dashboard,
		Definitions: definitions,
		Metrics:     pipelineMetrics,
		Logger:      logger,
	})

	// Artifact storage
	var artifacts storage.Store
	switch cfg.StorageBackend {
	case appconfig.StorageS3:
		artifacts = storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix, logger)
	default:
		local, err := storage.NewLocalStore(cfg.LocalStoragePath)
		if err != nil {
			logger.Error("failed to initialize local storage", "path", cfg.LocalStoragePath, "error", err)
			os.Exit(1)
		}
		artifacts = local
	}

	// Job queue, store, and worker pool
	var (
		jobStore  jobs.Store
		publisher *jobs.Publisher
		worker    *jobs.Worker
	)
	if cfg.UseMemoryQueue {
		queue := jobs.NewMemoryQueue(128)
		jobStore = jobs.NewMemoryStore()
		publisher = jobs.NewPublisher(queue, jobStore)
		worker = jobs.NewWorker(queue, jobStore, artifacts, pipe, cfg.WorkerCount, logger)
	} else {
		queue := jobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.JobsQueueURL)
		jobStore = jobs.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.JobsTable, logger)
		publisher = jobs.NewPublisher(queue, jobStore)
		worker = jobs.NewWorker(queue, jobStore, artifacts, pipe, cfg.WorkerCount, logger)
	}

	var workerWG sync.WaitGroup
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		worker.Run(ctx)
	}()

	// Audit trail (optional, requires Postgres)
	var auditService *audit.Service
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		auditService = audit.NewService(db)
	}

	deidentifyHandler := handlers.NewDeidentifyHandler(handlers.DeidentifyHandlerConfig{
		Processor:        pipe,
		Artifacts:        artifacts,
		Publisher:        publisher,
		JobStore:         jobStore,
		Dashboard:        dashboard,
		Audit:            auditService,
		MaxUploadBytes:   cfg.MaxUploadBytes(),
		DefaultMode:      document.Mode(cfg.Mode),
		DefaultThreshold: cfg.ConfidenceThreshold,
		Logger:           logger,
	})

	routerCfg := &router.Config{
		Logger:             logger,
		Deidentify:         deidentifyHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminJWTSecret:     cfg.AdminJWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if auditService != nil {
		routerCfg.Audit = handlers.NewAuditHandler(auditService, logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop the worker pool and wait for in-flight jobs.
	cancel()
	workerWG.Wait()

	logger.Info("server stopped")
}
