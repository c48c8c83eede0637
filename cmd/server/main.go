package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/config"
	"github.com/windfall/pronounce_service/internal/handler/http"
	"github.com/windfall/pronounce_service/internal/logger"
	"github.com/windfall/pronounce_service/internal/observe"
	"github.com/windfall/pronounce_service/internal/repository"
	"github.com/windfall/pronounce_service/internal/server"
	"github.com/windfall/pronounce_service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Environment).Msg("Starting pronounce_service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observe.Default()
	policy := client.RetryPolicy{
		MaxAttempts:     cfg.AssessorMaxAttempts,
		InitialInterval: cfg.AssessorInitialBackoff,
		MaxElapsed:      cfg.AssessorRetryBudget,
	}
	onRetry := func(provider string, attempt int, err error) {
		metrics.RecordRetry(ctx, provider)
		log.Warn().Err(err).Str("provider", provider).Int("attempt", attempt).Msg("Retrying provider call")
	}

	// Speech assessment and synthesis
	var (
		assessor    service.Assessor
		synthesizer service.Synthesizer
	)
	if cfg.AzureAISpeechKey != "" && cfg.AzureServiceRegion != "" {
		assessor = client.NewAzureSpeechClient(cfg.AzureAISpeechKey, cfg.AzureServiceRegion,
			client.WithSpeechRetryPolicy(policy),
			client.WithSpeechRetryObserver(onRetry),
		)
		synthesizer = client.NewAzureTTSClient(cfg.AzureAISpeechKey, cfg.AzureServiceRegion,
			client.WithTTSRetryPolicy(policy),
			client.WithTTSRetryObserver(onRetry),
			client.WithTTSFormat(cfg.SynthesisOutputFormat),
		)
	} else {
		log.Warn().Msg("Azure Speech configuration missing, assessment and synthesis disabled")
	}

	var detector service.LanguageDetector
	if cfg.AzureTranslatorKey != "" {
		detector = client.NewAzureTranslatorClient(cfg.AzureTranslatorKey, cfg.AzureTranslatorRegion,
			client.WithTranslatorRetryPolicy(policy),
			client.WithTranslatorRetryObserver(onRetry),
		)
	} else {
		log.Info().Msg("AZURE_TRANSLATOR_KEY not set, using script-based language detection")
	}

	// Google Cloud
	var sa *client.ServiceAccount
	if cfg.GCPServiceAccountBase64 != "" {
		sa, err = client.LoadServiceAccount(ctx, cfg.GCPServiceAccountBase64)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load GCP service account")
		} else {
			log.Info().Str("project_id", sa.ProjectID).Msg("GCP service account loaded")
		}
	}

	// Redis
	var redisClient *client.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = client.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Redis client")
		} else {
			log.Info().Msg("Redis client initialized")
		}
	}

	// Postgres
	var postgresClient *client.PostgresClient
	if cfg.DatabaseURL != "" {
		postgresClient, err = client.NewPostgresClient(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Postgres client")
		} else {
			log.Info().Msg("Postgres client initialized")
		}
	}

	// Pub/Sub
	var pubsubClient *client.PubSubClient
	if sa != nil && cfg.PubSubTopicID != "" {
		pubsubClient, err = client.NewPubSubClient(ctx, sa.ProjectID, cfg.PubSubTopicID, sa.ClientOption())
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Pub/Sub client")
		}
	}

	// Sample storage
	sampleStore, closeStore := newSampleStore(ctx, cfg, sa, log)
	defer closeStore()

	// Coaching LLMs
	coaches := map[string]service.Completer{}
	if sa != nil {
		gemini, err := client.NewGeminiClientWithCredentials(ctx, sa, cfg.GCPLocation)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			coaches["gemini"] = gemini
		}
	}
	var geminiLite *client.GeminiFlashLiteClient
	if cfg.GeminiAPIKey != "" {
		geminiLite, err = client.NewGeminiFlashLiteClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Gemini Flash Lite client")
		} else {
			coaches["gemini-lite"] = geminiLite
		}
	}
	if cfg.OpenAIAPIKey != "" {
		if cfg.OpenAIBaseURL != "" {
			coaches["openai"] = client.NewOpenAIClientWithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		} else {
			coaches["openai"] = client.NewOpenAIClient(cfg.OpenAIAPIKey)
		}
	}

	// Services
	var (
		assessmentRepo repository.AssessmentRepository
		publisher      service.EventPublisher
		queue          service.ResultQueue
	)
	if postgresClient != nil {
		assessmentRepo = repository.NewPostgresAssessmentRepository(postgresClient)
	}
	if pubsubClient != nil {
		publisher = pubsubClient
	}
	if redisClient != nil {
		queue = redisClient
	}

	synthesisService := service.NewSynthesisService(synthesizer, detector, metrics, logger.Component(log, "synthesis")).
		WithMinConfidence(cfg.LanguageMinConfidence)
	pronunciationService := service.NewPronunciationService(assessor, synthesisService, metrics, logger.Component(log, "assessment"))
	historyService := service.NewHistoryService(assessmentRepo, publisher, logger.Component(log, "history"))
	jobService := service.NewJobService(pronunciationService, historyService, queue, logger.Component(log, "jobs")).
		WithTimeouts(cfg.JobTimeout, cfg.JobWait).
		WithMaxJobs(cfg.JobMaxInFlight)
	sampleService := service.NewSampleService(pronunciationService, sampleStore, logger.Component(log, "samples"))
	coachingService := service.NewCoachingService(coaches, cfg.CoachProvider, logger.Component(log, "coaching"))

	// Handlers
	checks := map[string]http.Pinger{}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	if postgresClient != nil {
		checks["postgres"] = postgresClient
	}
	if pubsubClient != nil {
		checks["pubsub"] = pubsubClient
	}
	if sampleStore != nil {
		checks["samples"] = sampleStore
	}
	healthHandler := http.NewHealthHandler(checks)
	assessmentHandler := http.NewAssessmentHandler(log, pronunciationService, jobService, historyService, coachingService)
	sampleHandler := http.NewSampleHandler(log, pronunciationService, sampleService, cfg.DefaultVoice)

	router := server.NewRouter(cfg, log, healthHandler, assessmentHandler, sampleHandler)
	httpServer := server.NewHTTPServer(cfg, log, router)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	log.Info().
		Str("http_addr", cfg.HTTPAddress()).
		Msg("Servers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if geminiLite != nil {
		geminiLite.Close()
	}
	if pubsubClient != nil {
		pubsubClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if postgresClient != nil {
		postgresClient.Close()
	}

	log.Info().Msg("Server stopped")
}

// pingableStore is a blob store the readiness probe can check.
type pingableStore interface {
	service.BlobStore
	http.Pinger
}

// newSampleStore builds the blob store SAMPLE_STORE selects. The returned
// close func is always safe to call.
func newSampleStore(ctx context.Context, cfg *config.Config, sa *client.ServiceAccount, log zerolog.Logger) (pingableStore, func()) {
	noop := func() {}
	switch cfg.SampleStore {
	case config.SampleStoreR2:
		if cfg.CloudflareAccessKeyID == "" || cfg.CloudflareSecretKey == "" || cfg.CloudflareR2Endpoint == "" || cfg.CloudflareBucketName == "" {
			log.Warn().Msg("Cloudflare configuration missing, sample storage disabled")
			return nil, noop
		}
		r2, err := client.NewCloudflareClient(ctx,
			cfg.CloudflareAccessKeyID,
			cfg.CloudflareSecretKey,
			cfg.CloudflareR2Endpoint,
			cfg.CloudflareBucketName,
			cfg.CloudflarePublicURL,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Cloudflare client")
			return nil, noop
		}
		log.Info().Msg("Cloudflare R2 sample storage initialized")
		return r2, noop
	case config.SampleStoreGCS:
		if sa == nil || cfg.GCSBucketName == "" {
			log.Warn().Msg("GCS configuration missing, sample storage disabled")
			return nil, noop
		}
		gcs, err := client.NewStorageClient(ctx, cfg.GCSBucketName, sa.ClientOption())
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize GCS client")
			return nil, noop
		}
		log.Info().Msg("GCS sample storage initialized")
		return gcs, gcs.Close
	default:
		return nil, noop
	}
}
