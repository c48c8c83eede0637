package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Sample stores accepted by SAMPLE_STORE.
const (
	SampleStoreNone = ""
	SampleStoreR2   = "r2"
	SampleStoreGCS  = "gcs"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Host     string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"SERVER_HTTP_PORT" default:"8080"`

	Environment string `envconfig:"SERVER_ENV" default:"development"`

	// Timeouts
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AssessTimeout   time.Duration `envconfig:"ASSESS_TIMEOUT" default:"45s"`
	JobTimeout      time.Duration `envconfig:"JOB_TIMEOUT" default:"60s"`
	JobWait         time.Duration `envconfig:"JOB_WAIT" default:"10s"`
	JobMaxInFlight  int           `envconfig:"JOB_MAX_IN_FLIGHT" default:"8"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Azure AI Speech (assessment and synthesis)
	AzureAISpeechKey   string `envconfig:"AZURE_AI_SPEECH_KEY"`
	AzureServiceRegion string `envconfig:"AZURE_SERVICE_REGION"`

	// Azure AI Translator (language detection)
	AzureTranslatorKey    string `envconfig:"AZURE_TRANSLATOR_KEY"`
	AzureTranslatorRegion string `envconfig:"AZURE_TRANSLATOR_REGION"`

	// Provider retry policy
	AssessorMaxAttempts    int           `envconfig:"ASSESSOR_MAX_ATTEMPTS" default:"3"`
	AssessorInitialBackoff time.Duration `envconfig:"ASSESSOR_INITIAL_BACKOFF" default:"500ms"`
	AssessorRetryBudget    time.Duration `envconfig:"ASSESSOR_RETRY_BUDGET" default:"5s"`

	// Synthesis
	LanguageMinConfidence float64 `envconfig:"LANGUAGE_MIN_CONFIDENCE" default:"0.5"`
	DefaultVoice          string  `envconfig:"DEFAULT_VOICE" default:"en-US-JennyNeural"`
	SynthesisOutputFormat string  `envconfig:"SYNTHESIS_OUTPUT_FORMAT" default:"riff-24khz-16bit-mono-pcm"`

	// Redis
	RedisURL string `envconfig:"REDIS_URL"`

	// Database
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	// Sample storage
	SampleStore string `envconfig:"SAMPLE_STORE"`

	// Cloudflare R2
	CloudflareAccessKeyID string `envconfig:"CLOUDFLARE_ACCESS_KEY_ID"`
	CloudflareSecretKey   string `envconfig:"CLOUDFLARE_SECRET_ACCESS_KEY"`
	CloudflareR2Endpoint  string `envconfig:"CLOUDFLARE_R2_ENDPOINT"`
	CloudflarePublicURL   string `envconfig:"CLOUDFLARE_PUBLIC_URL"`
	CloudflareBucketName  string `envconfig:"CLOUDFLARE_BUCKET_NAME"`

	// Google Cloud (GCS, Pub/Sub, Vertex AI Gemini)
	GCPServiceAccountBase64 string `envconfig:"GCP_SA_BASE64"`
	GCPLocation             string `envconfig:"GCP_LOCATION" default:"asia-southeast1"`
	GCSBucketName           string `envconfig:"GCS_BUCKET_NAME"`
	PubSubTopicID           string `envconfig:"PUBSUB_TOPIC_ID"`

	// Coaching LLMs
	CoachProvider string `envconfig:"COACH_PROVIDER" default:"gemini"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	CORSAllowedMethods []string `envconfig:"CORS_ALLOWED_METHODS" default:"GET,POST,OPTIONS"`
	CORSAllowedHeaders []string `envconfig:"CORS_ALLOWED_HEADERS" default:"Accept,Authorization,Content-Type,X-Request-ID"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.AssessorMaxAttempts < 1 {
		return fmt.Errorf("ASSESSOR_MAX_ATTEMPTS must be at least 1, got %d", c.AssessorMaxAttempts)
	}
	if c.AssessorInitialBackoff <= 0 {
		return fmt.Errorf("ASSESSOR_INITIAL_BACKOFF must be positive, got %s", c.AssessorInitialBackoff)
	}
	if c.AssessorRetryBudget <= 0 {
		return fmt.Errorf("ASSESSOR_RETRY_BUDGET must be positive, got %s", c.AssessorRetryBudget)
	}
	if c.LanguageMinConfidence < 0 || c.LanguageMinConfidence > 1 {
		return fmt.Errorf("LANGUAGE_MIN_CONFIDENCE must be within [0,1], got %v", c.LanguageMinConfidence)
	}
	switch c.SampleStore {
	case SampleStoreNone, SampleStoreR2, SampleStoreGCS:
	default:
		return fmt.Errorf("SAMPLE_STORE must be %q, %q or empty, got %q", SampleStoreR2, SampleStoreGCS, c.SampleStore)
	}
	if c.AssessTimeout <= 0 || c.JobTimeout <= 0 || c.JobWait <= 0 {
		return fmt.Errorf("ASSESS_TIMEOUT, JOB_TIMEOUT and JOB_WAIT must be positive")
	}
	if c.JobMaxInFlight < 1 {
		return fmt.Errorf("JOB_MAX_IN_FLIGHT must be at least 1, got %d", c.JobMaxInFlight)
	}
	return nil
}

// HTTPAddress returns the HTTP server address.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
