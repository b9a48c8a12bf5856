package model

import "time"

// ================ Config ================
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

type GatewayConfig struct {
	Provider      string        `envconfig:"GATEWAY_PROVIDER" default:"gemini"`
	Model         string        `envconfig:"GATEWAY_MODEL" default:"gemini-2.5-flash"`
	MaxTokens     int           `envconfig:"GATEWAY_MAX_TOKENS" default:"1024"`
	Timeout       time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	ProbeInterval time.Duration `envconfig:"GATEWAY_PROBE_INTERVAL" default:"30s"`
	Apology       string        `envconfig:"GATEWAY_APOLOGY" default:"I'm sorry, the benefits assistant is temporarily unavailable. Please try again in a few minutes."`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
}

type ExtractionConfig struct {
	Temperature   float32 `envconfig:"EXTRACTION_TEMPERATURE" default:"0"`
	MinConfidence float64 `envconfig:"EXTRACTION_MIN_CONFIDENCE" default:"0.5"`
}

type ClassifierConfig struct {
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}

type ComposerConfig struct {
	Temperature float32 `envconfig:"COMPOSER_TEMPERATURE" default:"0.3"`
	ServiceName string  `envconfig:"COMPOSER_SERVICE_NAME" default:"HR Benefits Service Center"`
}

type SessionConfig struct {
	Backend       string        `envconfig:"SESSION_BACKEND" default:"memory"`
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	ContextTurns  int           `envconfig:"SESSION_CONTEXT_TURNS" default:"5"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1m"`
}

type RecordsConfig struct {
	Backend     string `envconfig:"RECORDS_BACKEND" default:"fixtures"`
	DSN         string `envconfig:"RECORDS_DSN" default:"data/benefits.db"`
	FixturesDir string `envconfig:"RECORDS_FIXTURES_DIR"`
}
