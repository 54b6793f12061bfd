// Package config loads CodeSherpa settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Model provider names accepted in MODEL_PROVIDER
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultWhatsAppVerifyToken is the token configured on the Meta webhook by default
const DefaultWhatsAppVerifyToken = "codesherpa_secure_verify_token"

// Config holds all application settings
type Config struct {
	ProjectName string
	Version     string
	APIV1Str    string
	Port        string
	Environment string

	DatabaseURL string
	AutoMigrate bool

	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	CORSOrigins []string

	RedisURL string

	// Model gateway
	ModelProvider      string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	BedrockModelID     string
	AnthropicAPIKey    string
	AnthropicModel     string
	OpenAIAPIKey       string
	OpenAIModel        string
	MockLatency        time.Duration

	// Integrations
	GitHubToken         string
	GitHubWebhookSecret string
	WhatsAppVerifyToken string
	ReviewArchiveBucket string

	EnableMetrics      bool
	RateLimitPerMinute int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		ProjectName: getEnv("PROJECT_NAME", "CodeSherpa"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		APIV1Str:    getEnv("API_V1_STR", "/api/v1"),
		Port:        getEnv("PORT", "8000"),
		Environment: GetEnvironment(),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://./codesherpa.db"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		JWTSecret:          getEnvAny([]string{"JWT_SECRET", "SECRET_KEY"}, ""),
		AccessTokenExpiry:  time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTokenExpiry: time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:5174",
			"http://localhost:3000",
			"http://127.0.0.1:5173",
		}),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		ModelProvider:      strings.ToLower(getEnv("MODEL_PROVIDER", ProviderBedrock)),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		AnthropicAPIKey:    getEnvAny([]string{"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"}, ""),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MockLatency:        time.Duration(getEnvInt("MOCK_LATENCY_MS", 1000)) * time.Millisecond,

		GitHubToken:         getEnv("GITHUB_TOKEN", ""),
		GitHubWebhookSecret: getEnv("GITHUB_WEBHOOK_SECRET", ""),
		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", DefaultWhatsAppVerifyToken),
		ReviewArchiveBucket: getEnv("REVIEW_ARCHIVE_BUCKET", ""),

		EnableMetrics:      getEnvBool("ENABLE_METRICS", true),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
	}
}

// Validate checks the settings that must hold before the server starts.
// Outside production a missing JWT secret is replaced by a random one.
func (c *Config) Validate() error {
	switch c.ModelProvider {
	case ProviderBedrock, ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported MODEL_PROVIDER %q", c.ModelProvider)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		secret, err := GenerateSecureSecret(48)
		if err != nil {
			return err
		}
		c.JWTSecret = secret
		return nil
	}
	if c.IsProduction() {
		if err := validateJWTSecret(c.JWTSecret); err != nil {
			return fmt.Errorf("JWT_SECRET %w", err)
		}
	}
	return nil
}

// IsProduction reports whether the loaded environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction || c.Environment == "prod"
}

// HasModelCredentials reports whether the selected provider has usable credentials
func (c *Config) HasModelCredentials() bool {
	switch c.ModelProvider {
	case ProviderAnthropic:
		return !IsPlaceholderCredential(c.AnthropicAPIKey)
	case ProviderOpenAI:
		return !IsPlaceholderCredential(c.OpenAIAPIKey)
	default:
		return !IsPlaceholderCredential(c.AWSAccessKeyID) && !IsPlaceholderCredential(c.AWSSecretAccessKey)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAny(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
