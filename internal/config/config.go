package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// PublicBaseURL prefixes links sent by email and signed file URLs.
	PublicBaseURL string

	StorageDir        string
	FileSigningSecret string
	SignedURLTTL      time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	AbandonmentInterval time.Duration
	AbandonmentMinGap   time.Duration

	RedisURL     string
	KafkaBrokers []string

	OpenAIAPIKey string
	OpenAIModel  string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		DBName:          getEnvOrDefault("DB_NAME", "digitalcart"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),

		PublicBaseURL: strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		StorageDir:        getEnvOrDefault("STORAGE_DIR", "./storage"),
		FileSigningSecret: getEnvOrDefault("FILE_SIGNING_SECRET", ""),
		SignedURLTTL:      getDurationEnv("SIGNED_URL_TTL", 60, time.Minute),

		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		Currency:            strings.ToUpper(getEnvOrDefault("CURRENCY", "USD")),

		SMTPHost:     getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:     getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUsername: getEnvOrDefault("SMTP_USERNAME", ""),
		SMTPPassword: getEnvOrDefault("SMTP_PASSWORD", ""),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "no-reply@digitalcart.local"),

		AbandonmentInterval: getDurationEnv("ABANDONMENT_INTERVAL", 5, time.Minute),
		AbandonmentMinGap:   getDurationEnv("ABANDONMENT_MIN_GAP", 60, time.Minute),

		RedisURL:     getEnvOrDefault("REDIS_URL", ""),
		KafkaBrokers: getListEnv("KAFKA_BROKERS"),

		OpenAIAPIKey: getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}

	if AppEnv.JWTSecret == "" {
		log.Println("[CONFIG] [WARN] JWT_SECRET is empty, tokens are signed with an empty key")
	}
	if AppEnv.FileSigningSecret == "" {
		AppEnv.FileSigningSecret = AppEnv.JWTSecret
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
