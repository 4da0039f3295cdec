package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string

	StripeSecretKey     string
	StripeWebhookSecret string

	RedisAddr     string
	RedisPassword string

	NotifyWebhookURL string
	AllowedOrigin    string

	// StorageDisk selects where payout statements are written: "local" or "s3".
	StorageDisk string
	StoragePath string
	S3Bucket    string
	S3Region    string
	S3Key       string
	S3Secret    string
	S3Endpoint  string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:              os.Getenv("DB_HOST"),
		DBUser:              os.Getenv("DB_USER"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              os.Getenv("DB_NAME"),
		DBPort:              os.Getenv("DB_PORT"),
		AppPort:             getEnv("APP_PORT", "8080"),
		AppEnv:              os.Getenv("APP_ENV"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		NotifyWebhookURL:    os.Getenv("NOTIFY_WEBHOOK_URL"),
		AllowedOrigin:       getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		StorageDisk:         getEnv("STORAGE_DISK", "local"),
		StoragePath:         getEnv("STORAGE_PATH", "./storage/statements"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3Region:            getEnv("S3_REGION", "eu-west-3"),
		S3Key:               os.Getenv("S3_KEY"),
		S3Secret:            os.Getenv("S3_SECRET"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsDevelopment reports whether APP_ENV names a local environment.
// An unset APP_ENV is not development.
func (c *Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}
