package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
type Config struct {
	Env        string `envconfig:"ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"debug"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8000"`

	// PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" required:"true"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"5m"`
	// Secret field WITHOUT an envconfig tag, loaded separately.
	DBPassword string

	// Redis (rate limiter store)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string

	// JWT settings. The two secrets are independent so a leaked access
	// secret cannot mint refresh tokens and vice versa.
	AccessTokenSecret  string
	RefreshTokenSecret string
	PasswordPepper     string
	AccessTokenTTL     time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL    time.Duration `envconfig:"JWT_REFRESH_TOKEN_TTL" default:"168h"` // 7 days

	// CORS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Cloudinary (avatar storage)
	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string

	// Multipart uploads are spooled here before being pushed to Cloudinary.
	UploadTempDir string `envconfig:"UPLOAD_TEMP_DIR" default:"./public/temp"`

	// Requests per minute per client IP on the auth endpoints.
	RateLimitPerMinute uint `envconfig:"RATE_LIMIT_PER_MINUTE" default:"10"`
}

// GetAllowedOrigins splits the CORSAllowedOrigins string into a slice.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// IsProduction reports whether the service runs in a production-like
// environment. Diagnostic detail never reaches clients when this is true.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig(envFilePath string) (*Config, error) {
	if _, err := os.Stat(envFilePath); err == nil {
		if err := godotenv.Load(envFilePath); err != nil {
			log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
		} else {
			log.Printf("Loaded configuration from %s", envFilePath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	// Required secrets.
	var loadErr error
	cfg.DBPassword, loadErr = ReadSecret("db_password", "DB_PASSWORD")
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.AccessTokenSecret, loadErr = ReadSecret("access_token_secret", "ACCESS_TOKEN_SECRET")
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.RefreshTokenSecret, loadErr = ReadSecret("refresh_token_secret", "REFRESH_TOKEN_SECRET")
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.PasswordPepper, loadErr = ReadSecret("password_pepper", "PASSWORD_PEPPER")
	if loadErr != nil {
		return nil, loadErr
	}

	// Optional secrets.
	if redisPass, err := ReadSecret("redis_password", "REDIS_PASSWORD"); err == nil {
		cfg.RedisPassword = redisPass
	} else {
		log.Printf("Optional secret 'redis_password' not found: %v. Assuming no password.", err)
	}
	if cldSecret, err := ReadSecret("cloudinary_api_secret", "CLOUDINARY_API_SECRET"); err == nil {
		cfg.CloudinaryAPISecret = cldSecret
	} else {
		log.Printf("Optional secret 'cloudinary_api_secret' not found: %v. Avatar uploads will be disabled.", err)
	}

	log.Println("Configuration loaded successfully (secrets read from files).")
	return &cfg, nil
}
