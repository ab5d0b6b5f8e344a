package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sb-works/collab-backend/internal/logging"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Uploads  UploadsConfig
	Audit    AuditConfig
	App      AppConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // postgres | memory
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether the cross-instance relay should be used.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AuthConfig struct {
	Provider                string // jwt | firebase
	JWTSecret               string
	JWTIssuer               string
	FirebaseCredentialsPath string
}

type RealtimeConfig struct {
	StrictRoomAccess bool
	SendRate         float64
	SendBurst        int
	SendBuffer       int
	GapTimeout       time.Duration
	PingInterval     time.Duration
}

type UploadsConfig struct {
	Bucket        string
	Region        string
	PublicBaseURL string
	URLTTL        time.Duration
}

func (u UploadsConfig) Enabled() bool {
	return u.Bucket != ""
}

type AuditConfig struct {
	Schedule string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderJWT      = "jwt"
	ProviderFirebase = "firebase"
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		logging.Debug().Msg("no .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("STORE_DRIVER", DriverPostgres),
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "sbworks"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Provider:                getEnv("AUTH_PROVIDER", ProviderJWT),
			JWTSecret:               getEnv("JWT_SECRET", ""),
			JWTIssuer:               getEnv("JWT_ISSUER", ""),
			FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		Realtime: RealtimeConfig{
			StrictRoomAccess: getEnvAsBool("STRICT_ROOM_ACCESS", true),
			SendRate:         getEnvAsFloat("WS_SEND_RATE", 5),
			SendBurst:        getEnvAsInt("WS_SEND_BURST", 10),
			SendBuffer:       getEnvAsInt("WS_SEND_BUFFER", 64),
			GapTimeout:       getEnvAsDuration("WS_GAP_TIMEOUT", 2*time.Second),
			PingInterval:     getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
		},
		Uploads: UploadsConfig{
			Bucket:        getEnv("UPLOADS_BUCKET", ""),
			Region:        getEnv("UPLOADS_REGION", "us-east-1"),
			PublicBaseURL: getEnv("UPLOADS_PUBLIC_BASE_URL", ""),
			URLTTL:        getEnvAsDuration("UPLOADS_URL_TTL", 15*time.Minute),
		},
		Audit: AuditConfig{
			Schedule: getEnv("AUDIT_SCHEDULE", "0 0 3 * * *"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("DB_DSN or DB_HOST is required")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}

	switch c.Auth.Provider {
	case ProviderJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
	case ProviderFirebase:
		if c.Auth.FirebaseCredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
		}
	default:
		return fmt.Errorf("AUTH_PROVIDER must be %q or %q, got %q", ProviderJWT, ProviderFirebase, c.Auth.Provider)
	}

	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if c.Realtime.SendRate <= 0 || c.Realtime.SendBurst <= 0 {
		return fmt.Errorf("WS_SEND_RATE and WS_SEND_BURST must be positive")
	}

	if c.Uploads.Enabled() && c.Uploads.PublicBaseURL == "" {
		return fmt.Errorf("UPLOADS_PUBLIC_BASE_URL is required when UPLOADS_BUCKET is set")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logging.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logging.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid number, using default")
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logging.Warn().Str("key", key).Bool("default", defaultValue).Msg("invalid boolean, using default")
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logging.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration, using default")
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
