package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	UploadCloudinary = "cloudinary"
	UploadMinio      = "minio"
	UploadNone       = "none"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port  string
	GoEnv string

	// Storage
	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	RedisAddress  string
	RedisPassword string

	// Auth
	JWTSecret         string
	SessionTTL        time.Duration
	AdminEmails       []string
	LegacyHeuristic   bool
	RegistrationRoles []string

	// Profile reads are retried; nothing else is.
	ProfileReadAttempts int
	ProfileReadBackoff  time.Duration

	IssueDailyLimit  int
	IssueLimitPrefix string

	// Uploads
	UploadDriver           string
	CloudinaryBaseURL      string
	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	MinioEndpoint          string
	MinioAccessKey         string
	MinioSecretKey         string
	MinioBucket            string
	MinioUseSSL            bool
	MinioPublicURL         string

	// Optional lifecycle events
	AMQPURL      string
	AMQPExchange string

	FeedChannel string

	LogLevel    string
	LogFormat   string
	CORSOrigins []string

	MapFallbackLat    float64
	MapFallbackLng    float64
	MapFallbackSpread float64
}

// Load reads a .env file when present, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:  getEnv("PORT", "8080"),
		GoEnv: getEnv("GO_ENV", "development"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "pravah"),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		SessionTTL:        getDurationEnv("SESSION_TTL", 72*time.Hour),
		AdminEmails:       getListEnv("ADMIN_EMAILS", nil),
		LegacyHeuristic:   getBoolEnv("LEGACY_EMAIL_ROLE_HEURISTIC", false),
		RegistrationRoles: getListEnv("REGISTRATION_ROLES", nil),

		ProfileReadAttempts: getIntEnv("PROFILE_READ_ATTEMPTS", 3),
		ProfileReadBackoff:  getDurationEnv("PROFILE_READ_BACKOFF", time.Second),

		IssueDailyLimit:  getIntEnv("ISSUE_DAILY_LIMIT", 10),
		IssueLimitPrefix: getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit"),

		UploadDriver:           strings.ToLower(getEnv("UPLOAD_DRIVER", UploadCloudinary)),
		CloudinaryBaseURL:      getEnv("CLOUDINARY_BASE_URL", ""),
		CloudinaryCloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryUploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		MinioEndpoint:          getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:            getEnv("MINIO_BUCKET", "issue-photos"),
		MinioUseSSL:            getBoolEnv("MINIO_USE_SSL", false),
		MinioPublicURL:         getEnv("MINIO_PUBLIC_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "civic.issues"),

		FeedChannel: getEnv("FEED_CHANNEL", "civic:issues:changed"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		CORSOrigins: getListEnv("CORS_ORIGINS", []string{"http://localhost:5173"}),

		MapFallbackLat:    getFloatEnv("MAP_FALLBACK_LAT", 22.3072),
		MapFallbackLng:    getFloatEnv("MAP_FALLBACK_LNG", 73.1812),
		MapFallbackSpread: getFloatEnv("MAP_FALLBACK_SPREAD", 0.1),
	}
}

func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty parts.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
