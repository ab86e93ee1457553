package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultUploadMaxBytes = 10 << 20 // 10 MiB
	DefaultSessionTTL     = 7 * 24 * time.Hour
	DefaultStoreTimeout   = 5 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultSendRateLimit  = 30
)

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	PostgresURI string
	RedisURI    string
	MongoURI    string // optional; empty disables the orphaned-attachment journal
	MongoDB     string

	StorageBackend      string // "cloudinary", "s3" or empty (uploads disabled)
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3AccessKey         string
	S3SecretKey         string
	S3PublicURL         string

	UploadMaxBytes int64
	SessionTTL     time.Duration
	StoreTimeout   time.Duration
	PollInterval   time.Duration
	SendRateLimit  int // messages per sender per minute, 0 disables
	AdminToken     string

	NatsURL    string // optional; empty keeps change signals in-process
	TrustProxy bool   // honor X-Forwarded-For / X-Real-IP for client IPs
}

func Load() *Config {
	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
		AllowedOrigins: allowedOrigins,

		PostgresURI: getEnv("POSTGRES_URI", "postgres://localhost:5432/soconnect?sslmode=disable"),
		RedisURI:    getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "soconnect"),

		StorageBackend:      strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "soconnect"),
		S3Bucket:            getEnv("S3_BUCKET", "soconnect"),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3AccessKey:         getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:         getEnv("S3_SECRET_KEY", ""),
		S3PublicURL:         getEnv("S3_PUBLIC_URL", ""),

		UploadMaxBytes: getEnvInt64("UPLOAD_MAX_BYTES", DefaultUploadMaxBytes),
		SessionTTL:     getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", DefaultStoreTimeout),
		PollInterval:   getEnvDuration("POLL_INTERVAL", DefaultPollInterval),
		SendRateLimit:  int(getEnvInt64("SEND_RATE_LIMIT", DefaultSendRateLimit)),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),

		NatsURL:    getEnv("NATS_URL", ""),
		TrustProxy: getEnvBool("TRUST_PROXY", false),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UploadsEnabled reports whether an object store backend is configured.
func (c *Config) UploadsEnabled() bool {
	switch c.StorageBackend {
	case "cloudinary":
		return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
	case "s3":
		return c.S3Bucket != ""
	default:
		return false
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}
