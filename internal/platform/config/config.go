package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the service configuration assembled from the environment.
type Config struct {
	Port      string
	DataDir   string
	UploadDir string
	StaticDir string

	LogLevel  string
	LogFormat string

	EventPrefix         string
	MaxUploadMB         int
	UploadRatePerMinute int
	TimeZone            string
	WSPingInterval      time.Duration
	ManifestWatch       bool

	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TLSCertFile string
	TLSKeyFile  string
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		Port:      GetEnv("PORT", "3000"),
		DataDir:   GetEnv("DATA_DIR", "data"),
		UploadDir: GetEnv("UPLOAD_DIR", "uploads"),
		StaticDir: GetEnv("STATIC_DIR", ""),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		EventPrefix:         GetEnv("EVENT_PREFIX", "mediaUpdate"),
		MaxUploadMB:         GetEnvInt("MAX_UPLOAD_MB", 512),
		UploadRatePerMinute: GetEnvInt("UPLOAD_RATE_PER_MINUTE", 60),
		TimeZone:            GetEnv("TIME_ZONE", "UTC"),
		WSPingInterval:      GetEnvDuration("WS_PING_INTERVAL", 30*time.Second),
		ManifestWatch:       GetEnvBool("MANIFEST_WATCH", false),

		StorageBackend: strings.ToLower(GetEnv("STORAGE_BACKEND", "disk")),
		MinioEndpoint:  GetEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: GetEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: GetEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    GetEnv("MINIO_BUCKET", "signage"),
		MinioUseSSL:    GetEnvBool("MINIO_USE_SSL", false),

		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		TLSCertFile: GetEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  GetEnv("TLS_KEY_FILE", ""),
	}
}

// TLSEnabled reports whether both a certificate and a key are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Location returns the configured time zone, falling back to UTC when the
// name cannot be resolved.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key as understood by strconv.ParseBool,
// or fallback if unset or invalid.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of key (e.g. "30s"), or fallback
// if unset or invalid.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
