package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxUploadBytes is the largest accepted upload (10 MiB).
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

// Config stores the application configuration.
type Config struct {
	ServerAddr string

	FFmpegPath        string
	TempDir           string // Root for per-request workspaces
	ArchiveDir        string // Where finished zip archives are written before they are sent
	MaxUploadBytes    int64
	MaxRequestBytes   int64
	TranscodeTimeout  time.Duration
	ExposeDiagnostics bool // Echo ffmpeg stderr to the caller on failure

	ArchiveMaxAge time.Duration
	SweepInterval time.Duration

	CORSOrigins   []string
	AuthJWTSecret string

	LogLevel string
	LogFile  string

	// Redis archive cache
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// MinIO archive mirror
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// MySQL conversion history
	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "2m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment without touching .env files.
func FromEnv() *Config {
	tempDir := getEnv("TEMP_DIR", os.TempDir())
	maxUpload := getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		FFmpegPath:        getEnv("FFMPEG_PATH", "/var/task/api/bin/ffmpeg"),
		TempDir:           tempDir,
		ArchiveDir:        getEnv("ARCHIVE_DIR", filepath.Join(tempDir, "hls-archives")),
		MaxUploadBytes:    maxUpload,
		MaxRequestBytes:   getEnvInt64("MAX_REQUEST_BYTES", 4*maxUpload),
		TranscodeTimeout:  getEnvDuration("TRANSCODE_TIMEOUT", 60*time.Second),
		ExposeDiagnostics: getEnvBool("EXPOSE_DIAGNOSTICS", true),

		ArchiveMaxAge: getEnvDuration("ARCHIVE_MAX_AGE", time.Hour),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),

		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"*"}),
		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "hls-archives"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		DBEnabled:  getEnvBool("DB_ENABLED", false),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:     getEnv("DB_NAME", "hlsbox"),
	}
}

// Validate reports the first setting that would make the service unusable.
func (c *Config) Validate() error {
	switch {
	case c.FFmpegPath == "":
		return fmt.Errorf("FFMPEG_PATH must not be empty")
	case c.TempDir == "":
		return fmt.Errorf("TEMP_DIR must not be empty")
	case c.ArchiveDir == "":
		return fmt.Errorf("ARCHIVE_DIR must not be empty")
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	case c.MaxRequestBytes < c.MaxUploadBytes:
		return fmt.Errorf("MAX_REQUEST_BYTES (%d) must be at least MAX_UPLOAD_BYTES (%d)", c.MaxRequestBytes, c.MaxUploadBytes)
	case c.TranscodeTimeout <= 0:
		return fmt.Errorf("TRANSCODE_TIMEOUT must be positive, got %s", c.TranscodeTimeout)
	case c.ArchiveMaxAge <= 0:
		return fmt.Errorf("ARCHIVE_MAX_AGE must be positive, got %s", c.ArchiveMaxAge)
	case c.SweepInterval <= 0:
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}
