package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Reports  ReportsConfig
	Uploads  UploadsConfig
	Classes  ClassesConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReportsConfig governs analytics caching and asynchronous report exports.
type ReportsConfig struct {
	CacheTTL          time.Duration
	ExportsEnabled    bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// UploadsConfig controls media upload storage and validation.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	AllowedVideo     []string
	AllowedAudio     []string
	AllowedDocument  []string
	AllowedImage     []string
}

// ClassesConfig tunes class creation defaults.
type ClassesConfig struct {
	DefaultMaxStudents int
	CodeAttempts       int
}

// Load reads .env (when present) and the process environment. Production
// configs are validated before they are returned.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Development secrets that must never reach production.
const (
	devJWTSecret     = "dev_secret"
	devReportsSecret = "dev_reports_secret"
	devUploadsSecret = "dev_uploads_secret"
)

var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "edu_platform",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,

	"ENABLE_REDIS":   true,
	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET":     devJWTSecret,
	"JWT_EXPIRATION": "24h",
	"JWT_ISSUER":     "edu-platform-api",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"REPORTS_CACHE_TTL":          "10m",
	"ENABLE_REPORT_EXPORTS":      true,
	"REPORTS_STORAGE_DIR":        "./exports",
	"REPORTS_SIGNED_URL_SECRET":  devReportsSecret,
	"REPORTS_SIGNED_URL_TTL":     "24h",
	"REPORTS_CLEANUP_INTERVAL":   "1h",
	"REPORTS_WORKER_CONCURRENCY": 2,
	"REPORTS_WORKER_RETRIES":     3,

	"UPLOADS_STORAGE_DIR":       "./uploads",
	"UPLOADS_MAX_FILE_SIZE":     100 << 20,
	"UPLOADS_SIGNED_URL_SECRET": devUploadsSecret,
	"UPLOADS_SIGNED_URL_TTL":    "30m",
	"UPLOADS_ALLOWED_VIDEO":     "video/mp4,video/webm,video/quicktime",
	"UPLOADS_ALLOWED_AUDIO":     "audio/mpeg,audio/wav,audio/ogg,audio/mp4",
	"UPLOADS_ALLOWED_DOCUMENT": strings.Join([]string{
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/plain",
	}, ","),
	"UPLOADS_ALLOWED_IMAGE": "image/jpeg,image/png,image/gif,image/webp",

	"CLASS_DEFAULT_MAX_STUDENTS": 50,
	"CLASS_CODE_ATTEMPTS":        10,
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func fromViper(v *viper.Viper) *Config {
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil || d <= 0 {
			return fallback
		}
		return d
	}
	list := func(key string) []string {
		var out []string
		for _, part := range strings.Split(v.GetString(key), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 100 << 20
	}

	return &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("ENABLE_REDIS"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: duration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		CORS: CORSConfig{AllowedOrigins: list("ALLOWED_ORIGINS")},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Reports: ReportsConfig{
			CacheTTL:          duration("REPORTS_CACHE_TTL", 10*time.Minute),
			ExportsEnabled:    v.GetBool("ENABLE_REPORT_EXPORTS"),
			StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
			SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
			SignedURLTTL:      duration("REPORTS_SIGNED_URL_TTL", 24*time.Hour),
			CleanupInterval:   duration("REPORTS_CLEANUP_INTERVAL", time.Hour),
			WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
			WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		},
		Uploads: UploadsConfig{
			StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
			MaxFileSizeBytes: maxUpload,
			SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
			SignedURLTTL:     duration("UPLOADS_SIGNED_URL_TTL", 30*time.Minute),
			AllowedVideo:     list("UPLOADS_ALLOWED_VIDEO"),
			AllowedAudio:     list("UPLOADS_ALLOWED_AUDIO"),
			AllowedDocument:  list("UPLOADS_ALLOWED_DOCUMENT"),
			AllowedImage:     list("UPLOADS_ALLOWED_IMAGE"),
		},
		Classes: ClassesConfig{
			DefaultMaxStudents: v.GetInt("CLASS_DEFAULT_MAX_STUDENTS"),
			CodeAttempts:       v.GetInt("CLASS_CODE_ATTEMPTS"),
		},
	}
}

// Validate rejects settings the server cannot run with. Development secrets
// are only refused in production.
func (c *Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if c.Classes.DefaultMaxStudents <= 0 {
		problems = append(problems, "CLASS_DEFAULT_MAX_STUDENTS must be positive")
	}
	if c.Classes.CodeAttempts <= 0 {
		problems = append(problems, "CLASS_CODE_ATTEMPTS must be positive")
	}
	if c.Reports.ExportsEnabled && c.Reports.WorkerConcurrency <= 0 {
		problems = append(problems, "REPORTS_WORKER_CONCURRENCY must be positive when exports are enabled")
	}
	if c.Env == EnvProduction {
		for key, secret := range map[string]string{
			"JWT_SECRET":                c.JWT.Secret,
			"REPORTS_SIGNED_URL_SECRET": c.Reports.SignedURLSecret,
			"UPLOADS_SIGNED_URL_SECRET": c.Uploads.SignedURLSecret,
		} {
			if secret == "" || secret == defaults[key] {
				problems = append(problems, key+" must be set in production")
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
