package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "CHECKOUT"

// StorageDriver выбирает реализацию репозиториев.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverSQLite   StorageDriver = "sqlite"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr           string
	MetricsAddr        string
	StorageDriver      StorageDriver
	DatabaseDSN        string
	AutoMigrate        bool
	LogLevel           string
	CORSAllowedOrigins []string
	// TraceSampleRatio: доля запросов, попадающих в трассировку (0..1).
	TraceSampleRatio float64
	// JaegerEndpoint: адрес коллектора Jaeger (http://host:14268/api/traces).
	// Пустое значение отключает экспорт спанов.
	JaegerEndpoint string
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		StorageDriver:    StorageDriverMemory,
		AutoMigrate:      true,
		LogLevel:         "info",
		TraceSampleRatio: 1,
	}
}

// LoadConfig читает конфигурацию из окружения (префикс CHECKOUT_).
// Если envFile задан и существует, переменные из него подгружаются заранее;
// уже выставленные переменные окружения не перетираются.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("storage_driver", string(def.StorageDriver))
	v.SetDefault("database_dsn", def.DatabaseDSN)
	v.SetDefault("auto_migrate", def.AutoMigrate)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("cors_allowed_origins", "")
	v.SetDefault("trace_sample_ratio", def.TraceSampleRatio)
	v.SetDefault("jaeger_endpoint", def.JaegerEndpoint)

	cfg := Config{
		HTTPAddr:           strings.TrimSpace(v.GetString("http_addr")),
		MetricsAddr:        strings.TrimSpace(v.GetString("metrics_addr")),
		StorageDriver:      StorageDriver(strings.ToLower(strings.TrimSpace(v.GetString("storage_driver")))),
		DatabaseDSN:        strings.TrimSpace(v.GetString("database_dsn")),
		AutoMigrate:        v.GetBool("auto_migrate"),
		LogLevel:           strings.TrimSpace(v.GetString("log_level")),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		TraceSampleRatio:   v.GetFloat64("trace_sample_ratio"),
		JaegerEndpoint:     strings.TrimSpace(v.GetString("jaeger_endpoint")),
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres, StorageDriverSQLite:
		if c.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("database_dsn is required for %s storage", c.StorageDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("trace_sample_ratio must be within [0, 1], got %v", c.TraceSampleRatio))
	}
	if c.JaegerEndpoint != "" {
		if u, err := url.Parse(c.JaegerEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("jaeger_endpoint must be an http(s) url, got %q", c.JaegerEndpoint))
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Fields: безопасная для логов выжимка конфигурации (без DSN).
func (c Config) Fields() log.Fields {
	return log.Fields{
		"http_addr":      c.HTTPAddr,
		"metrics_addr":   c.MetricsAddr,
		"storage_driver": c.StorageDriver,
		"auto_migrate":   c.AutoMigrate,
		"log_level":      c.LogLevel,
		"jaeger_enabled": c.JaegerEndpoint != "",
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
