package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "carelog.yaml"

// Config holds all runtime settings for the care log.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Messaging MessagingConfig `yaml:"messaging"`
	ViewCache ViewCacheConfig `yaml:"view_cache"`
	Export    ExportConfig    `yaml:"export"`
	Backup    BackupConfig    `yaml:"backup"`
}

// StorageConfig selects the backend behind the record and patient stores.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite database file
	DSN    string `yaml:"dsn"`    // postgres connection string

	// AllowDestructiveUpgrade lets a breaking schema upgrade clear and
	// recreate the affected collections. Off by default.
	AllowDestructiveUpgrade bool `yaml:"allow_destructive_upgrade"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Endpoint        string        `yaml:"endpoint"`
	ServiceName     string        `yaml:"service_name"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// MessagingConfig configures the change-event publisher. An empty URL
// disables publishing.
type MessagingConfig struct {
	RabbitMQURL string `yaml:"rabbitmq_url"`
	Exchange    string `yaml:"exchange"`
}

// ViewCacheConfig configures where refreshed views are mirrored. An empty
// Redis address keeps the mirror in process memory.
type ViewCacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Key           string        `yaml:"key"`
	TTL           time.Duration `yaml:"ttl"`
}

type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

type BackupConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the settings used when no file or environment overrides
// are present.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./data/carelog.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			ServiceName:     "carelog",
			MetricsInterval: 30 * time.Second,
		},
		Messaging: MessagingConfig{
			Exchange: "wailsalutem.events",
		},
		ViewCache: ViewCacheConfig{
			Key: "carelog:views",
			TTL: 24 * time.Hour,
		},
		Export: ExportConfig{
			Dir:    ".",
			Prefix: "長照紀錄表",
		},
		Backup: BackupConfig{
			Dir: "./backups",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file at DefaultPath is not an error; a
// missing file anywhere else is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		// defaults only
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CARELOG_DB_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("CARELOG_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CARELOG_DB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("CARELOG_ALLOW_DESTRUCTIVE_UPGRADE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.AllowDestructiveUpgrade = b
		}
	}

	// The platform-wide PostgreSQL variables switch the store to postgres.
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	if host != "" && user != "" && password != "" && dbname != "" {
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		cfg.Storage.Driver = "postgres"
		cfg.Storage.DSN = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname,
		)
	}

	if v := os.Getenv("CARELOG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CARELOG_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := os.Getenv("OTEL_METRICS_EXPORT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Telemetry.MetricsInterval = d
		}
	}

	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.Messaging.RabbitMQURL = v
	}

	if v := os.Getenv("CARELOG_REDIS_ADDR"); v != "" {
		cfg.ViewCache.RedisAddr = v
	}
	if v := os.Getenv("CARELOG_REDIS_PASSWORD"); v != "" {
		cfg.ViewCache.RedisPassword = v
	}

	if v := os.Getenv("CARELOG_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("CARELOG_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
}
