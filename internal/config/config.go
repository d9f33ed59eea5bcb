package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	// OwnerID gates the /stats command; zero leaves it open.
	OwnerID int64 `envconfig:"OWNER_ID"`

	DownloadDir     string        `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	AudioBitrate    int           `envconfig:"AUDIO_BITRATE" default:"128"`
	MaxAudioSize    int64         `envconfig:"MAX_AUDIO_SIZE" default:"52428800"`
	SendRetries     uint          `envconfig:"SEND_RETRIES" default:"3"`
	SendRetryDelay  time.Duration `envconfig:"SEND_RETRY_DELAY" default:"5s"`
	ExtractTimeout  time.Duration `envconfig:"EXTRACT_TIMEOUT" default:"10m"`
	ProbeTimeout    time.Duration `envconfig:"PROBE_TIMEOUT" default:"45s"`
	SocketTimeout   time.Duration `envconfig:"SOCKET_TIMEOUT" default:"60s"`
	MaxParallel     int           `envconfig:"MAX_PARALLEL" default:"3"`
	UserCooldown    time.Duration `envconfig:"USER_COOLDOWN" default:"3s"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`
	KeepArtifacts   time.Duration `envconfig:"KEEP_ARTIFACTS_FOR" default:"1h"`

	LedgerBackend string `envconfig:"LEDGER_BACKEND" default:"json"`
	LedgerPath    string `envconfig:"LEDGER_PATH" default:"bot_stats.json"`
	DBPath        string `envconfig:"DB_PATH" default:"trackbot.db"`

	LogLevel         string `envconfig:"LOG_LEVEL" default:"INFO"`
	TelemetryEnabled bool   `envconfig:"TELEMETRY_ENABLED" default:"true"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9092"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if strings.Contains(cfg.BotToken, "YOUR_BOT_TOKEN") {
		return nil, fmt.Errorf("BOT_TOKEN is a placeholder, set a real token")
	}

	switch cfg.LedgerBackend {
	case "json", "sqlite":
	default:
		return nil, fmt.Errorf("invalid ledger backend: %s", cfg.LedgerBackend)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
