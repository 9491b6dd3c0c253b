package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingDatabaseURL = errors.New("database.url is required")

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type HTTPConfig struct {
	Port      string `mapstructure:"port"`
	BodyLimit string `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// BlobConfig selects where uploaded files and extracted images live.
type BlobConfig struct {
	Driver  string `mapstructure:"driver"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

type QueueConfig struct {
	Driver    string `mapstructure:"driver"`
	Buffer    int    `mapstructure:"buffer"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key"`
}

type WorkerConfig struct {
	Count          int  `mapstructure:"count"`
	RecoverOnStart bool `mapstructure:"recover_on_start"`
}

type LLMConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	Model                string        `mapstructure:"model"`
	FallbackModel        string        `mapstructure:"fallback_model"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	MaxInputChars        int           `mapstructure:"max_input_chars"`
	PlaceholderOnFailure bool          `mapstructure:"placeholder_on_failure"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Load reads configuration from an optional file and the environment. Env var overrides use prefix FUSION_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.body_limit", "50M")
	v.SetDefault("database.url", "")
	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.base_dir", "./data/blobs")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.buffer", 256)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_key", "fusion:import-tasks")
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.recover_on_start", true)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.fallback_model", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.max_input_chars", 12000)
	v.SetDefault("llm.placeholder_on_failure", false)
	v.SetDefault("batch.concurrency", 4)

	if cfgPath := os.Getenv("FUSION_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	v.SetEnvPrefix("FUSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.Worker.Count = clamp(c.Worker.Count, 1, 16)
	c.Batch.Concurrency = clamp(c.Batch.Concurrency, 1, 16)

	return c, nil
}

// Validate checks settings required to start the API process.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return ErrMissingDatabaseURL
	}
	switch c.Blob.Driver {
	case "local":
	case "gcs":
		if strings.TrimSpace(c.Blob.Bucket) == "" {
			return errors.New("blob.bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown blob.driver %q", c.Blob.Driver)
	}
	switch c.Queue.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue.driver %q", c.Queue.Driver)
	}
	return nil
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
