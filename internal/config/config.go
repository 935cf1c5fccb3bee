package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const dirName = ".studydeck"

// Global configuration structure.
type Global struct {
	// Device-local settings
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	StudyGoalHours float64 `mapstructure:"study_goal_hours" yaml:"study_goal_hours"`

	// Remote services
	InferenceURL    string `mapstructure:"inference_url" yaml:"inference_url"`
	DatabaseDriver  string `mapstructure:"database_driver" yaml:"database_driver"`
	DatabaseDSN     string `mapstructure:"database_dsn" yaml:"database_dsn"`
	JWTSecret       string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`

	// Generation defaults
	FlashcardCount int `mapstructure:"flashcard_count" yaml:"flashcard_count"`

	// Study timer
	FlushIntervalSec int `mapstructure:"flush_interval_sec" yaml:"flush_interval_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.studydeck/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STUDYDECK")
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("study_goal_hours", 20)
	v.SetDefault("inference_url", "https://personalstudy-ai.onrender.com")
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("session_ttl_hours", 24*7)
	v.SetDefault("flashcard_count", 10)
	v.SetDefault("flush_interval_sec", 60)
	// HTTP/retry defaults; a single attempt means no automatic retry
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("data_dir", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		c.DataDir = dir
	}
	if c.DatabaseDSN == "" && c.DatabaseDriver == "sqlite" {
		c.DatabaseDSN = filepath.Join(c.DataDir, "studydeck.db")
	}
	return &c, nil
}

// SessionFile is where the signed-in session token is kept.
func (c *Global) SessionFile() string { return filepath.Join(c.DataDir, "session.json") }

// PapersFile is where the question-paper analyzer keeps a user's papers and
// analysis between runs.
func (c *Global) PapersFile(userID string) string {
	return filepath.Join(c.DataDir, "papers-"+userID+".json")
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}
