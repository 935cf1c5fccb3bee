package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/studydeck-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set StudyDeck configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("study_goal_hours: %g\n", cfg.StudyGoalHours)
		fmt.Printf("inference_url: %s\n", cfg.InferenceURL)
		fmt.Printf("database_driver: %s\n", cfg.DatabaseDriver)
		fmt.Printf("database_dsn: %s\n", maskDSN(cfg.DatabaseDriver, cfg.DatabaseDSN))
		fmt.Printf("jwt_secret: %s\n", mask(cfg.JWTSecret))
		fmt.Printf("session_ttl_hours: %d\n", cfg.SessionTTLHours)
		fmt.Printf("flashcard_count: %d\n", cfg.FlashcardCount)
		fmt.Printf("flush_interval_sec: %d\n", cfg.FlushIntervalSec)
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Printf("data_dir: %s\n", cfg.DataDir)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "api_key":
			cfg.APIKey = val
		case "study_goal_hours":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 {
				return fmt.Errorf("invalid number of hours for study_goal_hours: %v", val)
			}
			cfg.StudyGoalHours = f
		case "inference_url":
			cfg.InferenceURL = val
		case "database_driver":
			switch val {
			case "sqlite", "SQLite", "SQLITE":
				cfg.DatabaseDriver = "sqlite"
			case "postgres", "postgresql", "Postgres":
				cfg.DatabaseDriver = "postgres"
			default:
				return fmt.Errorf("invalid database_driver: %s (use sqlite or postgres)", val)
			}
		case "database_dsn":
			cfg.DatabaseDSN = val
		case "session_ttl_hours", "flashcard_count", "flush_interval_sec", "http_timeout_sec", "retry_max_attempts":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid positive int for %s: %v", key, val)
			}
			switch key {
			case "session_ttl_hours":
				cfg.SessionTTLHours = i
			case "flashcard_count":
				cfg.FlashcardCount = i
			case "flush_interval_sec":
				cfg.FlushIntervalSec = i
			case "http_timeout_sec":
				cfg.HTTPTimeoutSec = i
			case "retry_max_attempts":
				cfg.RetryMaxAttempts = i
			}
		case "data_dir":
			cfg.DataDir = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

// maskDSN hides postgres credentials; sqlite paths are shown as is.
func maskDSN(driver, dsn string) string {
	if driver == "postgres" {
		return mask(dsn)
	}
	return dsn
}
