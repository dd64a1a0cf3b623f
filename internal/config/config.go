// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Run modes.
const (
	ModeAnalyze  = "analyze"
	ModeOptimize = "optimize"
	ModeScenario = "scenario"
)

// Config holds application configuration.
type Config struct {
	DataDir   string // base directory for all databases, always absolute
	LogLevel  string
	LogPretty bool

	// Pipeline tuning.
	Workers         int
	MinObservations int
	HalfLifeDays    float64

	// What to run.
	Mode      string // analyze, optimize or scenario
	Objective string // min_variance or max_return, optimize mode only
	Scenario  string // scenario name or inline delta, scenario mode only
	Cron      string // rerun on this schedule instead of exiting

	// Input documents.
	PortfolioFile string
	LimitsFile    string
	ProxiesFile   string
	ScenariosFile string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("ARGUS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnvAsBool("LOG_PRETTY", false),
		Workers:         getEnvAsInt("ARGUS_WORKERS", 4),
		MinObservations: getEnvAsInt("ARGUS_MIN_OBSERVATIONS", 60),
		HalfLifeDays:    getEnvAsFloat("ARGUS_HALF_LIFE_DAYS", 0),
		Mode:            getEnv("ARGUS_MODE", ModeAnalyze),
		Objective:       getEnv("ARGUS_OBJECTIVE", "min_variance"),
		Scenario:        getEnv("ARGUS_SCENARIO", ""),
		Cron:            getEnv("ARGUS_CRON", ""),
		PortfolioFile:   getEnv("ARGUS_PORTFOLIO_FILE", "portfolio.yaml"),
		LimitsFile:      getEnv("ARGUS_LIMITS_FILE", ""),
		ProxiesFile:     getEnv("ARGUS_PROXIES_FILE", ""),
		ScenariosFile:   getEnv("ARGUS_SCENARIOS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks mode-dependent requirements.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAnalyze, ModeOptimize, ModeScenario:
	default:
		return fmt.Errorf("ARGUS_MODE must be %s, %s or %s, got %q", ModeAnalyze, ModeOptimize, ModeScenario, c.Mode)
	}

	if c.Mode == ModeOptimize {
		switch c.Objective {
		case "min_variance", "max_return":
		default:
			return fmt.Errorf("ARGUS_OBJECTIVE must be min_variance or max_return, got %q", c.Objective)
		}
	}

	if c.Mode == ModeScenario && c.Scenario == "" {
		return fmt.Errorf("ARGUS_SCENARIO is required in scenario mode")
	}

	if c.PortfolioFile == "" {
		return fmt.Errorf("ARGUS_PORTFOLIO_FILE is required")
	}

	if c.Workers < 1 {
		return fmt.Errorf("ARGUS_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.MinObservations < 3 {
		return fmt.Errorf("ARGUS_MIN_OBSERVATIONS must be at least 3, got %d", c.MinObservations)
	}
	if c.HalfLifeDays < 0 {
		return fmt.Errorf("ARGUS_HALF_LIFE_DAYS must not be negative, got %v", c.HalfLifeDays)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
