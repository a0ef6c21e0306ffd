// Package config carries all knobs for one extraction run as an explicit
// value. Only this package reads the environment; inner components receive
// the resolved configuration through their constructors.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for the refinement controller and rendering.
const (
	DefaultMaxRounds        = 7
	DefaultQualityThreshold = 10
	DefaultDPI              = 300
)

// OracleConfig identifies the vision-language service.
type OracleConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	MaxImageEdge int
}

// Config is the full run configuration assembled in main.
type Config struct {
	InputPath  string
	OutputPath string
	OutputDir  string

	DPI              int
	IncludeExtras    bool
	MaxRounds        int
	QualityThreshold int
	StartPage        int
	MaxPages         int

	Workers   int
	ShowStats bool

	Oracle OracleConfig
}

// OracleFromEnv reads oracle credentials and endpoint settings from the
// environment. Defaults match the DashScope compatible-mode endpoint.
func OracleFromEnv() OracleConfig {
	return OracleConfig{
		APIKey:       os.Getenv("DASHSCOPE_API_KEY"),
		BaseURL:      getEnvOrDefault("DASHSCOPE_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		Model:        getEnvOrDefault("QWEN_VL_MODEL", "qwen3-vl-plus"),
		MaxTokens:    getEnvAsIntOrDefault("ORACLE_MAX_TOKENS", 800),
		MaxImageEdge: getEnvAsIntOrDefault("ORACLE_MAX_IMAGE_EDGE", 2048),
	}
}

// Validate checks the assembled configuration before any work starts.
func (c *Config) Validate() error {
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("DASHSCOPE_API_KEY is not set (create a .env file or export it)")
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1, got %d", c.MaxRounds)
	}
	if c.QualityThreshold < 1 || c.QualityThreshold > 10 {
		return fmt.Errorf("quality threshold must be in 1..10, got %d", c.QualityThreshold)
	}
	if c.DPI < 36 || c.DPI > 1200 {
		return fmt.Errorf("dpi must be in 36..1200, got %d", c.DPI)
	}
	if c.StartPage < 0 {
		return fmt.Errorf("start page must not be negative, got %d", c.StartPage)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
