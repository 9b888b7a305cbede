// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for the databases (always absolute)
	MoexBaseURL     string // MOEX ISS API base URL
	MoexBoard       string // Trading board to screen (TQCB = corporate bonds, main mode)
	RefreshSchedule string // Cron expression for the valuation refresh job
	LogLevel        string
	Port            int
	DevMode         bool
	Screening       ScreeningConfig
	Scoring         ScoringConfig
}

// ScreeningConfig holds bond eligibility criteria.
// All boundaries are inclusive.
type ScreeningConfig struct {
	MinYears          float64 // Minimum years to maturity
	MaxYears          float64 // Maximum years to maturity
	MinYield          float64 // Minimum yield to maturity, decimal fraction
	MinVolume         float64 // Minimum day trade volume, currency units
	MinPrice          float64 // Price sanity floor, currency units
	MaxPrice          float64 // Price sanity ceiling, currency units
	ExcludeZeroCoupon bool    // Drop zero-coupon bonds from the universe
}

// ScoringConfig holds ranking parameters
type ScoringConfig struct {
	GovernmentBonus float64 // Additive score bonus for government bonds
	CorporateBonus  float64 // Additive score bonus for corporate bonds
	TopN            int     // Size of the ranked selection kept per cycle
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BONDWATCH_DATA_DIR", "./data")

	// Always resolve to absolute path and make sure it exists
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		MoexBaseURL:     getEnv("MOEX_BASE_URL", "https://iss.moex.com/iss"),
		MoexBoard:       getEnv("MOEX_BOARD", "TQCB"),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 15m"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		Screening: ScreeningConfig{
			MinYears:          getEnvAsFloat("SCREEN_MIN_YEARS", 0.5),
			MaxYears:          getEnvAsFloat("SCREEN_MAX_YEARS", 30.0),
			MinYield:          getEnvAsFloat("SCREEN_MIN_YIELD", 0.0),
			MinVolume:         getEnvAsFloat("SCREEN_MIN_VOLUME", 0.0),
			MinPrice:          getEnvAsFloat("SCREEN_MIN_PRICE", 0.0),
			MaxPrice:          getEnvAsFloat("SCREEN_MAX_PRICE", 2000.0),
			ExcludeZeroCoupon: getEnvAsBool("SCREEN_EXCLUDE_ZERO_COUPON", false),
		},
		Scoring: ScoringConfig{
			GovernmentBonus: getEnvAsFloat("SCORE_GOVERNMENT_BONUS", 0.005),
			CorporateBonus:  getEnvAsFloat("SCORE_CORPORATE_BONUS", 0.0),
			TopN:            getEnvAsInt("SCORE_TOP_N", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations that would silently produce empty screens
func (c *Config) validate() error {
	if c.Screening.MinYears < 0 {
		return fmt.Errorf("SCREEN_MIN_YEARS must be >= 0, got %f", c.Screening.MinYears)
	}
	if c.Screening.MaxYears < c.Screening.MinYears {
		return fmt.Errorf("SCREEN_MAX_YEARS (%f) must be >= SCREEN_MIN_YEARS (%f)",
			c.Screening.MaxYears, c.Screening.MinYears)
	}
	if c.Screening.MaxPrice <= c.Screening.MinPrice {
		return fmt.Errorf("SCREEN_MAX_PRICE (%f) must be > SCREEN_MIN_PRICE (%f)",
			c.Screening.MaxPrice, c.Screening.MinPrice)
	}
	if c.Scoring.TopN < 1 {
		return fmt.Errorf("SCORE_TOP_N must be >= 1, got %d", c.Scoring.TopN)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as integer with a fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getEnvAsFloat retrieves an environment variable as float with a fallback
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as boolean with a fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}
