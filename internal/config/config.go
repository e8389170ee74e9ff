package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Hive     HiveConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret     string
	MinStake      decimal.Decimal
	MaxStake      decimal.Decimal
	AdminAccounts []string
}

// HiveConfig holds Hive-Engine sidechain settings
type HiveConfig struct {
	EngineRPCURL string
	TokenSymbol  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	minStake, err := decimal.NewFromString(getEnv("MIN_STAKE", "1.000"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_STAKE: %w", err)
	}
	maxStake, err := decimal.NewFromString(getEnv("MAX_STAKE", "10000.000"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_STAKE: %w", err)
	}
	if maxStake.LessThan(minStake) {
		return nil, fmt.Errorf("MAX_STAKE %s is below MIN_STAKE %s", maxStake, minStake)
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "sportsblock"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			MinStake:      minStake,
			MaxStake:      maxStake,
			AdminAccounts: splitAccounts(getEnv("ADMIN_ACCOUNTS", "")),
		},
		Hive: HiveConfig{
			EngineRPCURL: getEnv("HIVE_ENGINE_RPC_URL", "https://api.hive-engine.com/rpc/contracts"),
			TokenSymbol:  getEnv("MEDALS_TOKEN_SYMBOL", "MEDALS"),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// splitAccounts parses a comma-separated account list, trimming blanks
func splitAccounts(raw string) []string {
	var accounts []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			accounts = append(accounts, strings.ToLower(name))
		}
	}
	return accounts
}
