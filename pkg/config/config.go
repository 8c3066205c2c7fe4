package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Election ElectionConfig `mapstructure:"election"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Type         string        `mapstructure:"type"` // postgres, sqlite
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	Path         string        `mapstructure:"path"` // For SQLite
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// LedgerConfig holds external ledger configuration. PrivateKey is required
// and has no default: a missing signing credential fails startup.
type LedgerConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	FactoryAddress     string        `mapstructure:"factory_address"`
	PrivateKey         string        `mapstructure:"private_key"`
	GasLimitMin        uint64        `mapstructure:"gas_limit_min"`
	MaxFeeCapGwei      int64         `mapstructure:"max_fee_cap_gwei"`
	PriorityFeeCapGwei int64         `mapstructure:"priority_fee_cap_gwei"`
	ConfirmTimeout     time.Duration `mapstructure:"confirm_timeout"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
}

// ElectionConfig holds election lifecycle tunables
type ElectionConfig struct {
	MinDuration       time.Duration `mapstructure:"min_duration"`
	AllowSameDayStart bool          `mapstructure:"allow_same_day_start"`
	ResultsSampleSize int           `mapstructure:"results_sample_size"`
	SecretKey         string        `mapstructure:"secret_key"` // AES key for voter secrets at rest
}

// RedisConfig holds Redis configuration for the optional results cache
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Enabled  bool          `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional; real deployments use actual environment variables
	_ = godotenv.Load()

	setDefaults()

	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("ELECTION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Printf("Warning: Config file not found at %s, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
	}

	overrideWithEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	// Database defaults
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", "./elections.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_lifetime", "5m")

	// Ledger defaults. No default private key: the signing credential must
	// come from the environment or a secret store.
	viper.SetDefault("ledger.rpc_url", "http://localhost:8545")
	viper.SetDefault("ledger.gas_limit_min", 500000)
	viper.SetDefault("ledger.max_fee_cap_gwei", 300)
	viper.SetDefault("ledger.priority_fee_cap_gwei", 5)
	viper.SetDefault("ledger.confirm_timeout", "5m")
	viper.SetDefault("ledger.call_timeout", "30s")

	// Election defaults
	viper.SetDefault("election.min_duration", "1h")
	viper.SetDefault("election.allow_same_day_start", true)
	viper.SetDefault("election.results_sample_size", 10)

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "15s")
	viper.SetDefault("redis.enabled", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "./logs/app.log")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Security defaults
	viper.SetDefault("security.jwt_expiration", "24h")
}

// overrideWithEnvVars overrides config with specific environment variables
func overrideWithEnvVars() {
	envMappings := map[string]string{
		"LEDGER_PRIVATE_KEY": "ledger.private_key",
		"FACTORY_ADDRESS":    "ledger.factory_address",
		"RPC_URL":            "ledger.rpc_url",
		"DB_PASSWORD":        "database.password",
		"DB_USER":            "database.user",
		"SECRET_KEY":         "election.secret_key",
		"JWT_SECRET":         "security.jwt_secret",
		"REDIS_ADDR":         "redis.addr",
		"REDIS_PASSWORD":     "redis.password",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			viper.Set(configKey, value)
		}
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Ledger.FactoryAddress == "" {
		return fmt.Errorf("ledger factory address is required")
	}

	if config.Ledger.PrivateKey == "" {
		return fmt.Errorf("ledger private key is required")
	}

	if config.Election.SecretKey == "" {
		return fmt.Errorf("voter secret encryption key is required")
	}

	if len(config.Election.SecretKey) < 32 {
		return fmt.Errorf("voter secret encryption key must be at least 32 characters")
	}

	if config.Security.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch config.Database.Type {
	case "postgres":
		if config.Database.Host == "" || config.Database.User == "" {
			return fmt.Errorf("postgres requires host and user")
		}
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("sqlite requires path")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}

	if config.Election.MinDuration <= 0 {
		config.Election.MinDuration = time.Hour
	}

	if config.Ledger.GasLimitMin == 0 {
		config.Ledger.GasLimitMin = 500000
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Mode == "debug" || c.Server.Mode == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "release" || c.Server.Mode == "production"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// SanitizeForLogging returns a copy of the config with sensitive data redacted
func (c *Config) SanitizeForLogging() *Config {
	sanitized := *c

	if sanitized.Database.Password != "" {
		sanitized.Database.Password = "[REDACTED]"
	}
	if sanitized.Ledger.PrivateKey != "" {
		sanitized.Ledger.PrivateKey = "[REDACTED]"
	}
	if sanitized.Election.SecretKey != "" {
		sanitized.Election.SecretKey = "[REDACTED]"
	}
	if sanitized.Security.JWTSecret != "" {
		sanitized.Security.JWTSecret = "[REDACTED]"
	}
	if sanitized.Redis.Password != "" {
		sanitized.Redis.Password = "[REDACTED]"
	}

	return &sanitized
}
