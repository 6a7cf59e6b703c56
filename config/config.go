package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Environment       string `mapstructure:"JST_ENVIRONMENT"`
	ServerName        string `mapstructure:"JST_SERVER_NAME"`
	ServerAddress     string `mapstructure:"JST_SERVER_BIND_ADDR"`
	ServerReadTimeout int16  `mapstructure:"JST_SERVER_READ_TIMEOUT"`
	LogFormat         string `mapstructure:"JST_LOG_FORMAT"` // text or json
	LogLevel          string `mapstructure:"JST_LOG_LEVEL"`  // debug, info, warn, error
	RateLimitMax      int    `mapstructure:"JST_RATE_LIMIT_MAX"`
	RateLimitWindow   int    `mapstructure:"JST_RATE_LIMIT_WINDOW"`

	DbHost           string `mapstructure:"JST_DB_HOST"`
	DbPort           int16  `mapstructure:"JST_DB_PORT"`
	DbSSLMode        string `mapstructure:"JST_DB_SSL"`
	DbUser           string `mapstructure:"JST_DB_USER"`
	DbPassword       string `mapstructure:"JST_DB_PASSWORD"`
	DbDatabaseName   string `mapstructure:"JST_DB_DATABASE"`
	DbMaxConnections int    `mapstructure:"JST_DB_MAX_CONNECTIONS"`

	// Redis
	RedisHost string `mapstructure:"JST_REDIS_HOST"`
	RedisPort int16  `mapstructure:"JST_REDIS_PORT"`
	RedisDb   int    `mapstructure:"JST_REDIS_DB"`
	RedisUser string `mapstructure:"JST_REDIS_USER"`
	RedisPass string `mapstructure:"JST_REDIS_PASS"`

	OtlpEndpoint   string `mapstructure:"JST_OTLP_ENDPOINT"`
	JaegerEndpoint string `mapstructure:"JST_JAEGER_ENDPOINT"`

	// Telegram Bot Configuration
	TelegramBotToken    string `mapstructure:"JST_TELEGRAM_BOT_TOKEN"`
	TelegramBotUsername string `mapstructure:"JST_TELEGRAM_BOT_USERNAME"`
	TelegramDebug       bool   `mapstructure:"JST_TELEGRAM_DEBUG"`
	TelegramAdmins      string `mapstructure:"JST_TELEGRAM_ADMINS"` // Comma-separated list of Telegram IDs

	// Cloud Storage Configuration
	CloudProvider                string `mapstructure:"JST_CLOUD_PROVIDER"`
	AzureStorageConnectionString string `mapstructure:"JST_AZURE_STORAGE_CONNECTION_STRING"`
	AzureStorageAccountName      string `mapstructure:"JST_AZURE_STORAGE_ACCOUNT_NAME"`
	AzureStorageAccountKey       string `mapstructure:"JST_AZURE_STORAGE_ACCOUNT_KEY"`
	AzureStorageContainerName    string `mapstructure:"JST_AZURE_STORAGE_CONTAINER_NAME"`
	AzureStorageBaseURL          string `mapstructure:"JST_AZURE_STORAGE_BASE_URL"`
	AzureStorageUseHTTPS         bool   `mapstructure:"JST_AZURE_STORAGE_USE_HTTPS"`
}

// DefaultConfig generates a config with sane defaults.
// See: The example .env file in the package docs for default values.
func DefaultConfig() Config {
	return Config{
		Environment:       "local",
		ServerAddress:     "0.0.0.0:3001",
		ServerReadTimeout: 60,
		LogFormat:         "text",
		LogLevel:          "info",
		RateLimitMax:      100,
		RateLimitWindow:   30,

		DbHost:           "localhost",
		DbPort:           5432,
		DbSSLMode:        "disable",
		DbUser:           "postgres",
		DbPassword:       "postgres",
		DbDatabaseName:   "jamolstroy",
		DbMaxConnections: 100,

		// Redis
		RedisHost: "localhost",
		RedisPort: 6379,
		RedisDb:   0,
		RedisUser: "redis",
		RedisPass: "redis",

		OtlpEndpoint:   "localhost:4317",
		JaegerEndpoint: "http://localhost:14268/api/traces",

		TelegramBotToken:    "",
		TelegramBotUsername: "jamolstroy_bot",
		TelegramDebug:       false,
		TelegramAdmins:      "",

		// Cloud storage defaults
		CloudProvider:                "azure",
		AzureStorageConnectionString: "",
		AzureStorageAccountName:      "",
		AzureStorageAccountKey:       "",
		AzureStorageContainerName:    "product-images",
		AzureStorageBaseURL:          "",
		AzureStorageUseHTTPS:         true,
	}
}

// LoadConfig will attempt to load a configuration from the default file location and fallback to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("JST_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		// Load configuration
		cfg, err = ConfigFromFile(envFile)
	}

	return cfg, err
}

// ConfigFromEnvironment will look for the specified configuration from environment variables
// See package docs for a list of available environment variables.
func ConfigFromEnvironment() (config Config, err error) {
	// Set defaults
	config = DefaultConfig()
	viper.SetDefault("JST_ENVIRONMENT", config.Environment)
	viper.SetDefault("JST_SERVER_BIND_ADDR", config.ServerAddress)
	viper.SetDefault("JST_SERVER_READ_TIMEOUT", config.ServerReadTimeout)
	viper.SetDefault("JST_LOG_LEVEL", config.LogLevel)
	viper.SetDefault("JST_LOG_FORMAT", config.LogFormat)
	viper.SetDefault("JST_RATE_LIMIT_MAX", config.RateLimitMax)
	viper.SetDefault("JST_RATE_LIMIT_WINDOW", config.RateLimitWindow)
	viper.SetDefault("JST_DB_HOST", config.DbHost)
	viper.SetDefault("JST_DB_PORT", config.DbPort)
	viper.SetDefault("JST_DB_SSL", config.DbSSLMode)
	viper.SetDefault("JST_DB_USER", config.DbUser)
	viper.SetDefault("JST_DB_PASSWORD", config.DbPassword)
	viper.SetDefault("JST_DB_DATABASE", config.DbDatabaseName)
	viper.SetDefault("JST_DB_MAX_CONNECTIONS", config.DbMaxConnections)
	viper.SetDefault("JST_OTLP_ENDPOINT", config.OtlpEndpoint)
	viper.SetDefault("JST_JAEGER_ENDPOINT", config.JaegerEndpoint)
	viper.SetDefault("JST_REDIS_HOST", config.RedisHost)
	viper.SetDefault("JST_REDIS_PORT", config.RedisPort)
	viper.SetDefault("JST_REDIS_USER", config.RedisUser)
	viper.SetDefault("JST_REDIS_PASS", config.RedisPass)
	viper.SetDefault("JST_REDIS_DB", config.RedisDb)
	viper.SetDefault("JST_TELEGRAM_BOT_TOKEN", config.TelegramBotToken)
	viper.SetDefault("JST_TELEGRAM_BOT_USERNAME", config.TelegramBotUsername)
	viper.SetDefault("JST_TELEGRAM_DEBUG", config.TelegramDebug)
	viper.SetDefault("JST_TELEGRAM_ADMINS", config.TelegramAdmins)
	viper.SetDefault("JST_CLOUD_PROVIDER", config.CloudProvider)
	viper.SetDefault("JST_AZURE_STORAGE_CONNECTION_STRING", config.AzureStorageConnectionString)
	viper.SetDefault("JST_AZURE_STORAGE_ACCOUNT_NAME", config.AzureStorageAccountName)
	viper.SetDefault("JST_AZURE_STORAGE_ACCOUNT_KEY", config.AzureStorageAccountKey)
	viper.SetDefault("JST_AZURE_STORAGE_CONTAINER_NAME", config.AzureStorageContainerName)
	viper.SetDefault("JST_AZURE_STORAGE_BASE_URL", config.AzureStorageBaseURL)
	viper.SetDefault("JST_AZURE_STORAGE_USE_HTTPS", config.AzureStorageUseHTTPS)

	// Override config values with environment variables
	viper.AutomaticEnv()
	err = viper.Unmarshal(&config)
	return
}

// ConfigFromFile will look for the specified configuration file in the current directory and initialize
// a Config from it. Values provided by environment variables will override ones found in
// the file. See package docs for a list of available environment variables.
func ConfigFromFile(f string) (config Config, err error) {
	if config, err = ConfigFromEnvironment(); err != nil {
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigFile(f)
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)

	return
}

// Fiber initializes and returns a Fiber config based on server config values.
// See https://docs.gofiber.io/api/fiber#config
func (c Config) Fiber() fiber.Config {
	// Return Fiber configuration.
	return fiber.Config{
		ReadTimeout: time.Second * time.Duration(c.ServerReadTimeout),
		BodyLimit:   10 * 1024 * 1024, // 10MB
	}
}

// DbConnectionString generates a connection string for the database based on config values.
func (c Config) DbConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s", c.DbUser, url.QueryEscape(c.DbPassword), c.DbHost, c.DbPort, c.DbDatabaseName, c.DbSSLMode)
}

// RedisAddr generates the host:port address for the Redis client.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo // default fallback
	}
}

// GetTelegramAdmins parses the comma-separated list of Telegram admin IDs.
func (c Config) GetTelegramAdmins() ([]int64, error) {
	if c.TelegramAdmins == "" {
		return []int64{}, nil
	}

	adminStrings := strings.Split(c.TelegramAdmins, ",")
	admins := make([]int64, 0, len(adminStrings))

	for _, adminStr := range adminStrings {
		adminStr = strings.TrimSpace(adminStr)
		if adminStr == "" {
			continue
		}

		adminID, err := strconv.ParseInt(adminStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin Telegram ID '%s': %w", adminStr, err)
		}

		admins = append(admins, adminID)
	}

	return admins, nil
}

// GetCloudConfig converts config values to cloud storage configuration struct.
func (c Config) GetCloudConfig() CloudConfig {
	return CloudConfig{
		Provider: c.CloudProvider,
		Azure: AzureCloudConfig{
			StorageAccountName: c.AzureStorageAccountName,
			StorageAccountKey:  c.AzureStorageAccountKey,
			ConnectionString:   c.AzureStorageConnectionString,
			ContainerName:      c.AzureStorageContainerName,
			BaseURL:            c.AzureStorageBaseURL,
			UseHTTPS:           c.AzureStorageUseHTTPS,
		},
	}
}

// CloudConfig holds cloud storage configuration
type CloudConfig struct {
	Provider string
	Azure    AzureCloudConfig
	// AWS and GCP configs can be added later
}

// AzureCloudConfig holds Azure Blob Storage specific configuration
type AzureCloudConfig struct {
	StorageAccountName string
	StorageAccountKey  string
	ConnectionString   string
	ContainerName      string
	BaseURL            string
	UseHTTPS           bool
}
