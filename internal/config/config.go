package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Sync     SyncConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SecurityConfig - настройки безопасности.
//
// EncryptionPassphrase - процесс-wide секрет, из которого scrypt выводит
// ключ AES-256 для шифрования API ключей аккаунтов. Приходит только из
// окружения, никогда из БД, и никогда не логируется.
type SecurityConfig struct {
	EncryptionPassphrase string
}

// SyncConfig - настройки синхронизации сделок с провайдерами
type SyncConfig struct {
	// Retry для запросов к провайдерам
	MaxRetries   int
	RetryBackoff time.Duration

	// Таймаут одного цикла синхронизации (fetch + merge + advance)
	CycleTimeout time.Duration

	// Rate limit для API провайдеров (запросов в секунду и burst)
	ProviderRate  float64
	ProviderBurst float64

	// Максимум страниц пагинации за один цикл - защита от
	// бесконечного цикла при некорректном курсоре провайдера
	MaxPages int
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "tradejournal"),
			User:            getEnv("DB_USER", "user"),
			Password:        getEnv("DB_PASSWORD", "password"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			EncryptionPassphrase: getEnv("ENCRYPTION_PASSPHRASE", ""),
		},
		Sync: SyncConfig{
			MaxRetries:    getEnvAsInt("SYNC_MAX_RETRIES", 4),
			RetryBackoff:  getEnvAsDuration("SYNC_RETRY_BACKOFF", 500*time.Millisecond),
			CycleTimeout:  getEnvAsDuration("SYNC_CYCLE_TIMEOUT", 60*time.Second),
			ProviderRate:  getEnvAsFloat("PROVIDER_RATE_LIMIT", 10),
			ProviderBurst: getEnvAsFloat("PROVIDER_RATE_BURST", 20),
			MaxPages:      getEnvAsInt("SYNC_MAX_PAGES", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_PASSPHRASE обязателен для шифрования API ключей аккаунтов
	if c.Security.EncryptionPassphrase == "" {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE is required for encrypting account credentials")
	}

	if len(c.Security.EncryptionPassphrase) < 16 {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE must be at least 16 characters")
	}

	if c.Security.EncryptionPassphrase == "change-me-in-production" {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE must be changed from default value")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("SYNC_MAX_RETRIES cannot be negative, got %d", c.Sync.MaxRetries)
	}

	if c.Sync.MaxRetries > 10 {
		return fmt.Errorf("SYNC_MAX_RETRIES should not exceed 10, got %d", c.Sync.MaxRetries)
	}

	if c.Sync.CycleTimeout <= 0 {
		return fmt.Errorf("SYNC_CYCLE_TIMEOUT must be positive, got %v", c.Sync.CycleTimeout)
	}

	if c.Sync.MaxPages < 1 {
		return fmt.Errorf("SYNC_MAX_PAGES must be at least 1, got %d", c.Sync.MaxPages)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
