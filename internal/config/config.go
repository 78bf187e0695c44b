package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port              string
	LogLevel          string
	JWTSecret         string
	AdminPasswordHash string
	CBRURL            string
	CBRCurrencies     []string
	StorageBackend    string
	StorageDir        string
	DBConn            string
	WalletsFile       string
	ScanInterval      time.Duration
	RateInterval      time.Duration
	Currency          string
	FlowTTL           time.Duration
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	SenderEmail       string
	NotifyEmail       string
}

const (
	minScanInterval = time.Minute
	maxScanInterval = 10 * time.Minute
)

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		CBRURL:            getEnv("CBR_URL", "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"),
		CBRCurrencies:     splitList(getEnv("CBR_CURRENCIES", "USD,EUR")),
		StorageBackend:    getEnv("STORAGE_BACKEND", "file"),
		StorageDir:        getEnv("STORAGE_DIR", ".storage"),
		DBConn:            getEnv("DB_CONN", ""),
		WalletsFile:       getEnv("WALLETS_FILE", ""),
		Currency:          strings.ToUpper(getEnv("CURRENCY", "EUR")),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", ""),
		NotifyEmail:       getEnv("NOTIFY_EMAIL", ""),
	}

	var err error
	if cfg.ScanInterval, err = getDuration("SCAN_INTERVAL", maxScanInterval); err != nil {
		return nil, err
	}
	if cfg.RateInterval, err = getDuration("RATE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.FlowTTL, err = getDuration("FLOW_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.ScanInterval < minScanInterval || cfg.ScanInterval > maxScanInterval {
		return nil, fmt.Errorf("SCAN_INTERVAL must be between %s and %s, got %s", minScanInterval, maxScanInterval, cfg.ScanInterval)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StorageBackend {
	case "file":
		if cfg.StorageDir == "" {
			return nil, fmt.Errorf("STORAGE_DIR is required")
		}
	case "postgres":
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// SMTPEnabled reports whether availability notifications can be mailed
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != "" && c.NotifyEmail != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
