package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vaultbot/internal/aggregate"
	"vaultbot/internal/core"
	"vaultbot/internal/currency"
	applog "vaultbot/internal/log"
	"vaultbot/internal/services"
)

var validBackends = []string{"memory", "sqlite", "sheets", "mongo"}

type Config struct {
	// HTTP server
	Port        string
	NotifyToken string
	LogLevel    string

	// Telegram
	TelegramBotToken   string
	TelegramWebhookURL string
	// HouseholdMembers lists the chat IDs served by the bot, comma separated.
	// Empty serves every chat.
	HouseholdMembers string

	// Backend selection
	DataBackend   string
	DataDirectory string

	SQLiteDBPath string

	MongoURI      string
	MongoDatabase string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// Reporting
	EquivalenceCurrency string
	DiffMode            string
	ParallelConversion  bool
	RatesAPIURL         string
	RatesCacheTTL       time.Duration
	FixedRates          string
	PeriodKeyLayout     string
	PollStartMode       string
	SessionTTL          time.Duration

	// Reminder
	ReminderFrequency     string
	ReminderDay           int
	ReminderCheckInterval time.Duration

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		NotifyToken: getEnv("NOTIFY_TOKEN", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", ""),
		HouseholdMembers:   getEnv("HOUSEHOLD_MEMBERS", ""),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIR", "data"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/vaultbot.db"),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "vaultbot"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "vaultbot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_submissions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Vaults"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		EquivalenceCurrency: getEnv("EQUIVALENCE_CURRENCY", "USD"),
		DiffMode:            getEnv("DIFF_MODE", "absolute"),
		ParallelConversion:  getEnvBool("PARALLEL_CONVERSION", false),
		RatesAPIURL:         getEnv("RATES_API_URL", currency.DefaultRatesURL),
		RatesCacheTTL:       getEnvDuration("RATES_CACHE_TTL", time.Hour),
		FixedRates:          getEnv("FIXED_RATES", ""),
		PeriodKeyLayout:     getEnv("PERIOD_KEY_LAYOUT", "2006-01"),
		PollStartMode:       getEnv("POLL_START_MODE", "resume"),
		SessionTTL:          getEnvDuration("SESSION_TTL", 30*time.Minute),

		ReminderFrequency:     getEnv("REMINDER_FREQUENCY", "off"),
		ReminderDay:           getEnvInt("REMINDER_DAY", 1),
		ReminderCheckInterval: getEnvDuration("REMINDER_CHECK_INTERVAL", time.Hour),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	return joinErrors(c.problems())
}

// ValidateBot is Validate plus the settings only the bot binary needs.
func (c *Config) ValidateBot() error {
	problems := c.problems()
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		problems = append(problems, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramWebhookURL != "" {
		if u, err := url.Parse(c.TelegramWebhookURL); err != nil || u.Scheme != "https" {
			problems = append(problems, fmt.Sprintf("invalid webhook URL '%s': must be an https URL", c.TelegramWebhookURL))
		}
	}
	if _, err := c.Members(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.SessionTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	return joinErrors(problems)
}

// Members parses HouseholdMembers into chat IDs.
func (c *Config) Members() ([]int64, error) {
	var ids []int64
	for _, field := range strings.Split(c.HouseholdMembers, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid household member '%s': must be a chat ID", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) problems() []string {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	valid := false
	for _, b := range validBackends {
		if c.DataBackend == b {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		errs = append(errs, c.sqliteProblems()...)
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required when using mongo backend")
		} else if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errs = append(errs, fmt.Sprintf("invalid MongoDB URI '%s': scheme must be 'mongodb' or 'mongodb+srv'", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	case "sheets":
		errs = append(errs, c.sheetsProblems()...)
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := core.NormalizeCurrency(c.EquivalenceCurrency); err != nil {
		errs = append(errs, fmt.Sprintf("invalid equivalence currency '%s'", c.EquivalenceCurrency))
	}
	if _, err := aggregate.ParseMode(c.DiffMode); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := services.ParseStartMode(c.PollStartMode); err != nil {
		errs = append(errs, err.Error())
	}
	if c.FixedRates != "" {
		if _, err := currency.ParseStatic(c.FixedRates); err != nil {
			errs = append(errs, fmt.Sprintf("invalid FIXED_RATES: %v", err))
		}
	} else if u, err := url.Parse(c.RatesAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("invalid rates API URL '%s'", c.RatesAPIURL))
	}
	if strings.TrimSpace(c.PeriodKeyLayout) == "" {
		errs = append(errs, "PERIOD_KEY_LAYOUT cannot be empty")
	}

	freq, err := services.ParseFrequency(c.ReminderFrequency)
	if err != nil {
		errs = append(errs, err.Error())
	}
	switch freq {
	case services.FrequencyWeekly:
		if c.ReminderDay < 0 || c.ReminderDay > 6 {
			errs = append(errs, fmt.Sprintf("invalid reminder day %d: weekly reminders need 0 (Sunday) to 6", c.ReminderDay))
		}
	case services.FrequencyMonthly:
		if c.ReminderDay < 1 || c.ReminderDay > 31 {
			errs = append(errs, fmt.Sprintf("invalid reminder day %d: monthly reminders need 1 to 31", c.ReminderDay))
		}
	}
	if freq != services.FrequencyOff && c.ReminderCheckInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid reminder check interval %v: must be at least 1 minute", c.ReminderCheckInterval))
	}

	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	return errs
}

func (c *Config) sqliteProblems() []string {
	if c.SQLiteDBPath == "" {
		return []string{"SQLite database path cannot be empty when using sqlite backend"}
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return []string{fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)}
		}
	}
	return nil
}

// sheetsProblems accepts a service account or an OAuth client with its
// stored token.
func (c *Config) sheetsProblems() []string {
	var errs []string
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "Google Spreadsheet ID is required when using sheets backend")
	}
	if c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" {
		if c.GoogleServiceAccountFile != "" && c.GoogleServiceAccountJSON == "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		return errs
	}

	hasClientFile := c.GoogleOAuthClientFile != ""
	hasTokenFile := c.GoogleOAuthTokenFile != ""
	if !hasClientFile && c.GoogleOAuthClientJSON == "" {
		errs = append(errs, "either a service account or GOOGLE_OAUTH_CLIENT_FILE/GOOGLE_OAUTH_CLIENT_JSON must be provided for sheets backend")
	}
	if !hasTokenFile && c.GoogleOAuthTokenJSON == "" {
		errs = append(errs, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for sheets backend")
	}
	if hasClientFile {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}
	if hasTokenFile {
		if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
		}
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
