package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig is a memory backend setup that passes Validate.
func validConfig() Config {
	return Config{
		Port:                "8081",
		LogLevel:            "info",
		DataBackend:         "memory",
		EquivalenceCurrency: "USD",
		DiffMode:            "absolute",
		RatesAPIURL:         "https://open.er-api.com/v6/latest",
		PeriodKeyLayout:     "2006-01",
		PollStartMode:       "resume",
		SessionTTL:          30 * time.Minute,
		ReminderFrequency:   "off",
		SyncBatchSize:       10,
		SyncInterval:        30 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	if err := os.WriteFile(clientFile, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name: "sqlite creates its directory",
			mutate: func(c *Config) {
				c.DataBackend = "sqlite"
				c.SQLiteDBPath = filepath.Join(dir, "nested", "vaultbot.db")
			},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Port = "abc" },
			wantErr: []string{"invalid port 'abc': must be a number"},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = "70000" },
			wantErr: []string{"invalid port 70000: must be between 1 and 65535"},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.DataBackend = "postgres" },
			wantErr: []string{"invalid data backend 'postgres'"},
		},
		{
			name: "mongo needs a mongodb uri",
			mutate: func(c *Config) {
				c.DataBackend = "mongo"
				c.MongoURI = "http://localhost"
				c.MongoDatabase = ""
			},
			wantErr: []string{"invalid MongoDB URI", "MONGO_DATABASE cannot be empty"},
		},
		{
			name: "mongo ok",
			mutate: func(c *Config) {
				c.DataBackend = "mongo"
				c.MongoURI = "mongodb+srv://user:pw@cluster.example.net"
				c.MongoDatabase = "vaultbot"
			},
		},
		{
			name:    "sheets without credentials",
			mutate:  func(c *Config) { c.DataBackend = "sheets" },
			wantErr: []string{"Google Spreadsheet ID is required", "GOOGLE_OAUTH_CLIENT_FILE", "GOOGLE_OAUTH_TOKEN_FILE"},
		},
		{
			name: "sheets with service account",
			mutate: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleSpreadsheetID = "sheet"
				c.GoogleServiceAccountJSON = "{}"
			},
		},
		{
			name: "sheets with missing oauth token file",
			mutate: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleSpreadsheetID = "sheet"
				c.GoogleOAuthClientFile = clientFile
				c.GoogleOAuthTokenFile = filepath.Join(dir, "missing.json")
			},
			wantErr: []string{"Google OAuth token file does not exist"},
		},
		{
			name: "amqp scheme and names",
			mutate: func(c *Config) {
				c.AMQPURL = "http://localhost"
				c.AMQPQueue = ""
				c.AMQPExchange = "x"
			},
			wantErr: []string{"invalid AMQP URL scheme 'http'", "AMQP queue name cannot be empty"},
		},
		{
			name: "reporting settings",
			mutate: func(c *Config) {
				c.EquivalenceCurrency = "XYZ1"
				c.DiffMode = "ratio"
				c.PollStartMode = "restart"
				c.LogLevel = "chatty"
			},
			wantErr: []string{"invalid equivalence currency", "unknown diff mode", "unknown poll start mode", "unknown log level"},
		},
		{
			name:    "fixed rates are parsed",
			mutate:  func(c *Config) { c.FixedRates = "EUR-USD" },
			wantErr: []string{"invalid FIXED_RATES"},
		},
		{
			name: "weekly reminder day",
			mutate: func(c *Config) {
				c.ReminderFrequency = "weekly"
				c.ReminderDay = 7
				c.ReminderCheckInterval = time.Hour
			},
			wantErr: []string{"invalid reminder day 7"},
		},
		{
			name: "monthly reminder needs a check interval",
			mutate: func(c *Config) {
				c.ReminderFrequency = "monthly"
				c.ReminderDay = 15
				c.ReminderCheckInterval = time.Second
			},
			wantErr: []string{"invalid reminder check interval"},
		},
		{
			name: "worker bounds",
			mutate: func(c *Config) {
				c.SyncBatchSize = 0
				c.SyncInterval = 48 * time.Hour
			},
			wantErr: []string{"invalid sync batch size 0", "invalid sync interval 48h0m0s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q lacks %q", err, want)
				}
			}
		})
	}
}

func TestConfig_ValidateSQLiteDirectory(t *testing.T) {
	cfg := validConfig()
	cfg.DataBackend = "sqlite"
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "a", "b", "vaultbot.db")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.SQLiteDBPath)); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestConfig_ValidateBot(t *testing.T) {
	cfg := validConfig()
	err := cfg.ValidateBot()
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN is required") {
		t.Fatalf("ValidateBot() = %v", err)
	}

	cfg.TelegramBotToken = "123:abc"
	cfg.TelegramWebhookURL = "http://bot.example.com/telegram/webhook"
	if err := cfg.ValidateBot(); err == nil || !strings.Contains(err.Error(), "must be an https URL") {
		t.Fatalf("ValidateBot() = %v", err)
	}

	cfg.TelegramWebhookURL = "https://bot.example.com/telegram/webhook"
	if err := cfg.ValidateBot(); err != nil {
		t.Fatalf("ValidateBot() = %v", err)
	}

	cfg.HouseholdMembers = "12345, alice"
	if err := cfg.ValidateBot(); err == nil || !strings.Contains(err.Error(), "invalid household member 'alice'") {
		t.Fatalf("ValidateBot() = %v", err)
	}
}

func TestConfig_Members(t *testing.T) {
	tests := []struct {
		raw     string
		want    []int64
		wantErr bool
	}{
		{raw: ""},
		{raw: "12345", want: []int64{12345}},
		{raw: " 12345 , -100200300,", want: []int64{12345, -100200300}},
		{raw: "12345;678", wantErr: true},
	}
	for _, tt := range tests {
		cfg := Config{HouseholdMembers: tt.raw}
		got, err := cfg.Members()
		if (err != nil) != tt.wantErr {
			t.Errorf("Members(%q) error = %v", tt.raw, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("Members(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Members(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"PORT", "DATA_BACKEND", "EQUIVALENCE_CURRENCY", "SYNC_BATCH_SIZE", "PARALLEL_CONVERSION", "SESSION_TTL"} {
			t.Setenv(k, "")
		}
		cfg := Load()
		if cfg.Port != "8081" || cfg.DataBackend != "memory" || cfg.EquivalenceCurrency != "USD" {
			t.Errorf("Load() = %+v", cfg)
		}
		if cfg.SyncBatchSize != 10 || cfg.ParallelConversion || cfg.SessionTTL != 30*time.Minute {
			t.Errorf("Load() = %+v", cfg)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("DATA_BACKEND", "mongo")
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("PARALLEL_CONVERSION", "true")
		t.Setenv("REMINDER_DAY", "15")
		t.Setenv("RATES_CACHE_TTL", "10m")

		cfg := Load()
		if cfg.Port != "9090" || cfg.DataBackend != "mongo" || cfg.MongoURI != "mongodb://localhost:27017" {
			t.Errorf("Load() = %+v", cfg)
		}
		if !cfg.ParallelConversion || cfg.ReminderDay != 15 || cfg.RatesCacheTTL != 10*time.Minute {
			t.Errorf("Load() = %+v", cfg)
		}
	})

	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		t.Setenv("SYNC_BATCH_SIZE", "many")
		t.Setenv("SYNC_INTERVAL", "soon")
		t.Setenv("PARALLEL_CONVERSION", "maybe")

		cfg := Load()
		if cfg.SyncBatchSize != 10 || cfg.SyncInterval != 30*time.Second || cfg.ParallelConversion {
			t.Errorf("Load() = %+v", cfg)
		}
	})
}
