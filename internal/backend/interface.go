package backend

import (
	"context"

	"vaultbot/internal/sheets"
)

// Pinger is implemented by backends with a remote dependency worth probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CleanupFunc func() error

// BackendResult is a ready store plus what the caller must release.
type BackendResult struct {
	Store sheets.Store
	// Pinger is nil for backends without a connection to check.
	Pinger  Pinger
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite, with optional AMQP sync towards the spreadsheet
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	MongoURI      string
	MongoDatabase string

	// Sheets credentials are read from the environment by the client.
	GoogleSpreadsheetID string

	// Memory seeds from DataDirectory/seed_vaults.txt.
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend, MongoBackend:
		return true
	default:
		return false
	}
}
