package sheets

import (
	"context"

	"vaultbot/internal/core"
)

// Ports for outbound adapters. Every persistence backend implements Store.
type (
	VaultReader interface {
		// ActiveVaults returns the active vaults of owner with their latest
		// reported amount, in creation order.
		ActiveVaults(ctx context.Context, ownerID int64) ([]core.Vault, error)
		// ActiveVaultCount counts active vaults across all owners.
		ActiveVaultCount(ctx context.Context) (int, error)
		OwnerVaults(ctx context.Context, ownerID int64, includeInactive bool) ([]core.Vault, error)
	}

	SubmissionWriter interface {
		// OpenPeriod returns the period identified by key, creating it on
		// first use. Every owner reporting the same key shares the period.
		OpenPeriod(ctx context.Context, key string) (core.Period, error)
		// RecordSubmission stores amount for vault in period, replacing a
		// previous value of the same vault.
		RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error
	}

	PeriodLister interface {
		// ListPeriods returns every period ordered by creation time ascending.
		ListPeriods(ctx context.Context) ([]core.Period, error)
		Period(ctx context.Context, id string) (core.Period, error)
	}

	RecipientLister interface {
		// Recipients returns the chats that receive finished summaries.
		Recipients(ctx context.Context) ([]int64, error)
	}

	VaultEditor interface {
		// CreateVault stores v, registering its owner when needed.
		CreateVault(ctx context.Context, v core.Vault) (core.Vault, error)
		RenameVault(ctx context.Context, id, title string) error
		ChangeVaultCurrency(ctx context.Context, id, currency string) error
		// ChangeVaultAmount overwrites the most recent submission of vault.
		ChangeVaultAmount(ctx context.Context, id string, amount float64) error
		SetVaultActive(ctx context.Context, id string, active bool) error
	}

	UserRegistrar interface {
		EnsureUser(ctx context.Context, u core.User) error
	}

	Store interface {
		VaultReader
		SubmissionWriter
		PeriodLister
		RecipientLister
		VaultEditor
		UserRegistrar
	}
)
