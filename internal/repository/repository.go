package repository

import (
	"context"
	"errors"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/shopspring/decimal"
)

// ErrEntryNotFound is returned when a config entry does not exist
var ErrEntryNotFound = errors.New("entry not found")

// StateStore persists the last scalar state of a sensor
type StateStore interface {
	// LoadState returns false when nothing was stored for the sensor yet
	LoadState(ctx context.Context, entityID string) (decimal.Decimal, bool, error)
	SaveState(ctx context.Context, entityID string, state decimal.Decimal) error
	// DeleteState forgets a sensor; deleting a missing state is not an error
	DeleteState(ctx context.Context, entityID string) error
}

// EntryStore persists wallet config entries
type EntryStore interface {
	SaveEntry(ctx context.Context, entry *models.ConfigEntry) error
	ListEntries(ctx context.Context) ([]models.ConfigEntry, error)
	DeleteEntry(ctx context.Context, entryID string) error
}

// Store is the storage backend of the service
type Store interface {
	StateStore
	EntryStore
}
