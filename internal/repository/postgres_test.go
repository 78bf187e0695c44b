package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresLoadState(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.sensor_states")).
		WithArgs("wallet_bank_amount eur").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("42.10"))
	state, found, err := store.LoadState(ctx, "wallet_bank_amount eur")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, state.Equal(decimal.RequireFromString("42.1")))

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.sensor_states")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))
	_, found, err = store.LoadState(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveState(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet.sensor_states")).
		WithArgs("wallet_bank_value eur", "12.5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SaveState(context.Background(), "wallet_bank_value eur", decimal.RequireFromString("12.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEntries(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallet.config_entries")).
		WithArgs("e1", "Wallet", models.SourceUser, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	entry := &models.ConfigEntry{EntryID: "e1", Title: "Wallet", Source: models.SourceUser,
		Data: models.Wallet{Name: "bank", Type: models.WalletSaving}}
	require.NoError(t, store.SaveEntry(ctx, entry))
	assert.Equal(t, created, entry.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.config_entries")).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "title", "source", "data", "created_at"}).
			AddRow("e1", "Wallet", "user", []byte(`{"name":"bank","url":"","type":"saving","items":[{"item_name":"eur","entity_id":"","amount":"10"}]}`), created))
	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bank", entries[0].Data.Name)
	assert.True(t, entries[0].Data.Items[0].Amount.Equal(decimal.NewFromInt(10)))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM wallet.config_entries")).
		WithArgs("e2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.DeleteEntry(ctx, "e2"), ErrEntryNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteState(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM wallet.sensor_states")).
		WithArgs("wallet_bank_amount eur").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteState(context.Background(), "wallet_bank_amount eur"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
