package sensor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/Dan9191/wallet-service/internal/repository"
	"github.com/Dan9191/wallet-service/internal/states"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) LoadState(context.Context, string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (failingStore) SaveState(context.Context, string, decimal.Decimal) error {
	return errors.New("disk full")
}

func (failingStore) DeleteState(context.Context, string) error {
	return errors.New("disk full")
}

type recordingNotifier struct {
	changes []models.SensorState
}

func (n *recordingNotifier) AvailabilityChanged(_ context.Context, s models.SensorState) {
	n.changes = append(n.changes, s)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newDeps(t *testing.T, store repository.StateStore) Deps {
	if store == nil {
		fs, err := repository.NewFileStore(t.TempDir())
		require.NoError(t, err)
		store = fs
	}
	return Deps{States: states.NewTable(), Store: store, Log: quietLogger(), Currency: "EUR"}
}

var (
	wallet = models.Wallet{Name: "binance", Type: models.WalletCrypto}
	btc    = models.Item{Name: "btc", EntityID: "sensor.btc_eur", Amount: decimal.RequireFromString("2")}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValueSensorMultipliesAmountByRate(t *testing.T) {
	ctx := context.Background()
	deps := newDeps(t, nil)
	amount := NewAmountSensor(deps, wallet, btc)
	value, err := NewValueSensor(deps, wallet, btc)
	require.NoError(t, err)
	require.NoError(t, amount.Attach(ctx))
	require.NoError(t, value.Attach(ctx))

	deps.States.Set("sensor.btc_eur", "30000.5", nil)
	value.Update(ctx)

	snap := value.Snapshot()
	assert.True(t, snap.Available)
	assert.True(t, dec(snap.State).Equal(dec("60001")))
	assert.Equal(t, "30000.5", snap.Attributes[models.AttrRate])
	assert.Equal(t, "2", snap.Attributes[models.AttrAmount])
	assert.Equal(t, "EUR", snap.Attributes[models.AttrUnit])
	assert.Equal(t, "sensor.btc_eur", snap.Attributes[models.AttrEntityTracker])
	assert.NotEmpty(t, snap.Attributes[models.AttrFormatted])

	published, ok := deps.States.Get("wallet_binance_value btc")
	require.True(t, ok)
	assert.Equal(t, "60001", published.State)

	stored, found, err := deps.Store.LoadState(ctx, "wallet_binance_value btc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, stored.Equal(dec("60001")))
}

func TestValueSensorZeroRateIsUnavailable(t *testing.T) {
	ctx := context.Background()
	deps := newDeps(t, nil)
	notifier := &recordingNotifier{}
	deps.Notifier = notifier
	amount := NewAmountSensor(deps, wallet, btc)
	value, err := NewValueSensor(deps, wallet, btc)
	require.NoError(t, err)
	require.NoError(t, amount.Attach(ctx))

	deps.States.Set("sensor.btc_eur", "0", nil)
	value.Update(ctx)

	snap := value.Snapshot()
	assert.False(t, snap.Available)
	assert.Equal(t, "0", snap.State)
	published, _ := deps.States.Get("wallet_binance_value btc")
	assert.Equal(t, states.Unavailable, published.State)

	_, found, err := deps.Store.LoadState(ctx, "wallet_binance_value btc")
	require.NoError(t, err)
	assert.False(t, found)

	// missing tracker state reads as zero as well
	deps.States.Remove("sensor.btc_eur")
	value.Update(ctx)
	assert.False(t, value.Snapshot().Available)

	deps.States.Set("sensor.btc_eur", "10", nil)
	value.Update(ctx)
	assert.True(t, value.Snapshot().Available)

	require.Len(t, notifier.changes, 2)
	assert.False(t, notifier.changes[0].Available)
	assert.True(t, notifier.changes[1].Available)
}

func TestValueSensorWithoutTrackerUsesUnitRate(t *testing.T) {
	ctx := context.Background()
	deps := newDeps(t, nil)
	cash := models.Item{Name: "cash", Amount: dec("150.25")}
	amount := NewAmountSensor(deps, wallet, cash)
	value, err := NewValueSensor(deps, wallet, cash)
	require.NoError(t, err)
	require.NoError(t, amount.Attach(ctx))

	value.Update(ctx)
	snap := value.Snapshot()
	assert.True(t, snap.Available)
	assert.True(t, dec(snap.State).Equal(dec("150.25")))
}

func TestValueSensorPersistFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	deps := newDeps(t, failingStore{})
	amount := NewAmountSensor(deps, wallet, btc)
	value, err := NewValueSensor(deps, wallet, btc)
	require.NoError(t, err)
	require.NoError(t, amount.Attach(ctx))

	deps.States.Set("sensor.btc_eur", "3", nil)
	value.Update(ctx)
	assert.False(t, value.Snapshot().Available)
}

func TestValueSensorUnknownCurrency(t *testing.T) {
	deps := newDeps(t, nil)
	deps.Currency = "XXZ"
	_, err := NewValueSensor(deps, wallet, btc)
	assert.Error(t, err)
}

func TestAmountSensorRoundTripsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)

	deps := newDeps(t, store)
	amount := NewAmountSensor(deps, wallet, btc)
	require.NoError(t, amount.Attach(ctx))
	assert.True(t, amount.Amount().Equal(dec("2")))
	require.NoError(t, amount.SetAmount(ctx, dec("0.75")))

	restarted := NewAmountSensor(newDeps(t, store), wallet, btc)
	require.NoError(t, restarted.Attach(ctx))
	assert.True(t, restarted.Amount().Equal(dec("0.75")))
	assert.Equal(t, "0.75", restarted.Snapshot().State)
}

func TestAmountSensorSetAmountFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	amount := NewAmountSensor(newDeps(t, failingStore{}), wallet, btc)
	require.NoError(t, amount.Attach(ctx))

	assert.Error(t, amount.SetAmount(ctx, dec("9")))
	assert.True(t, amount.Amount().Equal(dec("2")))
}

func TestRegistry(t *testing.T) {
	deps := newDeps(t, nil)
	reg := NewRegistry()
	amount := NewAmountSensor(deps, wallet, btc)
	value, err := NewValueSensor(deps, wallet, btc)
	require.NoError(t, err)

	assert.False(t, reg.Register(value))
	assert.False(t, reg.Register(amount))
	// same wallet and item name collide
	assert.True(t, reg.Register(NewAmountSensor(deps, wallet, btc)))

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "wallet_binance_amount btc", all[0].EntityID())

	_, ok := reg.Amount("wallet_binance_value btc")
	assert.False(t, ok)
	_, ok = reg.Amount("wallet_binance_amount btc")
	assert.True(t, ok)

	reg.Unregister("wallet_binance_amount btc")
	_, ok = reg.Get("wallet_binance_amount btc")
	assert.False(t, ok)
}

func TestValueSensorDropsFormattedWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	deps := newDeps(t, nil)
	amount := NewAmountSensor(deps, wallet, btc)
	value, err := NewValueSensor(deps, wallet, btc)
	require.NoError(t, err)
	require.NoError(t, amount.Attach(ctx))

	deps.States.Set("sensor.btc_eur", "5", nil)
	value.Update(ctx)
	assert.Contains(t, value.Snapshot().Attributes, models.AttrFormatted)

	deps.States.Set("sensor.btc_eur", "0", nil)
	value.Update(ctx)
	assert.NotContains(t, value.Snapshot().Attributes, models.AttrFormatted)

	published, _ := deps.States.Get("wallet_binance_value btc")
	assert.NotContains(t, published.Attributes, models.AttrFormatted)
}

func TestRegistryUnregisterSensorOnlyRemovesOwnSensor(t *testing.T) {
	deps := newDeps(t, nil)
	reg := NewRegistry()
	first := NewAmountSensor(deps, wallet, btc)
	second := NewAmountSensor(deps, wallet, btc)
	reg.Register(first)
	reg.Register(second)

	assert.False(t, reg.UnregisterSensor(first))
	got, ok := reg.Get(second.EntityID())
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, reg.UnregisterSensor(second))
	_, ok = reg.Get(second.EntityID())
	assert.False(t, ok)
}
