package sensor

import (
	"context"
	"fmt"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ValueSensor publishes amount × rate of an item
type ValueSensor struct {
	base
	amountID string
	currency *money.Currency
}

// NewValueSensor creates the value sensor paired with the item's amount sensor
func NewValueSensor(deps Deps, wallet models.Wallet, item models.Item) (*ValueSensor, error) {
	cur := money.GetCurrency(deps.Currency)
	if cur == nil {
		return nil, fmt.Errorf("unknown currency %q", deps.Currency)
	}
	s := &ValueSensor{
		amountID: models.SensorID(wallet.Name, models.KindAmount, item.Name),
		currency: cur,
	}
	s.init(deps, wallet, item, models.KindValue)
	s.extra = map[string]interface{}{
		models.AttrUnit:        cur.Code,
		models.AttrDeviceClass: "monetary",
		models.AttrStateClass:  "total",
	}
	return s, nil
}

// Attach restores the last computed value
func (s *ValueSensor) Attach(ctx context.Context) error {
	stored, found, err := s.deps.Store.LoadState(ctx, s.id)
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", s.id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.state = stored
		s.hasState = true
	}
	s.publish()
	return nil
}

// rate reads the tracker state. Items without a tracker use a rate of 1.
func (s *ValueSensor) rate() decimal.Decimal {
	if s.tracker == "" {
		return decimal.NewFromInt(1)
	}
	return s.deps.States.Decimal(s.tracker)
}

// Update computes amount × rate. A zero rate leaves the sensor unavailable
// with a zero value, and nothing is persisted.
func (s *ValueSensor) Update(ctx context.Context) {
	amount := s.deps.States.Decimal(s.amountID)
	rate := s.rate()

	s.mu.Lock()
	wasAvailable := s.available
	s.extra[models.AttrRate] = rate.String()
	s.extra[models.AttrAmount] = amount.String()

	if rate.IsZero() {
		s.state = decimal.Zero
		s.hasState = true
		s.available = false
		delete(s.extra, models.AttrFormatted)
		s.log.Warnf("Rate of %q is zero or unavailable", s.tracker)
	} else {
		value := amount.Mul(rate)
		if err := s.deps.Store.SaveState(ctx, s.id, value); err != nil {
			s.available = false
			delete(s.extra, models.AttrFormatted)
			s.log.Errorf("Error in wallet update: %v", err)
		} else {
			s.state = value
			s.hasState = true
			s.available = true
			s.extra[models.AttrFormatted] = s.format(value)
		}
	}
	s.publish()
	snap := s.snapshot()
	s.mu.Unlock()

	if wasAvailable != snap.Available && s.deps.Notifier != nil {
		s.deps.Notifier.AvailabilityChanged(ctx, snap)
	}
}

func (s *ValueSensor) format(v decimal.Decimal) string {
	minor := v.Shift(int32(s.currency.Fraction)).Round(0).IntPart()
	return s.currency.Formatter().Format(minor)
}
