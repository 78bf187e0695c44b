package sensor

import (
	"context"
	"fmt"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/shopspring/decimal"
)

// AmountSensor holds the user editable quantity of an item
type AmountSensor struct {
	base
}

// NewAmountSensor creates the amount sensor of an item, starting at the configured amount
func NewAmountSensor(deps Deps, wallet models.Wallet, item models.Item) *AmountSensor {
	s := &AmountSensor{}
	s.init(deps, wallet, item, models.KindAmount)
	s.state = item.Amount
	s.hasState = true
	s.extra = map[string]interface{}{
		models.AttrUnit:       "",
		models.AttrStateClass: "measurement",
	}
	return s
}

// Attach overrides the configured amount with the last persisted one
func (s *AmountSensor) Attach(ctx context.Context) error {
	stored, found, err := s.deps.Store.LoadState(ctx, s.id)
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", s.id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.state = stored
		s.log.Debugf("Restored amount %s", stored)
	}
	s.publish()
	return nil
}

// Update republishes the current amount
func (s *AmountSensor) Update(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish()
}

// Amount returns the current amount
func (s *AmountSensor) Amount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetAmount persists and publishes a new amount
func (s *AmountSensor) SetAmount(ctx context.Context, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deps.Store.SaveState(ctx, s.id, amount); err != nil {
		return fmt.Errorf("failed to persist amount of %s: %w", s.id, err)
	}
	s.state = amount
	s.publish()
	s.log.Infof("Amount set to %s", amount)
	return nil
}
