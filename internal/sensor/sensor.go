// Package sensor implements the amount and value sensors derived from wallet
// items, and the registry the set_amount action resolves them through.
package sensor

import (
	"context"
	"sync"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/Dan9191/wallet-service/internal/repository"
	"github.com/Dan9191/wallet-service/internal/states"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sensor is a wallet entity driven by the poll scheduler
type Sensor interface {
	EntityID() string
	Kind() models.SensorKind
	// Attach restores the persisted state and publishes it
	Attach(ctx context.Context) error
	// Update recomputes and publishes the state
	Update(ctx context.Context)
	Snapshot() models.SensorState
}

// Notifier is told when a sensor becomes unavailable or recovers
type Notifier interface {
	AvailabilityChanged(ctx context.Context, s models.SensorState)
}

// Deps are the collaborators shared by every sensor of a service
type Deps struct {
	States   *states.Table
	Store    repository.StateStore
	Log      *logrus.Logger
	Currency string
	Notifier Notifier
}

type base struct {
	deps       Deps
	id         string
	name       string
	kind       models.SensorKind
	wallet     string
	walletType models.WalletType
	tracker    string
	log        *logrus.Entry

	mu        sync.Mutex
	state     decimal.Decimal
	hasState  bool
	available bool
	extra     map[string]interface{}
}

func (b *base) init(deps Deps, wallet models.Wallet, item models.Item, kind models.SensorKind) {
	b.deps = deps
	b.id = models.SensorID(wallet.Name, kind, item.Name)
	b.name = b.id
	b.kind = kind
	b.wallet = wallet.Name
	b.walletType = wallet.Type
	b.tracker = item.EntityID
	b.available = true
	b.log = deps.Log.WithFields(logrus.Fields{
		"entity_id": b.id,
		"wallet":    wallet.Name,
	})
}

func (b *base) EntityID() string        { return b.id }
func (b *base) Kind() models.SensorKind { return b.kind }

// attributes must be called with mu held
func (b *base) attributes() map[string]interface{} {
	attrs := map[string]interface{}{
		models.AttrName:          b.name,
		models.AttrWallet:        b.wallet,
		models.AttrType:          string(b.walletType),
		models.AttrEntityTracker: b.tracker,
	}
	for k, v := range b.extra {
		attrs[k] = v
	}
	return attrs
}

// snapshot must be called with mu held
func (b *base) snapshot() models.SensorState {
	s := models.SensorState{
		EntityID:   b.id,
		Name:       b.name,
		Kind:       b.kind,
		Available:  b.available,
		Attributes: b.attributes(),
	}
	if b.hasState {
		s.State = b.state.String()
	}
	return s
}

// publish must be called with mu held
func (b *base) publish() {
	state := states.Unavailable
	if b.available && b.hasState {
		state = b.state.String()
	}
	b.deps.States.Set(b.id, state, b.attributes())
}

func (b *base) Snapshot() models.SensorState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}
