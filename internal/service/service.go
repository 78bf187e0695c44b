package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/Dan9191/wallet-service/internal/repository"
	"github.com/Dan9191/wallet-service/internal/sensor"
	"github.com/Dan9191/wallet-service/internal/states"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrSensorNotFound is returned when no amount sensor has the given id
var ErrSensorNotFound = errors.New("sensor not found")

// EntryTitle is the title given to every wallet entry
const EntryTitle = "Wallet"

type loadedEntry struct {
	entry   models.ConfigEntry
	sensors []sensor.Sensor
}

// Service owns the wallet entries and their sensors
type Service struct {
	store    repository.Store
	states   *states.Table
	registry *sensor.Registry
	deps     sensor.Deps
	log      *logrus.Logger

	mu      sync.Mutex
	entries map[string]*loadedEntry
}

// NewService initializes a new service
func NewService(store repository.Store, table *states.Table, log *logrus.Logger, cfg *config.Config, notifier sensor.Notifier) *Service {
	return &Service{
		store:    store,
		states:   table,
		registry: sensor.NewRegistry(),
		deps: sensor.Deps{
			States:   table,
			Store:    store,
			Log:      log,
			Currency: cfg.Currency,
			Notifier: notifier,
		},
		log:     log,
		entries: make(map[string]*loadedEntry),
	}
}

// CreateEntry stores a new wallet entry and sets up its sensors
func (s *Service) CreateEntry(ctx context.Context, wallet models.Wallet, source string) (*models.ConfigEntry, error) {
	if err := wallet.Validate(); err != nil {
		return nil, err
	}
	entry := &models.ConfigEntry{
		EntryID:   uuid.NewString(),
		Title:     EntryTitle,
		Source:    source,
		Data:      wallet,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.SetupEntry(ctx, *entry); err != nil {
		return nil, err
	}
	s.log.Infof("Wallet entry created: %s (%s)", wallet.Name, entry.EntryID)
	return entry, nil
}

// SetupEntry creates, restores and registers the sensors of an entry, then
// runs a first update. A previous setup of the same entry stays in place
// when this one fails.
func (s *Service) SetupEntry(ctx context.Context, entry models.ConfigEntry) error {
	s.mu.Lock()

	var amounts, values []sensor.Sensor
	fail := func(err error) error {
		refresh := s.discardLocked(append(append([]sensor.Sensor{}, amounts...), values...))
		s.mu.Unlock()
		s.refresh(ctx, refresh)
		return err
	}
	for _, item := range entry.Data.Items {
		amount := sensor.NewAmountSensor(s.deps, entry.Data, item)
		value, err := sensor.NewValueSensor(s.deps, entry.Data, item)
		if err != nil {
			return fail(fmt.Errorf("failed to set up %s: %w", entry.Data.Name, err))
		}
		if err := amount.Attach(ctx); err != nil {
			return fail(err)
		}
		amounts = append(amounts, amount)
		if err := value.Attach(ctx); err != nil {
			return fail(err)
		}
		values = append(values, value)
	}

	released, _ := s.unloadLocked(entry.EntryID)

	created := append(append([]sensor.Sensor{}, amounts...), values...)
	loaded := &loadedEntry{entry: entry, sensors: created}
	for _, sn := range created {
		if s.registry.Register(sn) {
			s.log.WithField("entity_id", sn.EntityID()).Warn("Duplicate sensor id, previous sensor replaced")
		}
	}
	for _, id := range released {
		if _, ok := s.registry.Get(id); !ok {
			s.states.Remove(id)
		}
	}
	s.entries[entry.EntryID] = loaded
	s.mu.Unlock()

	s.refresh(ctx, created)
	s.log.Infof("Wallet %s set up with %d sensors", entry.Data.Name, len(created))
	return nil
}

// discardLocked drops the published state of sensors that never got
// registered. Ids still served by a registered sensor are returned so they
// can be republished.
func (s *Service) discardLocked(attached []sensor.Sensor) []sensor.Sensor {
	var republish []sensor.Sensor
	for _, sn := range attached {
		if cur, ok := s.registry.Get(sn.EntityID()); ok {
			republish = append(republish, cur)
			continue
		}
		s.states.Remove(sn.EntityID())
	}
	return republish
}

// refresh updates amount sensors before the value sensors reading them
func (s *Service) refresh(ctx context.Context, sensors []sensor.Sensor) {
	for _, kind := range []models.SensorKind{models.KindAmount, models.KindValue} {
		for _, sn := range sensors {
			if sn.Kind() == kind {
				sn.Update(ctx)
			}
		}
	}
}

// LoadEntries sets up stored entries, then imports static wallets. A static
// wallet replaces the data of a previous import with the same name.
func (s *Service) LoadEntries(ctx context.Context, static []models.Wallet) error {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return err
	}

	imported := make(map[string]models.ConfigEntry)
	for _, entry := range entries {
		if entry.Source == models.SourceImport {
			imported[entry.Data.Name] = entry
		}
		if err := s.SetupEntry(ctx, entry); err != nil {
			s.log.Errorf("Failed to set up entry %s: %v", entry.EntryID, err)
		}
	}

	for _, wallet := range static {
		entry, ok := imported[wallet.Name]
		if !ok {
			if _, err := s.CreateEntry(ctx, wallet, models.SourceImport); err != nil {
				return fmt.Errorf("failed to import wallet %s: %w", wallet.Name, err)
			}
			continue
		}
		entry.Data = wallet
		if err := s.store.SaveEntry(ctx, &entry); err != nil {
			return err
		}
		if err := s.SetupEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to import wallet %s: %w", wallet.Name, err)
		}
	}
	return nil
}

// RemoveEntry deletes an entry, its sensors and their persisted states
func (s *Service) RemoveEntry(ctx context.Context, entryID string) error {
	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	s.mu.Lock()
	released, restored := s.unloadLocked(entryID)
	for _, id := range released {
		s.states.Remove(id)
	}
	s.mu.Unlock()
	s.refresh(ctx, restored)

	var errs []error
	for _, id := range released {
		if err := s.store.DeleteState(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear states of entry %s: %w", entryID, err)
	}
	s.log.Infof("Wallet entry removed: %s", entryID)
	return nil
}

// unloadLocked unregisters the sensors of an entry. An id shared with another
// loaded entry goes back to that entry's sensor and is returned in restored;
// ids nobody serves anymore are returned in released.
func (s *Service) unloadLocked(entryID string) (released []string, restored []sensor.Sensor) {
	loaded, ok := s.entries[entryID]
	if !ok {
		return nil, nil
	}
	delete(s.entries, entryID)

	for _, sn := range loaded.sensors {
		if !s.registry.UnregisterSensor(sn) {
			continue
		}
		if other := s.ownerLocked(sn.EntityID()); other != nil {
			s.registry.Register(other)
			restored = append(restored, other)
			s.log.WithField("entity_id", sn.EntityID()).Warn("Sensor id shared with another entry, its sensor is restored")
			continue
		}
		released = append(released, sn.EntityID())
	}
	return released, restored
}

// ownerLocked finds the sensor of the most recent loaded entry using an id
func (s *Service) ownerLocked(entityID string) sensor.Sensor {
	var owner sensor.Sensor
	var newest time.Time
	for _, loaded := range s.entries {
		for _, sn := range loaded.sensors {
			if sn.EntityID() == entityID && (owner == nil || loaded.entry.CreatedAt.After(newest)) {
				owner = sn
				newest = loaded.entry.CreatedAt
			}
		}
	}
	return owner
}

// Entries returns the loaded entries in creation order
func (s *Service) Entries() []models.ConfigEntry {
	s.mu.Lock()
	out := make([]models.ConfigEntry, 0, len(s.entries))
	for _, loaded := range s.entries {
		out = append(out, loaded.entry)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SetAmount is the set_amount action
func (s *Service) SetAmount(ctx context.Context, entityID string, amount decimal.Decimal) error {
	a, ok := s.registry.Amount(entityID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, entityID)
	}
	return a.SetAmount(ctx, amount)
}

// UpdateAll polls amount sensors first, then the value sensors reading them
func (s *Service) UpdateAll(ctx context.Context) {
	all := s.registry.All()
	for _, kind := range []models.SensorKind{models.KindAmount, models.KindValue} {
		for _, sn := range all {
			if ctx.Err() != nil {
				s.log.Warnf("Sensor poll interrupted: %v", ctx.Err())
				return
			}
			if sn.Kind() == kind {
				sn.Update(ctx)
			}
		}
	}
	s.log.Debugf("Polled %d sensors", len(all))
}

// Sensors returns snapshots of every sensor
func (s *Service) Sensors() []models.SensorState {
	all := s.registry.All()
	out := make([]models.SensorState, 0, len(all))
	for _, sn := range all {
		out = append(out, sn.Snapshot())
	}
	return out
}

// Sensor returns the snapshot of one sensor
func (s *Service) Sensor(entityID string) (models.SensorState, error) {
	sn, ok := s.registry.Get(entityID)
	if !ok {
		return models.SensorState{}, fmt.Errorf("%w: %s", ErrSensorNotFound, entityID)
	}
	return sn.Snapshot(), nil
}
