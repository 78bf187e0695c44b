// Package states keeps the last published state of every entity, both wallet
// sensors and the external trackers they read rates from.
package states

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Unavailable is the state string of an entity that cannot report a value
const Unavailable = "unavailable"

// State is the published state of one entity
type State struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Table is a concurrency-safe entity id to state map
type Table struct {
	mu     sync.RWMutex
	states map[string]State
	now    func() time.Time
}

// NewTable creates an empty state table
func NewTable() *Table {
	return &Table{states: make(map[string]State), now: time.Now}
}

// Set publishes a state, replacing the previous one
func (t *Table) Set(entityID, state string, attrs map[string]interface{}) State {
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	s := State{EntityID: entityID, State: state, Attributes: copied, LastUpdated: t.now()}

	t.mu.Lock()
	t.states[entityID] = s
	t.mu.Unlock()
	return s
}

// Get returns the state of an entity
func (t *Table) Get(entityID string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[entityID]
	return s, ok
}

// Remove drops an entity from the table
func (t *Table) Remove(entityID string) {
	t.mu.Lock()
	delete(t.states, entityID)
	t.mu.Unlock()
}

// All returns every state ordered by entity id
func (t *Table) All() []State {
	t.mu.RLock()
	out := make([]State, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Decimal reads the numeric state of an entity.
// Missing, unavailable and non-numeric states read as zero.
func (t *Table) Decimal(entityID string) decimal.Decimal {
	s, ok := t.Get(entityID)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.State)
	if err != nil {
		return decimal.Zero
	}
	return d
}
