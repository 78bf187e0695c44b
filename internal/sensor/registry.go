package sensor

import (
	"sort"
	"sync"
)

// Registry maps entity ids to the sensors of a service
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sensors: make(map[string]Sensor)}
}

// Register adds a sensor. It reports true when a sensor with the same id was replaced.
func (r *Registry) Register(s Sensor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.sensors[s.EntityID()]
	r.sensors[s.EntityID()] = s
	return replaced
}

// Unregister removes a sensor
func (r *Registry) Unregister(entityID string) {
	r.mu.Lock()
	delete(r.sensors, entityID)
	r.mu.Unlock()
}

// UnregisterSensor removes s only if it is the sensor registered under its id
func (r *Registry) UnregisterSensor(s Sensor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sensors[s.EntityID()]; !ok || cur != s {
		return false
	}
	delete(r.sensors, s.EntityID())
	return true
}

// Get returns a sensor by entity id
func (r *Registry) Get(entityID string) (Sensor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sensors[entityID]
	return s, ok
}

// Amount returns the amount sensor with the given id
func (r *Registry) Amount(entityID string) (*AmountSensor, bool) {
	s, ok := r.Get(entityID)
	if !ok {
		return nil, false
	}
	a, ok := s.(*AmountSensor)
	return a, ok
}

// All returns the sensors ordered by entity id
func (r *Registry) All() []Sensor {
	r.mu.RLock()
	out := make([]Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}
