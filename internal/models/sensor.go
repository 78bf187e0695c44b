package models

import "fmt"

// SensorKind distinguishes the two sensors derived from an item
type SensorKind string

const (
	KindAmount SensorKind = "amount"
	KindValue  SensorKind = "value"
)

// Attribute keys published by wallet sensors
const (
	AttrName          = "name"
	AttrUnit          = "unit_of_measurement"
	AttrStateClass    = "state_class"
	AttrDeviceClass   = "device_class"
	AttrWallet        = "wallet"
	AttrType          = "type"
	AttrEntityTracker = "entity_tracker"
	AttrRate          = "rate"
	AttrAmount        = "amount"
	AttrFormatted     = "formatted"
)

// SensorID derives the identifier of an item sensor.
// Items sharing a name inside one wallet yield the same identifier.
func SensorID(wallet string, kind SensorKind, item string) string {
	return fmt.Sprintf("wallet_%s_%s %s", wallet, kind, item)
}

// SensorState is a published snapshot of a sensor
type SensorState struct {
	EntityID   string                 `json:"entity_id"`
	Name       string                 `json:"name"`
	Kind       SensorKind             `json:"kind"`
	State      string                 `json:"state"`
	Available  bool                   `json:"available"`
	Attributes map[string]interface{} `json:"attributes"`
}
