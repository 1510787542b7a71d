// Package devicemanager is the admin-facing layer that keeps the
// Configuration Store and the live Fleet in lockstep on every roster
// mutation, so admin handlers never have to remember to touch both.
package devicemanager

import "solarfleet-sim/internal/pkg/store"

// Interface is the operator contract spec.md's Admin Surface consumes.
type Interface interface {
	ListDevices() ([]store.RosterEntry, error)
	AddDevice(name string, deviceNumber uint16, alarms store.AlarmMasks) (eui string, err error)
	RemoveDevice(eui string) error
	SetEnabled(eui string, enabled bool) error
	BatchAdd(entries []store.RosterEntry) error
	BatchRemove(euis []string) error
}
