package devicemanager

import (
	"fmt"

	"solarfleet-sim/internal/pkg/fleet"
	"solarfleet-sim/internal/pkg/store"
)

// Manager implements Interface against a Configuration Store and a
// live Fleet Manager, applying every mutation to both.
type Manager struct {
	store *store.Store
	fleet *fleet.Manager
}

// New constructs a Manager.
func New(st *store.Store, fm *fleet.Manager) *Manager {
	return &Manager{store: st, fleet: fm}
}

// ListDevices returns the full roster.
func (m *Manager) ListDevices() ([]store.RosterEntry, error) {
	return m.store.ListRoster()
}

// AddDevice persists a new roster row (enabled by default) and, if the
// Fleet Manager is running, brings the device up immediately rather
// than waiting for the next reconciler tick. The alarm masks seed the
// live Device's held alarm state the moment the Fleet Manager spawns it.
func (m *Manager) AddDevice(name string, deviceNumber uint16, alarms store.AlarmMasks) (string, error) {
	eui := store.NewDeviceEUI()
	entry := store.RosterEntry{
		DeviceEUI:    eui,
		HumanName:    name,
		DeviceNumber: deviceNumber,
		Enabled:      true,
		AlarmFA:      alarms.FA,
		AlarmFB:      alarms.FB,
		AlarmFC:      alarms.FC,
		AlarmFD:      alarms.FD,
	}
	if err := m.store.AddDevice(entry); err != nil {
		return "", err
	}
	if m.fleet != nil {
		if err := m.fleet.Add(entry); err != nil {
			return "", fmt.Errorf("devicemanager: added to store but fleet add failed: %w", err)
		}
	}
	return eui, nil
}

// RemoveDevice deletes the roster row and retires the live device, if any.
func (m *Manager) RemoveDevice(eui string) error {
	if m.fleet != nil {
		if err := m.fleet.Remove(eui); err != nil {
			return err
		}
	}
	return m.store.RemoveDevice(eui)
}

// SetEnabled flips the roster row's enabled flag and adds/removes the
// live device to match immediately.
func (m *Manager) SetEnabled(eui string, enabled bool) error {
	if err := m.store.SetEnabled(eui, enabled); err != nil {
		return err
	}
	if m.fleet == nil {
		return nil
	}
	if enabled {
		roster, err := m.store.ListRoster()
		if err != nil {
			return err
		}
		for _, e := range roster {
			if e.DeviceEUI == eui {
				return m.fleet.Add(e)
			}
		}
		return nil
	}
	return m.fleet.Remove(eui)
}

// BatchAdd stores multiple roster rows in one transaction; on success
// it lets the reconciler bring the new devices up rather than racing
// N individual fleet.Add calls against the store write.
func (m *Manager) BatchAdd(entries []store.RosterEntry) error {
	return m.store.BatchAdd(entries)
}

// BatchRemove deletes multiple roster rows in one transaction and
// retires any that are currently live.
func (m *Manager) BatchRemove(euis []string) error {
	if err := m.store.BatchRemove(euis); err != nil {
		return err
	}
	if m.fleet == nil {
		return nil
	}
	for _, eui := range euis {
		if err := m.fleet.Remove(eui); err != nil {
			return err
		}
	}
	return nil
}
