package fleet

import (
	"fmt"
	"time"

	"solarfleet-sim/internal/pkg/alarm"
	"solarfleet-sim/internal/pkg/codec"
	"solarfleet-sim/internal/pkg/device"
	"solarfleet-sim/internal/pkg/logger"
	"solarfleet-sim/internal/pkg/store"
)

func decodeOrLog(raw []byte, lc logger.LoggingClient, eui string) (*codec.Frame, error) {
	frame, err := codec.Decode(raw)
	if err != nil {
		lc.Warn(fmt.Sprintf("fleet manager: codec error for device %s: %v", eui, err))
		return nil, err
	}
	return frame, nil
}

// Add resolves topics from the store, constructs a Device, installs it
// under the fleet lock (re-adding an already-live device is a no-op; a
// subscribe topic already claimed by another device is rejected with
// ErrTopicCollision), subscribes its downlink topic, and starts its
// reporter. Idempotent against re-entry.
func (m *Manager) Add(entry store.RosterEntry) error {
	m.mu.Lock()
	if _, exists := m.devices[entry.DeviceEUI]; exists {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	pubTopic, err := m.store.ResolvePublishTopic(entry.DeviceEUI)
	if err != nil {
		return fmt.Errorf("fleet: resolve publish topic: %w", err)
	}
	subTopic, err := m.store.ResolveSubscribeTopic(entry.DeviceEUI)
	if err != nil {
		return fmt.Errorf("fleet: resolve subscribe topic: %w", err)
	}

	alarms := device.AlarmState{
		FA: alarm.FA(entry.AlarmFA),
		FB: alarm.FB(entry.AlarmFB),
		FC: alarm.FC(entry.AlarmFC),
		FD: alarm.FD(entry.AlarmFD),
	}
	d := device.New(entry.DeviceEUI, entry.DeviceNumber, pubTopic, m.qos, alarms, m, m.lc)

	m.mu.Lock()
	if _, exists := m.devices[entry.DeviceEUI]; exists {
		m.mu.Unlock()
		return nil
	}
	if err := m.registry.Bind(subTopic, entry.DeviceEUI); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTopicCollision, err)
	}
	m.devices[entry.DeviceEUI] = d
	m.topicByEUI[entry.DeviceEUI] = subTopic
	m.mu.Unlock()

	if err := m.br.Subscribe(subTopic, m.qos, m.onMessage); err != nil {
		m.mu.Lock()
		delete(m.devices, entry.DeviceEUI)
		delete(m.topicByEUI, entry.DeviceEUI)
		m.registry.Release(subTopic)
		m.mu.Unlock()
		return fmt.Errorf("fleet: subscribe: %w", err)
	}

	d.Start(m.reportInterval)
	m.lc.Info(fmt.Sprintf("fleet manager: device %s added, subscribed %s", entry.DeviceEUI, subTopic))
	return nil
}

// Remove detaches the device from both maps, stops its reporter, and
// unsubscribes the broker. Idempotent against missing entries.
func (m *Manager) Remove(eui string) error {
	m.mu.Lock()
	d, exists := m.devices[eui]
	topic := m.topicByEUI[eui]
	if exists {
		delete(m.devices, eui)
		delete(m.topicByEUI, eui)
		m.registry.Release(topic)
	}
	m.mu.Unlock()

	if !exists {
		return nil
	}

	d.Stop()
	if err := m.br.Unsubscribe(topic); err != nil {
		m.lc.Error(fmt.Sprintf("fleet manager: unsubscribe %s failed: %v", topic, err))
	}
	m.lc.Info(fmt.Sprintf("fleet manager: device %s removed", eui))
	return nil
}

// Reconcile diffs the enabled roster from the Configuration Store
// against the live fleet: enabled-and-missing entries are added,
// live-and-not-enabled entries are removed.
func (m *Manager) Reconcile() error {
	roster, err := m.store.ListRoster()
	if err != nil {
		return fmt.Errorf("fleet: reconcile: %w", err)
	}

	enabled := make(map[string]store.RosterEntry, len(roster))
	for _, e := range roster {
		if e.Enabled {
			enabled[e.DeviceEUI] = e
		}
	}

	m.mu.Lock()
	var toRemove []string
	for eui := range m.devices {
		if _, ok := enabled[eui]; !ok {
			toRemove = append(toRemove, eui)
		}
	}
	m.mu.Unlock()

	for _, eui := range toRemove {
		if err := m.Remove(eui); err != nil {
			m.lc.Error(fmt.Sprintf("fleet manager: reconcile remove %s failed: %v", eui, err))
		}
	}

	for eui, entry := range enabled {
		m.mu.Lock()
		_, live := m.devices[eui]
		m.mu.Unlock()
		if live {
			continue
		}
		if err := m.Add(entry); err != nil {
			m.lc.Error(fmt.Sprintf("fleet manager: reconcile add %s failed: %v", eui, err))
		}
	}
	return nil
}

func (m *Manager) reconcilerLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(reconcilePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.Reconcile(); err != nil {
				m.lc.Error(fmt.Sprintf("fleet manager: reconcile failed: %v", err))
			}
		}
	}
}

// DeviceData returns the describe() snapshot of a live device.
func (m *Manager) DeviceData(eui string) (map[string]interface{}, bool) {
	m.mu.Lock()
	d, ok := m.devices[eui]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return d.Describe(), true
}

// TriggerScheduleStart sends an operator-triggered scheduled-start
// request to a live device.
func (m *Manager) TriggerScheduleStart(eui string, id, weekday, hour, minute, runCount byte) error {
	m.mu.Lock()
	d, ok := m.devices[eui]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("fleet: device %s not live", eui)
	}
	return d.SendScheduleStart(id, weekday, hour, minute, runCount)
}

// TriggerStart sends an operator-triggered start request to a live device.
func (m *Manager) TriggerStart(eui string) error {
	m.mu.Lock()
	d, ok := m.devices[eui]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("fleet: device %s not live", eui)
	}
	return d.SendStart()
}

// TriggerTimeSync sends an operator-triggered time-sync request to a live device.
func (m *Manager) TriggerTimeSync(eui string) error {
	m.mu.Lock()
	d, ok := m.devices[eui]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("fleet: device %s not live", eui)
	}
	return d.SendTimeSync()
}
