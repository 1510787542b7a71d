package devicemanager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarfleet-sim/internal/pkg/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAddDeviceGeneratesEUIAndPersists(t *testing.T) {
	st := openTestStore(t)
	m := New(st, nil)

	eui, err := m.AddDevice("panel-1", 7, store.AlarmMasks{FA: uint32(1)})
	require.NoError(t, err)
	assert.Len(t, eui, 16)

	roster, err := st.ListRoster()
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "panel-1", roster[0].HumanName)
	assert.Equal(t, uint16(7), roster[0].DeviceNumber)
	assert.True(t, roster[0].Enabled)
	assert.Equal(t, uint32(1), roster[0].AlarmFA)
}

func TestSetEnabledWithoutFleet(t *testing.T) {
	st := openTestStore(t)
	m := New(st, nil)

	eui, err := m.AddDevice("panel-1", 1, store.AlarmMasks{})
	require.NoError(t, err)

	require.NoError(t, m.SetEnabled(eui, false))
	roster, err := st.ListRoster()
	require.NoError(t, err)
	assert.False(t, roster[0].Enabled)
}

func TestBatchAddUniquenessRollback(t *testing.T) {
	st := openTestStore(t)
	m := New(st, nil)

	err := m.BatchAdd([]store.RosterEntry{
		{DeviceEUI: "a", DeviceNumber: 5, Enabled: true},
		{DeviceEUI: "b", DeviceNumber: 5, Enabled: true},
	})
	assert.ErrorIs(t, err, store.ErrUniqueness)

	roster, err := st.ListRoster()
	require.NoError(t, err)
	assert.Empty(t, roster)
}
