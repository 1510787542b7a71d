package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaultSettingsSeeded(t *testing.T) {
	s := openTestStore(t)

	for k, v := range defaultSettings {
		got, err := s.GetSetting(k)
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestAddRemoveDevice(t *testing.T) {
	s := openTestStore(t)

	err := s.AddDevice(RosterEntry{DeviceEUI: "eui1", DeviceNumber: 1, Enabled: true})
	assert.NoError(t, err)

	euis, err := s.EnabledEUIs()
	assert.NoError(t, err)
	assert.Equal(t, []string{"eui1"}, euis)

	assert.NoError(t, s.RemoveDevice("eui1"))
	euis, err = s.EnabledEUIs()
	assert.NoError(t, err)
	assert.Empty(t, euis)

	// removing a missing device is a no-op
	assert.NoError(t, s.RemoveDevice("does-not-exist"))
}

func TestSetEnabledNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.SetEnabled("missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchAddRollsBackOnUniquenessViolation(t *testing.T) {
	s := openTestStore(t)

	err := s.BatchAdd([]RosterEntry{
		{DeviceEUI: "eui-a", DeviceNumber: 2, Enabled: true},
		{DeviceEUI: "eui-b", DeviceNumber: 2, Enabled: true}, // duplicate device_number
	})
	assert.ErrorIs(t, err, ErrUniqueness)

	roster, err := s.ListRoster()
	assert.NoError(t, err)
	assert.Empty(t, roster, "batch must roll back entirely")
}

func TestTopicSubstitution(t *testing.T) {
	s := openTestStore(t)

	pub, err := s.ResolvePublishTopic("303930306350729d")
	assert.NoError(t, err)
	assert.Contains(t, pub, "303930306350729d")
	assert.NotContains(t, pub, "{robot_id}")

	sub, err := s.ResolveSubscribeTopic("303930306350729d")
	assert.NoError(t, err)
	assert.Contains(t, sub, "303930306350729d")
}
