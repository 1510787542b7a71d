package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarfleet-sim/internal/pkg/devicemanager"
	"solarfleet-sim/internal/pkg/logger"
	"solarfleet-sim/internal/pkg/store"
)

func newTestServer(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dm := devicemanager.New(st, nil)
	lc := logger.NewClient(logger.ErrorLog)
	return NewRouter(dm, nil, lc), st
}

func TestAddAndListDevices(t *testing.T) {
	handler, _ := newTestServer(t)

	body, _ := json.Marshal(addDeviceRequest{Name: "panel-1", DeviceNumber: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/devices", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var addResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addResp))
	assert.True(t, addResp["success"].(bool))
	assert.NotEmpty(t, addResp["eui"])

	req = httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)
}

func TestRemoveUnknownDeviceReturns200BecauseStoreIsIdempotent(t *testing.T) {
	handler, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/devices/does-not-exist", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetEnabledMissingBodyReturns400(t *testing.T) {
	handler, st := newTestServer(t)
	require.NoError(t, st.AddDevice(store.RosterEntry{DeviceEUI: "eui1", DeviceNumber: 1, Enabled: true}))

	req := httptest.NewRequest(http.MethodPatch, "/api/devices/eui1/enabled", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceDataNotLiveReturns404(t *testing.T) {
	handler, st := newTestServer(t)
	require.NoError(t, st.AddDevice(store.RosterEntry{DeviceEUI: "eui1", DeviceNumber: 1, Enabled: true}))

	req := httptest.NewRequest(http.MethodGet, "/api/devices/eui1/data", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeadersPresent(t *testing.T) {
	handler, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBatchAddRollbackReturns400(t *testing.T) {
	handler, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"devices": []map[string]interface{}{
			{"name": "a", "device_number": 3},
			{"name": "b", "device_number": 3},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/devices/batch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddDeviceUniquenessConflictReturns400(t *testing.T) {
	handler, _ := newTestServer(t)

	body, _ := json.Marshal(addDeviceRequest{Name: "panel-1", DeviceNumber: 7})
	req := httptest.NewRequest(http.MethodPost, "/api/devices", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ = json.Marshal(addDeviceRequest{Name: "panel-2", DeviceNumber: 7})
	req = httptest.NewRequest(http.MethodPost, "/api/devices", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
