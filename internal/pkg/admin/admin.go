// Package admin exposes the roster CRUD and per-device command
// triggers described by spec.md §4.5 over HTTP, using gorilla/mux.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"solarfleet-sim/internal/pkg/devicemanager"
	"solarfleet-sim/internal/pkg/fleet"
	"solarfleet-sim/internal/pkg/logger"
	"solarfleet-sim/internal/pkg/store"
)

// Server wires the Admin Surface's HTTP routes.
type Server struct {
	devices devicemanager.Interface
	fleet   *fleet.Manager
	lc      logger.LoggingClient
}

// NewRouter builds the admin HTTP router.
func NewRouter(devices devicemanager.Interface, fm *fleet.Manager, lc logger.LoggingClient) *mux.Router {
	s := &Server{devices: devices, fleet: fm, lc: lc}

	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.PathPrefix("/api/").Methods(http.MethodOptions).HandlerFunc(preflight)

	r.HandleFunc("/api/devices", s.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", s.addDevice).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/batch", s.batchAdd).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/batch", s.batchRemove).Methods(http.MethodDelete)
	r.HandleFunc("/api/devices/{id}", s.removeDevice).Methods(http.MethodDelete)
	r.HandleFunc("/api/devices/{id}/enabled", s.setEnabled).Methods(http.MethodPatch)
	r.HandleFunc("/api/devices/{id}/data", s.deviceData).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/{id}/commands/schedule-start", s.triggerScheduleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/{id}/commands/start", s.triggerStart).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/{id}/commands/time-sync", s.triggerTimeSync).Methods(http.MethodPost)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, CommandResponse{Success: false, Error: message})
}

// resolveEUI looks a path id up either as a device EUI or, when
// ?type=serial is given, as a device number.
func (s *Server) resolveEUI(r *http.Request, id string) (string, error) {
	if r.URL.Query().Get("type") != "serial" {
		return id, nil
	}
	num, err := strconv.ParseUint(id, 10, 16)
	if err != nil {
		return "", err
	}
	roster, err := s.devices.ListDevices()
	if err != nil {
		return "", err
	}
	for _, e := range roster {
		if e.DeviceNumber == uint16(num) {
			return e.DeviceEUI, nil
		}
	}
	return "", store.ErrNotFound
}

type listResponse struct {
	Data       []store.RosterEntry   `json:"data"`
	Pagination map[string]int        `json:"pagination"`
	Stats      map[string]interface{} `json:"stats"`
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = 50
	}

	roster, err := s.devices.ListDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total := len(roster)
	enabled := 0
	for _, e := range roster {
		if e.Enabled {
			enabled++
		}
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data: roster[start:end],
		Pagination: map[string]int{
			"page": page, "pageSize": pageSize, "total": total,
		},
		Stats: map[string]interface{}{"total": total, "enabled": enabled},
	})
}

type addDeviceRequest struct {
	Name         string `json:"name"`
	DeviceNumber uint16 `json:"device_number"`
	AlarmFA      uint32 `json:"alarm_fa,omitempty"`
	AlarmFB      uint16 `json:"alarm_fb,omitempty"`
	AlarmFC      uint32 `json:"alarm_fc,omitempty"`
	AlarmFD      uint16 `json:"alarm_fd,omitempty"`
}

func (s *Server) addDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alarms := store.AlarmMasks{FA: req.AlarmFA, FB: req.AlarmFB, FC: req.AlarmFC, FD: req.AlarmFD}
	eui, err := s.devices.AddDevice(req.Name, req.DeviceNumber, alarms)
	if err != nil {
		if errors.Is(err, store.ErrUniqueness) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "eui": eui})
}

func (s *Server) removeDevice(w http.ResponseWriter, r *http.Request) {
	eui, err := s.resolveEUI(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err := s.devices.RemoveDevice(eui); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "device removed"})
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request) {
	eui, err := s.resolveEUI(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "missing enabled field")
		return
	}

	if err := s.devices.SetEnabled(eui, req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "status updated"})
}

func (s *Server) deviceData(w http.ResponseWriter, r *http.Request) {
	eui, err := s.resolveEUI(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if s.fleet == nil {
		writeError(w, http.StatusNotFound, "device not live")
		return
	}
	data, ok := s.fleet.DeviceData(eui)
	if !ok {
		writeError(w, http.StatusNotFound, "device not live")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type batchAddRequest struct {
	Devices []struct {
		Name         string `json:"name"`
		DeviceNumber uint16 `json:"device_number"`
		AlarmFA      uint32 `json:"alarm_fa,omitempty"`
		AlarmFB      uint16 `json:"alarm_fb,omitempty"`
		AlarmFC      uint32 `json:"alarm_fc,omitempty"`
		AlarmFD      uint16 `json:"alarm_fd,omitempty"`
	} `json:"devices"`
}

func (s *Server) batchAdd(w http.ResponseWriter, r *http.Request) {
	var req batchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entries := make([]store.RosterEntry, len(req.Devices))
	for i, d := range req.Devices {
		entries[i] = store.RosterEntry{
			DeviceEUI:    store.NewDeviceEUI(),
			HumanName:    d.Name,
			DeviceNumber: d.DeviceNumber,
			Enabled:      true,
			AlarmFA:      d.AlarmFA,
			AlarmFB:      d.AlarmFB,
			AlarmFC:      d.AlarmFC,
			AlarmFD:      d.AlarmFD,
		}
	}

	if err := s.devices.BatchAdd(entries); err != nil {
		if errors.Is(err, store.ErrUniqueness) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "batch added"})
}

type batchRemoveRequest struct {
	EUIs []string `json:"euis"`
}

func (s *Server) batchRemove(w http.ResponseWriter, r *http.Request) {
	var req batchRemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.devices.BatchRemove(req.EUIs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "batch removed"})
}

func (s *Server) triggerScheduleStart(w http.ResponseWriter, r *http.Request) {
	eui, err := s.resolveEUI(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	var req CommandRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if s.fleet == nil {
		writeError(w, http.StatusNotFound, "device not live")
		return
	}
	if err := s.fleet.TriggerScheduleStart(eui, req.ID, req.Weekday, req.Hour, req.Minute, req.RunCount); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "schedule-start sent"})
}

func (s *Server) triggerStart(w http.ResponseWriter, r *http.Request) {
	eui, err := s.resolveEUI(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if s.fleet == nil {
		writeError(w, http.StatusNotFound, "device not live")
		return
	}
	if err := s.fleet.TriggerStart(eui); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "start sent"})
}

func (s *Server) triggerTimeSync(w http.ResponseWriter, r *http.Request) {
	eui, err := s.resolveEUI(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if s.fleet == nil {
		writeError(w, http.StatusNotFound, "device not live")
		return
	}
	if err := s.fleet.TriggerTimeSync(eui); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Success: true, Message: "time-sync sent"})
}
