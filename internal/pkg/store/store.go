// Package store implements the Configuration Store: a keyed settings
// table plus a device roster table, persisted to a single SQLite file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Error kinds surfaced to callers, matching the StoreError taxonomy.
var (
	ErrOpen        = errors.New("store: failed to open database")
	ErrSchema      = errors.New("store: failed to apply schema")
	ErrUniqueness  = errors.New("store: uniqueness violation")
	ErrTransaction = errors.New("store: transaction failed")
	ErrNotFound    = errors.New("store: not found")
)

// defaultSettings mirrors the original ConfigDb's InsertDefaultConfig
// seed values, adjusted per spec §6 (publish_interval, http_port).
var defaultSettings = map[string]string{
	"broker_url":         "tcp://lanq.top:10043",
	"client_id_prefix":   "sim_robot_cpp",
	"qos":                "1",
	"keepalive":          "60",
	"publish_interval":   "10",
	"http_port":          "8080",
	"publish_topic_tmpl": "application/{app-uuid}/device/{robot_id}/event/up",
	"subscribe_topic_tmpl": "application/{app-uuid}/device/{robot_id}/command/down",
}

// RosterEntry is one row of the roster table.
type RosterEntry struct {
	DeviceEUI    string
	HumanName    string
	DeviceNumber uint16
	Enabled      bool
	AlarmFA      uint32
	AlarmFB      uint16
	AlarmFC      uint32
	AlarmFD      uint16
}

// AlarmMasks bundles the four roster alarm columns for call sites that
// provision a device without building a full RosterEntry (e.g. the
// admin add-device endpoint).
type AlarmMasks struct {
	FA uint32
	FB uint16
	FC uint32
	FD uint16
}

// Store wraps the SQLite-backed configuration database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path, applies
// the schema, and seeds default settings on a fresh database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedDefaults(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS roster (
	device_eui TEXT PRIMARY KEY,
	human_name TEXT NOT NULL DEFAULT '',
	device_number INTEGER NOT NULL UNIQUE,
	enabled INTEGER NOT NULL DEFAULT 1,
	alarm_fa INTEGER NOT NULL DEFAULT 0,
	alarm_fb INTEGER NOT NULL DEFAULT 0,
	alarm_fc INTEGER NOT NULL DEFAULT 0,
	alarm_fd INTEGER NOT NULL DEFAULT 0
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func (s *Store) seedDefaults() error {
	for k, v := range defaultSettings {
		_, err := s.db.Exec(
			`INSERT INTO settings(key, value) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`, k, v)
		if err != nil {
			return fmt.Errorf("%w: seeding %s: %v", ErrSchema, k, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// GetSetting returns a scalar setting value.
func (s *Store) GetSetting(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetSetting upserts a scalar setting value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// EnabledEUIs returns the device EUIs of every enabled roster row.
func (s *Store) EnabledEUIs() ([]string, error) {
	rows, err := s.db.Query(`SELECT device_eui FROM roster WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var euis []string
	for rows.Next() {
		var eui string
		if err := rows.Scan(&eui); err != nil {
			return nil, err
		}
		euis = append(euis, eui)
	}
	return euis, rows.Err()
}

// ListRoster returns every roster row.
func (s *Store) ListRoster() ([]RosterEntry, error) {
	rows, err := s.db.Query(`SELECT device_eui, human_name, device_number, enabled, alarm_fa, alarm_fb, alarm_fc, alarm_fd FROM roster ORDER BY device_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RosterEntry
	for rows.Next() {
		var e RosterEntry
		var enabled int
		if err := rows.Scan(&e.DeviceEUI, &e.HumanName, &e.DeviceNumber, &enabled, &e.AlarmFA, &e.AlarmFB, &e.AlarmFC, &e.AlarmFD); err != nil {
			return nil, err
		}
		e.Enabled = enabled != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddDevice inserts a new roster row.
func (s *Store) AddDevice(e RosterEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO roster(device_eui, human_name, device_number, enabled, alarm_fa, alarm_fb, alarm_fc, alarm_fd)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DeviceEUI, e.HumanName, e.DeviceNumber, boolToInt(e.Enabled), e.AlarmFA, e.AlarmFB, e.AlarmFC, e.AlarmFD)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: device_eui or device_number already exists", ErrUniqueness)
	}
	return err
}

// RemoveDevice deletes a roster row; missing rows are a no-op.
func (s *Store) RemoveDevice(eui string) error {
	_, err := s.db.Exec(`DELETE FROM roster WHERE device_eui = ?`, eui)
	return err
}

// SetEnabled flips the enabled flag on a roster row.
func (s *Store) SetEnabled(eui string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE roster SET enabled = ? WHERE device_eui = ?`, boolToInt(enabled), eui)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchAdd inserts multiple roster rows inside a single transaction,
// rolling back entirely if any row violates the device_number/EUI
// uniqueness constraint.
func (s *Store) BatchAdd(entries []RosterEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransaction, err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.Exec(
			`INSERT INTO roster(device_eui, human_name, device_number, enabled, alarm_fa, alarm_fb, alarm_fc, alarm_fd)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			e.DeviceEUI, e.HumanName, e.DeviceNumber, boolToInt(e.Enabled), e.AlarmFA, e.AlarmFB, e.AlarmFC, e.AlarmFD)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: device_eui or device_number already exists", ErrUniqueness)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransaction, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransaction, err)
	}
	return nil
}

// BatchRemove deletes multiple roster rows inside a single transaction.
func (s *Store) BatchRemove(euis []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransaction, err)
	}
	defer tx.Rollback()

	for _, eui := range euis {
		if _, err := tx.Exec(`DELETE FROM roster WHERE device_eui = ?`, eui); err != nil {
			return fmt.Errorf("%w: %v", ErrTransaction, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransaction, err)
	}
	return nil
}

// ResolvePublishTopic substitutes {robot_id} in the configured publish
// topic template for the given device EUI.
func (s *Store) ResolvePublishTopic(eui string) (string, error) {
	tmpl, err := s.GetSetting("publish_topic_tmpl")
	if err != nil {
		return "", err
	}
	return substituteRobotID(tmpl, eui), nil
}

// ResolveSubscribeTopic substitutes {robot_id} in the configured
// subscribe topic template for the given device EUI.
func (s *Store) ResolveSubscribeTopic(eui string) (string, error) {
	tmpl, err := s.GetSetting("subscribe_topic_tmpl")
	if err != nil {
		return "", err
	}
	return substituteRobotID(tmpl, eui), nil
}

func substituteRobotID(tmpl, eui string) string {
	return strings.ReplaceAll(tmpl, "{robot_id}", eui)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
