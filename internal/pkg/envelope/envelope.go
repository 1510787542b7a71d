// Package envelope wraps and unwraps the JSON object that carries a
// raw frame over the broker: {devEui, devAddr, data}.
package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"solarfleet-sim/internal/pkg/codec"
)

var (
	ErrBadJSON      = errors.New("envelope: invalid json")
	ErrMissingField = errors.New("envelope: missing devEui or data")
	ErrBadBase64    = errors.New("envelope: invalid base64 payload")
)

// Envelope is the wire shape carried over the broker in both directions.
type Envelope struct {
	DevEUI  string `json:"devEui"`
	DevAddr string `json:"devAddr"`
	Data    string `json:"data"`
}

const defaultTemplate = `{"devEui":"{{DEV_EUI}}","devAddr":"{{DEV_ADDR}}","data":"{{DATA}}"}`

var (
	templateOnce sync.Once
	template     string
)

// Template returns the process-wide uplink envelope template, loaded
// once and never rewritten thereafter (spec design note: "Shared
// template string").
func Template() string {
	templateOnce.Do(func() {
		template = defaultTemplate
	})
	return template
}

// devAddr returns the last 8 hex characters of devEUI, or the whole
// string if it is shorter.
func devAddr(devEUI string) string {
	if len(devEUI) <= 8 {
		return devEUI
	}
	return devEUI[len(devEUI)-8:]
}

// Wrap builds the envelope for an outgoing (uplink) frame.
func Wrap(devEUI string, frame []byte) Envelope {
	return Envelope{
		DevEUI:  devEUI,
		DevAddr: devAddr(devEUI),
		Data:    codec.Base64(frame),
	}
}

// Marshal renders an Envelope via the shared template, substituting
// its three placeholders. This mirrors the original implementation's
// placeholder-based template rendering rather than plain struct
// marshaling. The template is always the built-in defaultTemplate; no
// template file is read, so changing its field order or adding wrapper
// fields means changing defaultTemplate.
func Marshal(e Envelope) []byte {
	out := Template()
	out = strings.ReplaceAll(out, "{{DEV_EUI}}", e.DevEUI)
	out = strings.ReplaceAll(out, "{{DEV_ADDR}}", e.DevAddr)
	out = strings.ReplaceAll(out, "{{DATA}}", e.Data)
	return []byte(out)
}

// Unwrap parses an inbound envelope and returns the device EUI and the
// decoded raw frame bytes.
func Unwrap(raw []byte) (devEUI string, frame []byte, err error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", nil, ErrBadJSON
	}
	if e.DevEUI == "" || e.Data == "" {
		return "", nil, ErrMissingField
	}
	frame, err = codec.UnBase64(e.Data)
	if err != nil {
		return "", nil, ErrBadBase64
	}
	return e.DevEUI, frame, nil
}

// TopicMatchesEUI is the defense-in-depth check the Fleet Manager runs
// before trusting an envelope's devEui: the subscribed topic string
// must contain the EUI as a substring.
func TopicMatchesEUI(topic, devEUI string) bool {
	return strings.Contains(topic, devEUI)
}
