package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewDeviceEUI produces an opaque 16-hex-character device EUI, mirroring
// the shape of the roster's existing sample EUIs (e.g. 303930306350729d).
// Shared by every caller that mints a device identity so the admin
// surface's server-generated batch EUIs and devicemanager's
// single-device EUIs never diverge in format.
func NewDeviceEUI() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}
