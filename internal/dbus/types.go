package dbus

import (
	"github.com/godbus/dbus/v5"
)

// CloseReason is the NotificationClosed reason code from the freedesktop.org
// notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired.
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the notification protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Urgency levels carried by the "urgency" hint.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// Panel-specific hints understood on top of the standard ones.
const (
	HintCategory = "x-quickpanel-category" // "normal" or "ongoing"
	HintHeadsUp  = "x-quickpanel-headsup"  // bool, overrides the urgency default
	HintTrayOnly = "x-quickpanel-tray-only"
	HintLED      = "x-quickpanel-led" // bool, or "#rrggbb" for a custom color
	HintLEDOnMs  = "x-quickpanel-led-on-ms"
	HintLEDOffMs = "x-quickpanel-led-off-ms"
)

// Notification holds the raw arguments of a Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// hint returns the hint value for key if present with type T.
func hint[T any](hints map[string]dbus.Variant, key string) (T, bool) {
	var zero T
	v, ok := hints[key]
	if !ok {
		return zero, false
	}
	t, ok := v.Value().(T)
	return t, ok
}

// Urgency returns the urgency hint, UrgencyNormal when absent.
func (n *Notification) Urgency() int {
	if b, ok := hint[byte](n.Hints, "urgency"); ok {
		return int(b)
	}
	return UrgencyNormal
}

// Resident reports the resident hint.
func (n *Notification) Resident() bool {
	b, _ := hint[bool](n.Hints, "resident")
	return b
}

// Transient reports the transient hint.
func (n *Notification) Transient() bool {
	b, _ := hint[bool](n.Hints, "transient")
	return b
}

// SuppressSound reports the suppress-sound hint.
func (n *Notification) SuppressSound() bool {
	b, _ := hint[bool](n.Hints, "suppress-sound")
	return b
}

// SoundFile returns the sound-file hint.
func (n *Notification) SoundFile() string {
	s, _ := hint[string](n.Hints, "sound-file")
	return s
}

// SoundName returns the sound-name hint.
func (n *Notification) SoundName() string {
	s, _ := hint[string](n.Hints, "sound-name")
	return s
}

// ImagePath returns the image-path hint.
func (n *Notification) ImagePath() string {
	if s, ok := hint[string](n.Hints, "image-path"); ok {
		return s
	}
	s, _ := hint[string](n.Hints, "image_path")
	return s
}

// Progress returns the "value" hint (0-100), or -1 when absent.
func (n *Notification) Progress() int {
	v, ok := n.Hints["value"]
	if !ok {
		return -1
	}
	switch val := v.Value().(type) {
	case int32:
		return int(val)
	case uint32:
		return int(val)
	case byte:
		return int(val)
	}
	return -1
}

// ServerCapabilities lists the capabilities advertised by quickpanel.
var ServerCapabilities = []string{
	"actions",
	"body",
	"icon-static",
	"sound",
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "quickpanel",
		Vendor:      "quickpanel",
		Version:     "0.0.1",
		SpecVersion: "1.2",
	}
}
