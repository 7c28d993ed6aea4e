// Package model defines the notification record shared by the quickpanel engine.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category ranks notifications in the quick panel list.
type Category int

const (
	// CategoryNormal is a regular, dismissible notification.
	CategoryNormal Category = iota
	// CategoryOngoing is a long-lived notification (progress, calls, media).
	CategoryOngoing
)

// CategoryAll is accepted by counters to mean every category.
const CategoryAll Category = -1

// CategoryNames maps categories to their configuration names.
var CategoryNames = map[Category]string{
	CategoryNormal:  "normal",
	CategoryOngoing: "ongoing",
}

// String returns the string representation of the category.
func (c Category) String() string {
	if c == CategoryAll {
		return "all"
	}
	if name, ok := CategoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether c is a concrete category.
func (c Category) Valid() bool {
	return c == CategoryNormal || c == CategoryOngoing
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return CategoryNormal, nil
	case "ongoing":
		return CategoryOngoing, nil
	default:
		return CategoryNormal, fmt.Errorf("unknown category %q", s)
	}
}

// DisplayFlags select where a record may appear.
type DisplayFlags uint8

const (
	// DisplayList shows the record in the quick panel list.
	DisplayList DisplayFlags = 1 << iota
	// DisplayHeadsUp allows the record to take the heads-up banner.
	DisplayHeadsUp
	// DisplayTrayOnly suppresses the banner while the quick panel is open.
	DisplayTrayOnly
	// DisplayLED allows the record to drive the indicator LED.
	DisplayLED
)

// DefaultDisplayFlags is used when an event source does not specify flags.
const DefaultDisplayFlags = DisplayList | DisplayHeadsUp

// Has reports whether all bits of f are set.
func (d DisplayFlags) Has(f DisplayFlags) bool {
	return d&f == f
}

// LEDDirective asks for the indicator LED while the record is active.
type LEDDirective struct {
	Color  uint32 `json:"color" yaml:"color"` // 0xRRGGBB, 0 = configured default
	OnMs   int    `json:"on_ms" yaml:"on_ms"`
	OffMs  int    `json:"off_ms" yaml:"off_ms"`
	Custom bool   `json:"custom" yaml:"custom"`
}

// Action is an invokable notification action.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Record is a single notification as seen by the engine.
// Payload fields are opaque to the engine and passed through to the renderer.
type Record struct {
	ID        int       `json:"id"`
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`

	// Payload
	AppName string   `json:"app_name"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon,omitempty"`
	Actions []Action `json:"actions,omitempty"`

	// Directives
	Sound   string        `json:"sound,omitempty"`   // Sound file to play when shown as a banner
	Vibrate bool          `json:"vibrate,omitempty"` // Vibration requested
	LED     *LEDDirective `json:"led,omitempty"`

	Flags      DisplayFlags  `json:"flags"`
	AutoRemove bool          `json:"auto_remove"`       // Banner expires on its own
	Timeout    time.Duration `json:"timeout,omitempty"` // Banner lifetime, 0 = configured default
}

// Validation errors.
var (
	ErrInvalidID        = errors.New("id must not be negative")
	ErrInvalidCategory  = errors.New("category must be normal or ongoing")
	ErrInvalidTimestamp = errors.New("timestamp must be set")
	ErrInvalidTimeout   = errors.New("timeout must not be negative")
)

// Validate checks that the record has all required fields.
func (r *Record) Validate() error {
	if r.ID < 0 {
		return ErrInvalidID
	}
	if !r.Category.Valid() {
		return ErrInvalidCategory
	}
	if r.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if r.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Actions != nil {
		clone.Actions = make([]Action, len(r.Actions))
		copy(clone.Actions, r.Actions)
	}
	if r.LED != nil {
		led := *r.LED
		clone.LED = &led
	}
	return &clone
}

// ExpiresAt returns when a banner for this record goes stale.
// The record's own timeout wins over the fallback.
func (r *Record) ExpiresAt(fallback time.Duration) time.Time {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return r.Timestamp.Add(timeout)
}

// WantsHeadsUp reports whether the record may take the banner slot.
func (r *Record) WantsHeadsUp() bool {
	return r.Flags.Has(DisplayHeadsUp)
}

// WantsLED reports whether the record drives the indicator.
func (r *Record) WantsLED() bool {
	return r.LED != nil && r.Flags.Has(DisplayLED)
}

// String returns a short description for logs.
func (r *Record) String() string {
	return fmt.Sprintf("%d/%s %q", r.ID, r.Category, r.Title)
}
