// Package gates persists the external feature gates the engine obeys: LED
// enabled, do-not-disturb, lock screen and quick panel open. The state file is
// shared between the daemon and the CLI.
package gates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Name identifies a gate.
type Name string

const (
	LED          Name = "led"
	DoNotDisturb Name = "dnd"
	LockScreen   Name = "lock"
	QuickPanel   Name = "panel"
)

// Names returns all gate names.
func Names() []Name {
	return []Name{LED, DoNotDisturb, LockScreen, QuickPanel}
}

// ParseName parses a gate name.
func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown gate %q, must be one of %v", s, Names())
}

// Transition records the last gate change.
type Transition struct {
	Gate      Name   `json:"gate"`
	Enabled   bool   `json:"enabled"`
	Source    string `json:"source,omitempty"` // e.g. "cli", "tui", "replay"
	Timestamp int64  `json:"timestamp"`
}

// State is the persisted gate state.
// This is persisted to ~/.local/share/quickpanel/state.json
type State struct {
	LEDEnabled     bool `json:"led_enabled"`
	DoNotDisturb   bool `json:"do_not_disturb"`
	LockScreen     bool `json:"lock_screen"`
	QuickPanelOpen bool `json:"quick_panel_open"`

	LastTransition *Transition `json:"last_transition,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// CurrentSchemaVersion is the current version of the state schema.
const CurrentSchemaVersion = 1

// fileMutex protects concurrent access to the state file.
var fileMutex sync.RWMutex

// Default returns the state used when no file exists.
func Default() *State {
	return &State{
		LEDEnabled:    true,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// DataDir returns the quickpanel data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/quickpanel.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "quickpanel"), nil
}

// Path returns the path to the state file.
func Path() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.json"), nil
}

// Load reads the state file at path, or the default path when empty.
// A missing or corrupted file yields the default state.
func Load(path string) (*State, error) {
	fileMutex.RLock()
	defer fileMutex.RUnlock()

	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	state := Default()
	if err := json.Unmarshal(data, state); err != nil {
		return Default(), nil
	}
	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}
	return state, nil
}

// Save writes s to path, or the default path when empty.
func Save(path string, s *State) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = CurrentSchemaVersion
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Get returns the value of a gate.
func (s *State) Get(n Name) bool {
	switch n {
	case LED:
		return s.LEDEnabled
	case DoNotDisturb:
		return s.DoNotDisturb
	case LockScreen:
		return s.LockScreen
	case QuickPanel:
		return s.QuickPanelOpen
	}
	return false
}

// Set changes a gate and records the transition.
func (s *State) Set(n Name, enabled bool, source string) error {
	switch n {
	case LED:
		s.LEDEnabled = enabled
	case DoNotDisturb:
		s.DoNotDisturb = enabled
	case LockScreen:
		s.LockScreen = enabled
	case QuickPanel:
		s.QuickPanelOpen = enabled
	default:
		return fmt.Errorf("unknown gate %q", n)
	}
	s.LastTransition = &Transition{
		Gate:      n,
		Enabled:   enabled,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
	return nil
}
