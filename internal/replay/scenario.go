// Package replay runs scripted notification scenarios against the engine on
// a virtual clock. Scenarios are YAML files: a list of steps, each either an
// event (insert, update, delete, ...) or an expectation checked at that
// point in time.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/quickpanel/internal/config"
	"github.com/jmylchreest/quickpanel/internal/model"
)

// Scenario is a parsed replay script.
type Scenario struct {
	Name    string     `yaml:"name"`
	Options *Overrides `yaml:"options,omitempty"`
	Steps   []Step     `yaml:"steps"`
}

// Overrides adjust engine options for one scenario.
type Overrides struct {
	CloseDuration *time.Duration `yaml:"close_duration,omitempty"`
	MinVisible    *time.Duration `yaml:"min_visible,omitempty"`
	Translate     *time.Duration `yaml:"translate,omitempty"`
	Fade          *time.Duration `yaml:"fade,omitempty"`
	LEDColor      string         `yaml:"led_color,omitempty"`
}

// Step is one line of a scenario. Exactly one field is set.
type Step struct {
	Insert    *RecordSpec    `yaml:"insert,omitempty"`
	Update    *RecordSpec    `yaml:"update,omitempty"`
	Delete    *int           `yaml:"delete,omitempty"`
	DeleteAll bool           `yaml:"delete_all,omitempty"`
	Advance   *time.Duration `yaml:"advance,omitempty"`
	Gesture   string         `yaml:"gesture,omitempty"`
	Dismiss   bool           `yaml:"dismiss,omitempty"`
	Gate      *GateSpec      `yaml:"gate,omitempty"`
	LED       *LEDSpec       `yaml:"led,omitempty"`

	ExpectCount  *CountSpec  `yaml:"expect_count,omitempty"`
	ExpectBanner *BannerSpec `yaml:"expect_banner,omitempty"`
	ExpectLED    *LEDExpect  `yaml:"expect_led,omitempty"`
	ExpectList   []int       `yaml:"expect_list,omitempty"`
}

// RecordSpec describes a notification.
type RecordSpec struct {
	ID         int               `yaml:"id"`
	Category   string            `yaml:"category,omitempty"`
	App        string            `yaml:"app,omitempty"`
	Title      string            `yaml:"title,omitempty"`
	Body       string            `yaml:"body,omitempty"`
	Age        time.Duration     `yaml:"age,omitempty"` // Timestamp is this far in the past
	AutoRemove bool              `yaml:"auto_remove,omitempty"`
	Timeout    time.Duration     `yaml:"timeout,omitempty"`
	Flags      []string          `yaml:"flags,omitempty"` // list, headsup, tray_only, led
	Sound      string            `yaml:"sound,omitempty"`
	LED        *LEDDirectiveSpec `yaml:"led,omitempty"`
}

// LEDDirectiveSpec is a record's LED request.
type LEDDirectiveSpec struct {
	Color string `yaml:"color,omitempty"` // #rrggbb, empty for the default color
	OnMs  int    `yaml:"on_ms,omitempty"`
	OffMs int    `yaml:"off_ms,omitempty"`
}

// GateSpec sets one feature gate.
type GateSpec struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LEDSpec is a direct LED request. Remove withdraws it.
type LEDSpec struct {
	ID     int    `yaml:"id"`
	Op     string `yaml:"op,omitempty"`
	Color  string `yaml:"color,omitempty"`
	OnMs   int    `yaml:"on_ms,omitempty"`
	OffMs  int    `yaml:"off_ms,omitempty"`
	Remove bool   `yaml:"remove,omitempty"`
}

// CountSpec expects registry counts. Nil fields are not checked.
type CountSpec struct {
	Normal  *int `yaml:"normal,omitempty"`
	Ongoing *int `yaml:"ongoing,omitempty"`
	All     *int `yaml:"all,omitempty"`
}

// BannerSpec expects a banner state and, optionally, the shown id.
type BannerSpec struct {
	State string `yaml:"state,omitempty"`
	ID    *int   `yaml:"id,omitempty"`
}

// LEDExpect expects the LED state.
type LEDExpect struct {
	On    bool   `yaml:"on"`
	Owner *int   `yaml:"owner,omitempty"`
	Color string `yaml:"color,omitempty"`
}

// ErrInvalidStep is returned for steps with zero or several actions.
var ErrInvalidStep = errors.New("step must set exactly one action")

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	for i := range s.Steps {
		if _, err := s.Steps[i].kind(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

// kind returns the name of the step's single action.
func (s *Step) kind() (string, error) {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(s.Insert != nil, "insert")
	add(s.Update != nil, "update")
	add(s.Delete != nil, "delete")
	add(s.DeleteAll, "delete_all")
	add(s.Advance != nil, "advance")
	add(s.Gesture != "", "gesture")
	add(s.Dismiss, "dismiss")
	add(s.Gate != nil, "gate")
	add(s.LED != nil, "led")
	add(s.ExpectCount != nil, "expect_count")
	add(s.ExpectBanner != nil, "expect_banner")
	add(s.ExpectLED != nil, "expect_led")
	add(s.ExpectList != nil, "expect_list")

	if len(kinds) != 1 {
		return "", fmt.Errorf("%w, got %v", ErrInvalidStep, kinds)
	}
	return kinds[0], nil
}

// Record builds the engine record as of now.
func (r *RecordSpec) Record(now time.Time) (*model.Record, error) {
	category, err := model.ParseCategory(r.Category)
	if err != nil {
		return nil, err
	}

	rec := &model.Record{
		ID:         r.ID,
		Category:   category,
		Timestamp:  now.Add(-r.Age),
		AppName:    r.App,
		Title:      r.Title,
		Body:       r.Body,
		Sound:      r.Sound,
		AutoRemove: r.AutoRemove,
		Timeout:    r.Timeout,
		Flags:      model.DefaultDisplayFlags,
	}

	if len(r.Flags) > 0 {
		rec.Flags = 0
		for _, name := range r.Flags {
			f, err := parseFlag(name)
			if err != nil {
				return nil, err
			}
			rec.Flags |= f
		}
	}

	if r.LED != nil {
		rec.LED = &model.LEDDirective{OnMs: r.LED.OnMs, OffMs: r.LED.OffMs}
		if r.LED.Color != "" {
			color, err := config.ParseColor(r.LED.Color)
			if err != nil {
				return nil, err
			}
			rec.LED.Color = color
			rec.LED.Custom = true
		}
		if len(r.Flags) == 0 {
			rec.Flags |= model.DisplayLED
		}
	}
	return rec, nil
}

func parseFlag(name string) (model.DisplayFlags, error) {
	switch name {
	case "list":
		return model.DisplayList, nil
	case "headsup":
		return model.DisplayHeadsUp, nil
	case "tray_only":
		return model.DisplayTrayOnly, nil
	case "led":
		return model.DisplayLED, nil
	default:
		return 0, fmt.Errorf("unknown display flag %q", name)
	}
}
