package engine

import (
	"fmt"

	"github.com/jmylchreest/quickpanel/internal/model"
)

// Status is a serializable snapshot of the engine.
type Status struct {
	Normal  int   `json:"normal"`
	Ongoing int   `json:"ongoing"`
	List    []int `json:"list"`
	Busy    int   `json:"busy"`

	Banner BannerStatus `json:"banner"`
	LED    LEDStatus    `json:"led"`
	Gates  GateStatus   `json:"gates"`
}

// BannerStatus describes the heads-up slot.
type BannerStatus struct {
	State      string        `json:"state"`
	Current    *model.Record `json:"current,omitempty"`
	AutoRemove []int         `json:"auto_remove"`
	Sticky     []int         `json:"sticky"`
}

// LEDStatus describes the indicator.
type LEDStatus struct {
	On       bool   `json:"on"`
	Owner    int    `json:"owner,omitempty"`
	Color    string `json:"color,omitempty"`
	OnMs     int    `json:"on_ms,omitempty"`
	OffMs    int    `json:"off_ms,omitempty"`
	Requests int    `json:"requests"`
	Writes   int    `json:"writes"`
}

// GateStatus lists the feature gates.
type GateStatus struct {
	LED          bool `json:"led"`
	DoNotDisturb bool `json:"dnd"`
	LockScreen   bool `json:"lock"`
	QuickPanel   bool `json:"panel"`
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	hu := e.headsUp.Snapshot()
	ls := e.led.State()
	g := e.headsUp.Gates()

	s := Status{
		Normal:  e.registry.Count(model.CategoryNormal),
		Ongoing: e.registry.Count(model.CategoryOngoing),
		List:    e.list.IDs(),
		Busy:    e.scheduler.Busy(),
		Banner: BannerStatus{
			State:      hu.State.String(),
			Current:    hu.Current,
			AutoRemove: hu.AutoRemove,
			Sticky:     hu.Sticky,
		},
		LED: LEDStatus{
			On:       ls.On,
			Requests: len(e.led.Requests()),
			Writes:   e.led.Writes(),
		},
		Gates: GateStatus{
			LED:          e.ledGate,
			DoNotDisturb: g.DoNotDisturb,
			LockScreen:   g.LockScreen,
			QuickPanel:   g.QuickPanelOpen,
		},
	}
	if ls.On {
		s.LED.Owner = ls.Owner
		s.LED.Color = fmt.Sprintf("#%06x", ls.Color)
		s.LED.OnMs = ls.OnMs
		s.LED.OffMs = ls.OffMs
	}
	return s
}
