package dbus

import (
	"time"

	"github.com/jmylchreest/quickpanel/internal/audio"
	"github.com/jmylchreest/quickpanel/internal/config"
	"github.com/jmylchreest/quickpanel/internal/model"
)

// Record converts the Notify arguments into an engine record.
//
// Resident and progress notifications are ongoing unless the category hint
// says otherwise. Low urgency skips the banner. Critical urgency, resident
// notifications and an expire timeout of 0 keep the banner until dismissed.
func (n *Notification) Record(id int, now time.Time) *model.Record {
	rec := &model.Record{
		ID:        id,
		Category:  n.category(),
		Timestamp: now,
		AppName:   n.AppName,
		Title:     n.Summary,
		Body:      n.Body,
		Icon:      n.AppIcon,
		Flags:     model.DefaultDisplayFlags,
		Sound:     n.sound(),
		LED:       n.led(),
	}
	if rec.Icon == "" {
		rec.Icon = n.ImagePath()
	}

	for i := 0; i+1 < len(n.Actions); i += 2 {
		rec.Actions = append(rec.Actions, model.Action{Key: n.Actions[i], Label: n.Actions[i+1]})
	}

	urgency := n.Urgency()
	headsUp := urgency > UrgencyLow
	if b, ok := hint[bool](n.Hints, HintHeadsUp); ok {
		headsUp = b
	}
	if !headsUp {
		rec.Flags &^= model.DisplayHeadsUp
	}
	if b, _ := hint[bool](n.Hints, HintTrayOnly); b {
		rec.Flags |= model.DisplayTrayOnly
	}
	if rec.LED != nil {
		rec.Flags |= model.DisplayLED
	}

	sticky := urgency == UrgencyCritical || n.Resident() || n.ExpireTimeout == 0
	rec.AutoRemove = n.Transient() || !sticky
	if n.ExpireTimeout > 0 {
		rec.Timeout = time.Duration(n.ExpireTimeout) * time.Millisecond
	}
	return rec
}

func (n *Notification) category() model.Category {
	if s, ok := hint[string](n.Hints, HintCategory); ok {
		if c, err := model.ParseCategory(s); err == nil {
			return c
		}
	}
	if n.Resident() || n.Progress() >= 0 {
		return model.CategoryOngoing
	}
	return model.CategoryNormal
}

func (n *Notification) sound() string {
	switch {
	case n.SuppressSound():
		return audio.SoundSilent
	case n.SoundFile() != "":
		return n.SoundFile()
	case n.SoundName() != "":
		return audio.SoundDefault
	}
	return ""
}

func (n *Notification) led() *model.LEDDirective {
	var d *model.LEDDirective

	switch v := n.Hints[HintLED].Value().(type) {
	case bool:
		if v {
			d = &model.LEDDirective{}
		}
	case string:
		if color, err := config.ParseColor(v); err == nil {
			d = &model.LEDDirective{Color: color, Custom: true}
		}
	default:
		if n.Urgency() == UrgencyCritical {
			d = &model.LEDDirective{}
		}
	}
	if d == nil {
		return nil
	}

	if ms, ok := hint[int32](n.Hints, HintLEDOnMs); ok && ms >= 0 {
		d.OnMs = int(ms)
	}
	if ms, ok := hint[int32](n.Hints, HintLEDOffMs); ok && ms >= 0 {
		d.OffMs = int(ms)
	}
	return d
}
