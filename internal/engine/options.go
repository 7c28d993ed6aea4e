package engine

import (
	"github.com/jmylchreest/quickpanel/internal/animation"
	"github.com/jmylchreest/quickpanel/internal/config"
	"github.com/jmylchreest/quickpanel/internal/headsup"
	"github.com/jmylchreest/quickpanel/internal/led"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// Container names.
const (
	ContainerList   = "list"
	ContainerBanner = "banner"
)

// Options configures an Engine.
type Options struct {
	Animation animation.Options
	HeadsUp   headsup.Options
	LED       led.Options

	ItemSize    render.Size // Minimum size of a normal list item and the banner
	OngoingSize render.Size // Minimum size of an ongoing list item
	Gap         int

	SoundEnabled bool
	DefaultSound string
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig maps the config file onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Animation: animation.Options{
			TranslateDuration: cfg.Animation.Translate.Duration(),
			FadeDuration:      cfg.Animation.Fade.Duration(),
		},
		HeadsUp: headsup.Options{
			Enabled:       cfg.HeadsUp.Enabled,
			CloseDuration: cfg.HeadsUp.CloseDuration.Duration(),
			MinVisible:    cfg.HeadsUp.MinVisible.Duration(),
		},
		LED: led.Options{
			Enabled:      cfg.LED.Enabled,
			DefaultColor: cfg.LEDColor(),
			OnMs:         cfg.LED.OnMs,
			OffMs:        cfg.LED.OffMs,
		},
		ItemSize:     render.Size{W: cfg.Animation.Width, H: cfg.Animation.ItemHeight},
		OngoingSize:  render.Size{W: cfg.Animation.Width, H: cfg.Animation.OngoingHeight},
		Gap:          cfg.Animation.Gap,
		SoundEnabled: cfg.Sound.Enabled,
		DefaultSound: cfg.DefaultSound(),
	}
}
