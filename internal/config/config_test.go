package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.HeadsUp.Enabled)
	assert.Equal(t, 5*time.Second, cfg.HeadsUp.CloseDuration.Duration())
	assert.Equal(t, time.Second, cfg.HeadsUp.MinVisible.Duration())
	assert.Equal(t, DriverLog, cfg.LED.Driver)
	assert.Equal(t, uint32(0x00ff00), cfg.LEDColor())
	assert.Empty(t, cfg.Metrics.Listen)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quickpanel.toml")
	content := `
[headsup]
close_duration = "8s"
min_visible = "1500"

[animation]
fade = "100ms"
gap = 0

[led]
driver = "sysfs"
path = "/sys/class/leds/rgb"
color = "#ff8000"

[metrics]
listen = "127.0.0.1:9101"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, cfg.HeadsUp.CloseDuration.Duration())
	assert.Equal(t, 1500*time.Millisecond, cfg.HeadsUp.MinVisible.Duration())
	assert.Equal(t, 100*time.Millisecond, cfg.Animation.Fade.Duration())
	assert.Equal(t, 0, cfg.Animation.Gap)
	assert.Equal(t, 200*time.Millisecond, cfg.Animation.Translate.Duration(), "unset keys keep defaults")
	assert.Equal(t, DriverSysfs, cfg.LED.Driver)
	assert.Equal(t, uint32(0xff8000), cfg.LEDColor())
	assert.Equal(t, "127.0.0.1:9101", cfg.Metrics.Listen)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[headsup\n"},
		{"bad duration", "[headsup]\nclose_duration = \"soon\"\n"},
		{"bad driver", "[led]\ndriver = \"gpio\"\n"},
		{"bad color", "[led]\ncolor = \"green\"\n"},
		{"bad volume", "[sound]\nvolume = 101\n"},
		{"min above close", "[headsup]\nclose_duration = \"1s\"\nmin_visible = \"2s\"\n"},
		{"zero close", "[headsup]\nclose_duration = \"0s\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quickpanel.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate_ZeroCloseWithHeadsUpDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeadsUp.CloseDuration = 0
	assert.Error(t, cfg.Validate())

	cfg.HeadsUp.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quickpanel.toml")

	cfg := DefaultConfig()
	cfg.HeadsUp.CloseDuration = Duration(7 * time.Second)
	cfg.LED.Color = "#123456"
	require.NoError(t, cfg.Save(path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#0a0B0c")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0a0b0c), c)

	c, err = ParseColor("ffffff")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xffffff), c)

	_, err = ParseColor("#fff")
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sounds/ping.ogg"), ExpandPath("~/sounds/ping.ogg"))
	assert.Equal(t, "/abs/ping.ogg", ExpandPath("/abs/ping.ogg"))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quickpanel.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sound]\nvolume = 10\n"), 0644))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("[sound]\nvolume = 20\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 20, cfg.Sound.Volume)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
