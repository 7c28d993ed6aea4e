package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		directive string
		want      string
	}{
		{"", ""},
		{"silent", ""},
		{"none", ""},
		{"default", "/usr/share/sounds/ping.ogg"},
		{"/tmp/bell.wav", "/tmp/bell.wav"},
		{"~/bell.mp3", filepath.Join(home, "bell.mp3")},
	}

	for _, tt := range tests {
		t.Run(tt.directive, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.directive, "/usr/share/sounds/ping.ogg"))
		})
	}
}

func TestPlayer_Volume(t *testing.T) {
	p := NewPlayer(150, nil)
	assert.Equal(t, 100, p.Volume())
	p.SetVolume(-3)
	assert.Equal(t, 0, p.Volume())
	p.SetVolume(40)
	assert.Equal(t, 40, p.Volume())
}

func TestPlayer_RejectsUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	p := NewPlayer(80, nil)
	err := p.Play(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
}

func TestPlayer_MissingFile(t *testing.T) {
	p := NewPlayer(80, nil)
	assert.Error(t, p.Play(filepath.Join(t.TempDir(), "missing.wav")))
	assert.NoError(t, p.Play(""))
}

func TestVolumeToDecibels(t *testing.T) {
	assert.InDelta(t, 0, volumeToDecibels(1), 1e-9)
	assert.InDelta(t, -6.02, volumeToDecibels(0.5), 0.01)
	assert.Equal(t, -100.0, volumeToDecibels(0))
}
