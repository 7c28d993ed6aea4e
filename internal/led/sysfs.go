package led

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsPath is the LED class device used when none is configured.
const DefaultSysfsPath = "/sys/class/leds/notification"

// Sysfs drives a Linux LED class device.
//
// Blinking uses the "timer" trigger when the kernel offers it; colour is
// written to multi_intensity on multicolor devices and ignored otherwise.
type Sysfs struct {
	Path string
}

// NewSysfs returns a driver for the LED class device at path.
func NewSysfs(path string) *Sysfs {
	if path == "" {
		path = DefaultSysfsPath
	}
	return &Sysfs{Path: path}
}

// Apply writes s to the device.
func (d *Sysfs) Apply(s State) error {
	if !s.On {
		if err := d.write("trigger", "none"); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return d.write("brightness", "0")
	}

	if d.exists("multi_intensity") {
		r, g, b := (s.Color>>16)&0xff, (s.Color>>8)&0xff, s.Color&0xff
		if err := d.write("multi_intensity", fmt.Sprintf("%d %d %d", r, g, b)); err != nil {
			return err
		}
	}

	if err := d.write("brightness", strconv.Itoa(d.maxBrightness())); err != nil {
		return err
	}

	if s.OnMs > 0 && s.OffMs > 0 {
		if err := d.write("trigger", "timer"); err != nil {
			return err
		}
		// delay_on/delay_off appear once the timer trigger is active.
		if err := d.write("delay_on", strconv.Itoa(s.OnMs)); err != nil {
			return err
		}
		return d.write("delay_off", strconv.Itoa(s.OffMs))
	}

	if err := d.write("trigger", "none"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Sysfs) maxBrightness() int {
	data, err := os.ReadFile(filepath.Join(d.Path, "max_brightness"))
	if err != nil {
		return 255
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return 255
	}
	return n
}

func (d *Sysfs) exists(attr string) bool {
	_, err := os.Stat(filepath.Join(d.Path, attr))
	return err == nil
}

func (d *Sysfs) write(attr, value string) error {
	path := filepath.Join(d.Path, attr)
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Logger is a Hardware that only logs. It stands in on machines without an
// indicator LED.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a logging driver.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Apply logs s.
func (l *Logger) Apply(s State) error {
	l.logger.Info("led", "on", s.On, "color", fmt.Sprintf("#%06x", s.Color), "on_ms", s.OnMs, "off_ms", s.OffMs, "owner", s.Owner)
	return nil
}
