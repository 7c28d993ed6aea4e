package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/quickpanel/internal/audio"
	"github.com/jmylchreest/quickpanel/internal/config"
	"github.com/jmylchreest/quickpanel/internal/dbus"
	"github.com/jmylchreest/quickpanel/internal/engine"
	"github.com/jmylchreest/quickpanel/internal/gates"
	"github.com/jmylchreest/quickpanel/internal/led"
	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/metrics"
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
	"github.com/jmylchreest/quickpanel/internal/tui"
)

const shutdownTimeout = 5 * time.Second

var runOpts struct {
	tui     bool
	metrics string
	monitor bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the notification daemon",
	Long: `Run quickpanel as the session notification daemon.

quickpanel claims org.freedesktop.Notifications on the session bus and feeds
every notification into the panel engine. With --monitor it instead watches
the traffic of another daemon and mirrors the notifications it shows and
closes.

With --tui the panel is drawn in the terminal:
  j/k, ↑/↓    Navigate list
  enter       Open (invoke default action)
  d           Dismiss notification
  C           Clear all
  x           Close banner
  K/J/H/L     Flick banner up/down/left/right
  n/l/p/e     Toggle do-not-disturb, lock screen, panel open, LED
  ?           Show help
  q           Quit

Config and gate changes on disk are applied while running.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOpts.tui, "tui", false,
		"Draw the panel in the terminal")
	runCmd.Flags().StringVar(&runOpts.metrics, "metrics", "",
		"Serve /metrics and /status on this address (overrides config)")
	runCmd.Flags().BoolVar(&runOpts.monitor, "monitor", false,
		"Observe another notification daemon instead of owning the bus name")
}

// source is a notification event source attached to the engine.
type source interface {
	Start() error
	Stop() error
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger
	if runOpts.tui && globalOpts.logFile == "" {
		// Anything on stderr would tear the alternate screen.
		log = slog.New(slog.DiscardHandler)
	}
	log.Info("starting quickpanel", "version", version)

	el := loop.New(log.With("component", "loop"))
	hopts := render.HeadlessOptions{
		Width:         cfg.Animation.Width,
		ItemHeight:    cfg.Animation.ItemHeight,
		OngoingHeight: cfg.Animation.OngoingHeight,
	}
	var (
		renderer render.Renderer
		term     *tui.Renderer
	)
	if runOpts.tui {
		term = tui.NewRenderer(el, hopts, log.With("component", "render"))
		renderer = term
	} else {
		renderer = render.NewHeadless(el, hopts, log.With("component", "render"))
	}

	m := metrics.New()
	deps := engine.Deps{Metrics: m, Logger: log.With("component", "engine")}
	if cfg.Sound.Enabled {
		player := audio.NewPlayer(cfg.Sound.Volume, log.With("component", "audio"))
		defer player.Close()
		deps.Sound = player
	}

	eng := engine.New(el, renderer, ledHardware(cfg, log), engine.OptionsFromConfig(cfg), deps)
	async := engine.NewAsync(el, eng)

	statePath, err := gates.Path()
	if err != nil {
		return fmt.Errorf("failed to resolve state path: %w", err)
	}
	if st, err := gates.Load(statePath); err != nil {
		log.Warn("failed to load gate state", "path", statePath, "error", err)
	} else {
		eng.ApplyGates(st)
	}

	src, err := attachSource(eng, async, m, log)
	if err != nil {
		return err
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- el.Run(loopCtx) }()

	if err := src.Start(); err != nil {
		stopLoop()
		<-loopDone
		return fmt.Errorf("failed to start notification source: %w", err)
	}
	if srv, ok := src.(*dbus.Server); ok {
		async.ServiceReady(srv.Records())
	}

	stopWatchers := startWatchers(async, statePath, log)

	if addr := metricsAddr(); addr != "" {
		go func() {
			status := func(ctx context.Context) (any, error) { return async.Status(ctx) }
			if err := m.Serve(ctx, addr, status, log.With("component", "metrics")); err != nil {
				log.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	log.Info("quickpanel ready", "monitor", runOpts.monitor, "tui", runOpts.tui)

	var runErr error
	if runOpts.tui {
		ctrl := &panelController{Async: async, statePath: statePath, logger: log}
		runErr = tui.Run(ctx, ctrl, term)
		cancel()
	} else {
		<-ctx.Done()
		log.Info("received signal, shutting down")
	}

	// Clean up
	stopWatchers()
	if err := src.Stop(); err != nil {
		log.Warn("error stopping notification source", "error", err)
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelStop()
	if err := async.Stop(stopCtx); err != nil {
		log.Warn("engine did not stop cleanly", "error", err)
	}
	stopLoop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("engine loop stopped with error", "error", err)
	}

	log.Info("quickpanel stopped")
	return runErr
}

// notifySource is a source that reports notifies and closes.
type notifySource interface {
	source
	SetNotifyHandler(dbus.NotifyHandler)
	SetCloseHandler(dbus.CloseHandler)
}

// attachSource connects the D-Bus server, or the monitor, to the engine.
func attachSource(eng *engine.Engine, async *engine.Async, m *metrics.Metrics, log *slog.Logger) (source, error) {
	if runOpts.monitor {
		mon := dbus.NewMonitor(log.With("component", "dbus-monitor"))
		feed(mon, async, m)
		return mon, nil
	}

	srv := dbus.NewServer(log.With("component", "dbus"))
	feed(srv, async, m)

	// Both hooks run on the engine loop.
	eng.SetClosedHook(func(id int, _ engine.CloseReason) {
		if err := srv.Closed(id, dbus.CloseReasonDismissed); err != nil {
			log.Warn("failed to report close", "id", id, "error", err)
		}
	})
	eng.SetActionHook(func(id int, key string) bool {
		dismiss, err := srv.InvokeAction(id, key)
		if err != nil {
			log.Warn("failed to invoke action", "id", id, "action", key, "error", err)
		}
		return dismiss
	})
	return srv, nil
}

// feed posts the events of src to the engine loop.
func feed(src notifySource, async *engine.Async, m *metrics.Metrics) {
	src.SetNotifyHandler(func(rec *model.Record, replaced bool) {
		if replaced {
			m.SourceEvent("replace")
			async.Update(rec)
			return
		}
		m.SourceEvent("notify")
		async.Insert(rec)
	})
	src.SetCloseHandler(func(id int) {
		m.SourceEvent("close")
		async.Delete(id)
	})
}

// startWatchers applies config and gate edits made on disk. The returned
// func stops them.
func startWatchers(async *engine.Async, statePath string, log *slog.Logger) func() {
	var stops []func() error

	cw, err := config.NewWatcher(globalOpts.configPath, func(c *config.Config) {
		async.ApplyOptions(engine.OptionsFromConfig(c))
	}, log.With("component", "config"))
	if err == nil {
		err = cw.Start()
	}
	if err != nil {
		log.Warn("config hot reload disabled", "error", err)
	} else {
		stops = append(stops, cw.Stop)
	}

	gw, err := gates.NewWatcher(statePath, async.ApplyGates, log.With("component", "gates"))
	if err == nil {
		err = gw.Start()
	}
	if err != nil {
		log.Warn("gate watching disabled", "error", err)
	} else {
		stops = append(stops, gw.Stop)
	}

	return func() {
		for _, stop := range stops {
			if err := stop(); err != nil {
				log.Warn("error stopping watcher", "error", err)
			}
		}
	}
}

func ledHardware(c *config.Config, log *slog.Logger) led.Hardware {
	if c.LED.Driver == config.DriverSysfs {
		return led.NewSysfs(c.LED.Path)
	}
	return led.NewLogger(log.With("component", "led"))
}

func metricsAddr() string {
	if runOpts.metrics != "" {
		return runOpts.metrics
	}
	return cfg.Metrics.Listen
}

// panelController persists gate toggles made in the terminal so the CLI
// and a restarted daemon agree with what the user sees.
type panelController struct {
	*engine.Async
	statePath string
	logger    *slog.Logger
}

func (c *panelController) SetGate(name gates.Name, enabled bool) {
	c.Async.SetGate(name, enabled)

	st, err := gates.Load(c.statePath)
	if err != nil {
		c.logger.Warn("failed to load gate state", "error", err)
		return
	}
	if err := st.Set(name, enabled, "tui"); err != nil {
		c.logger.Warn("failed to set gate", "gate", name, "error", err)
		return
	}
	if err := gates.Save(c.statePath, st); err != nil {
		c.logger.Warn("failed to save gate state", "error", err)
	}
}
