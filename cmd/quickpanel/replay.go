package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/quickpanel/internal/engine"
	"github.com/jmylchreest/quickpanel/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE...",
	Short: "Replay scripted notification scenarios",
	Long: `Replay YAML notification scenarios against the engine on a virtual clock.

Each scenario is a list of steps. Event steps feed the engine (insert,
update, delete, delete_all, dismiss, gesture, gate, led) or move the clock
(advance); expect_* steps check counts, the banner, the LED and the list
order at that moment.

  name: banner order
  steps:
    - insert: {id: 1, title: Hello, auto_remove: true, timeout: 3s}
    - advance: 500ms
    - expect_banner: {state: showing, id: 1}

Timing comes from the config file unless the scenario overrides it.
The exit code is non-zero when any expectation fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	opts := engine.OptionsFromConfig(cfg)
	out := cmd.OutOrStdout()

	failed := 0
	for _, path := range args {
		s, err := replay.Load(path)
		if err != nil {
			return err
		}
		res, err := replay.Run(s, opts, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printResult(out, path, res)
		if !res.Passed() {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%s failed", english.Plural(failed, "scenario", ""))
	}
	return nil
}

func printResult(w io.Writer, path string, res *replay.Result) {
	status := "PASS"
	if !res.Passed() {
		status = "FAIL"
	}
	name := res.Name
	if name == "" {
		name = path
	}

	fmt.Fprintf(w, "%s  %s\n", status, name)
	fmt.Fprintf(w, "      %s over %s virtual, %s (%d interrupted, %d abandoned), %s\n",
		english.Plural(res.Steps, "step", ""),
		res.Elapsed,
		english.Plural(res.VIs, "transition", ""),
		res.Interrupted, res.Abandoned,
		english.Plural(res.LEDWrites, "LED write", ""))
	for _, f := range res.Failures {
		fmt.Fprintf(w, "      %s\n", f)
	}
}
