package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/quickpanel/internal/gates"
)

var gateOpts struct {
	json bool
}

// gateCmd represents the gate command group.
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Show or change feature gates",
	Long: `Show or change the feature gates a running daemon obeys.

Gates:
  led     Indicator LED enabled
  dnd     Do not disturb (no banners)
  lock    Lock screen shown (no banners)
  panel   Quick panel open (no banners for tray-only notifications)

The state is shared through ~/.local/share/quickpanel/state.json; a running
daemon picks up changes immediately.`,
	RunE: gateStatusRun,
}

var gateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show all gates",
	Args:  cobra.NoArgs,
	RunE:  gateStatusRun,
}

var gateSetCmd = &cobra.Command{
	Use:       "set NAME on|off",
	Short:     "Turn a gate on or off",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"led", "dnd", "lock", "panel"},
	RunE:      gateSetRun,
}

var gateToggleCmd = &cobra.Command{
	Use:   "toggle NAME",
	Short: "Flip a gate",
	Args:  cobra.ExactArgs(1),
	RunE:  gateToggleRun,
}

func init() {
	gateCmd.AddCommand(gateStatusCmd)
	gateCmd.AddCommand(gateSetCmd)
	gateCmd.AddCommand(gateToggleCmd)

	for _, cmd := range []*cobra.Command{gateCmd, gateStatusCmd} {
		cmd.Flags().BoolVar(&gateOpts.json, "json", false, "Output the state as JSON")
	}

	rootCmd.AddCommand(gateCmd)
}

func gateStatusRun(cmd *cobra.Command, args []string) error {
	state, err := gates.Load("")
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	out := cmd.OutOrStdout()
	if gateOpts.json {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(state)
	}

	for _, n := range gates.Names() {
		fmt.Fprintf(out, "%-6s %s\n", n, onOff(state.Get(n)))
	}
	if t := state.LastTransition; t != nil {
		fmt.Fprintf(out, "\nLast change: %s %s %s", t.Gate, onOff(t.Enabled), humanize.Time(time.Unix(t.Timestamp, 0)))
		if t.Source != "" {
			fmt.Fprintf(out, " (from %s)", t.Source)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func gateSetRun(cmd *cobra.Command, args []string) error {
	name, err := gates.ParseName(args[0])
	if err != nil {
		return err
	}

	var enabled bool
	switch args[1] {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("invalid value %q, must be on or off", args[1])
	}
	return setGate(cmd, name, func(bool) bool { return enabled })
}

func gateToggleRun(cmd *cobra.Command, args []string) error {
	name, err := gates.ParseName(args[0])
	if err != nil {
		return err
	}
	return setGate(cmd, name, func(cur bool) bool { return !cur })
}

func setGate(cmd *cobra.Command, name gates.Name, next func(bool) bool) error {
	state, err := gates.Load("")
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	enabled := next(state.Get(name))
	if err := state.Set(name, enabled, "cli"); err != nil {
		return err
	}
	if err := gates.Save("", state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, onOff(enabled))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
