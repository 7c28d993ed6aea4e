package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/quickpanel/internal/engine"
)

var statusOpts struct {
	addr   string
	waybar bool
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text    string `json:"text"`
	Alt     string `json:"alt,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Class   string `json:"class,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running daemon",
	Long: `Query a running daemon over its metrics endpoint and print its state.

The daemon must serve metrics (run --metrics ADDR or [metrics] listen in the
config). With --waybar the output is a Waybar custom module:

  "custom/notifications": {
    "exec": "quickpanel status --waybar",
    "interval": 5,
    "return-type": "json",
    "on-click": "quickpanel gate toggle dnd"
  }`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOpts.addr, "addr", "",
		"Daemon metrics address (default: [metrics] listen from the config)")
	statusCmd.Flags().BoolVar(&statusOpts.waybar, "waybar", false,
		"Output Waybar-compatible JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusOpts.addr
	if addr == "" {
		addr = cfg.Metrics.Listen
	}
	if addr == "" {
		return errors.New("no daemon address: pass --addr or set [metrics] listen")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := fetchStatus(ctx, addr)
	out := cmd.OutOrStdout()
	if statusOpts.waybar {
		if err != nil {
			logger.Debug("failed to fetch status", "addr", addr, "error", err)
			return json.NewEncoder(out).Encode(WaybarStatus{Alt: "error", Class: "error"})
		}
		return json.NewEncoder(out).Encode(waybarStatus(status))
	}
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}

func fetchStatus(ctx context.Context, addr string) (engine.Status, error) {
	var status engine.Status

	url := addr
	if !strings.Contains(url, "://") {
		if strings.HasPrefix(url, ":") {
			url = "localhost" + url
		}
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(url, "/")+"/status", nil)
	if err != nil {
		return status, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("daemon returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to decode status: %w", err)
	}
	return status, nil
}

// waybarStatus summarizes s for a status bar.
func waybarStatus(s engine.Status) WaybarStatus {
	total := s.Normal + s.Ongoing

	class := "normal"
	switch {
	case s.Gates.DoNotDisturb:
		class = "dnd"
	case s.Banner.Current != nil:
		class = "banner"
	case total == 0:
		class = "empty"
	}

	var lines []string
	if s.Ongoing > 0 {
		lines = append(lines, fmt.Sprintf("Ongoing: %d", s.Ongoing))
	}
	if s.Normal > 0 {
		lines = append(lines, fmt.Sprintf("Notifications: %d", s.Normal))
	}
	if s.Banner.Current != nil {
		lines = append(lines, "Showing: "+s.Banner.Current.Title)
	}
	if s.LED.On {
		lines = append(lines, fmt.Sprintf("LED: %s for #%d", s.LED.Color, s.LED.Owner))
	}
	if len(lines) == 0 {
		lines = append(lines, "No notifications")
	}

	text := ""
	if total > 0 {
		text = fmt.Sprintf("%d", total)
	}
	return WaybarStatus{
		Text:    text,
		Alt:     class,
		Tooltip: strings.Join(lines, "\n"),
		Class:   class,
	}
}
