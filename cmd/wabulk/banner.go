package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/swatto/wabulk/internal/config"
)

const (
	boxInnerWidth = 64
	configValueAt = 24 // column where config values start
)

// padCenter returns s centered in a string of length width, padded with spaces.
// Width is counted in runes.
func padCenter(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return string([]rune(s)[:width])
	}
	pad := width - n
	left := pad / 2
	right := pad - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// boxLine returns a box line with s centered between the vertical borders.
func boxLine(s string) string {
	return "║" + padCenter(s, boxInnerWidth) + "║"
}

// configLine returns a config line with label and value, value aligned at configValueAt.
// There is always at least one space between the colon and the value.
// Uses rune count for padding so multi-byte characters (e.g. •) don't break alignment.
func configLine(label, value string) string {
	prefix := "    • " + label + ":"
	prefixWidth := utf8.RuneCountInString(prefix)
	pad := max(1, configValueAt-prefixWidth)
	return prefix + strings.Repeat(" ", pad) + value
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// printBanner prints startup information about the server.
func printBanner(w io.Writer, cfg *config.Config) {
	border := strings.Repeat("═", boxInnerWidth)
	lines := []string{
		"",
		"╔" + border + "╗",
		boxLine(AppName),
		boxLine(AppDescription),
		"╚" + border + "╝",
		"",
		fmt.Sprintf("  Version:        %s", Version),
		fmt.Sprintf("  Go version:     %s", runtime.Version()),
		fmt.Sprintf("  OS/Arch:        %s/%s", runtime.GOOS, runtime.GOARCH),
		"",
		"  Configuration:",
		configLine("Port", cfg.Port),
		configLine("Log format", cfg.LogFormat),
	}
	if cfg.RateLimit > 0 {
		lines = append(lines, configLine("Rate limit", fmt.Sprintf("%d runs/min", cfg.RateLimit)))
	}
	if cfg.AccessToken != "" {
		lines = append(lines, configLine("API auth", "enabled (Bearer)"))
	}
	lines = append(lines,
		configLine("History", cfg.HistoryDB),
		configLine("Delay", cfg.Delay.String()),
		configLine("Country code", "+"+cfg.CountryCode),
	)
	if cfg.DryRun {
		lines = append(lines, configLine("Dry-run", "enabled (no messages sent)"))
	} else {
		lines = append(lines,
			configLine("Send mode", cfg.Browser.Mode),
			configLine("Headless", onOff(cfg.Browser.Headless)),
		)
		if cfg.Browser.ControlURL != "" {
			lines = append(lines, configLine("Chrome", cfg.Browser.ControlURL+" (attached)"))
		}
	}
	lines = append(lines,
		"",
		fmt.Sprintf("  Open http://localhost:%s in your browser", cfg.Port),
		"",
	)
	_, _ = fmt.Fprintln(w, strings.Join(lines, "\n"))
}
