package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/swatto/wabulk/internal/config"
	"github.com/swatto/wabulk/internal/whatsapp"
)

const (
	// AppName is the name of the application
	AppName = "wabulk"
	// AppDescription provides a brief description of the application
	AppDescription = "Personalised WhatsApp messages from a CSV file"
)

// Version can be set at build time via ldflags
var Version = "1.0.0"

// flagKeyPrefix marks a command annotation that binds a flag to a config key.
const flagKeyPrefix = "config-key:"

// app carries what every subcommand needs once the config is loaded.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	configFile string
	verbose    bool

	// Overridden in tests.
	interactive func() bool
	sleep       func(ctx context.Context, d time.Duration) error
}

func newApp() *app {
	return &app{
		v:           config.New(),
		interactive: isTerminal,
	}
}

func main() {
	if err := newApp().rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               AppName,
		Short:             AppDescription,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./wabulk.yaml, then "+config.DataDir()+"/wabulk.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("history-db", "", "run history database (default "+config.DataDir()+"/history.db)")
	pf.String("country-code", "", "country code for numbers written without one")
	bindFlag(root, "log-level", "log_level")
	bindFlag(root, "history-db", "history_db")
	bindFlag(root, "country-code", "country_code")

	root.AddCommand(
		a.serveCmd(),
		a.sendCmd(),
		a.templateCmd(),
		a.previewCmd(),
		a.runsCmd(),
	)
	return root
}

// bindFlag ties a flag of cmd to a config key. The binding happens in load,
// once the executing command is known, so two commands may bind flags of the
// same name to the same key.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[flagKeyPrefix+flag] = key
}

// load binds the flags of the executing command and its parents, reads the
// configuration and sets up logging.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		for name, key := range c.Annotations {
			flag, ok := strings.CutPrefix(name, flagKeyPrefix)
			if !ok {
				continue
			}
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := a.v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("config: bind --%s: %w", flag, err)
				}
			}
		}
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel)
	a.cfg = cfg
	return nil
}

func setupLogging(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// newSender returns the sender for one CLI run.
func (a *app) newSender() whatsapp.Sender {
	if a.cfg.DryRun {
		return &whatsapp.DryRunSender{}
	}
	return whatsapp.NewBrowserSender(browserOptions(a.cfg))
}

// browserOptions prints the login QR code on the terminal unless disabled.
func browserOptions(cfg *config.Config) whatsapp.BrowserOptions {
	opts := cfg.BrowserOptions()
	if cfg.Browser.PrintQR {
		opts.OnQR = whatsapp.PrintQR
	}
	return opts
}

func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
