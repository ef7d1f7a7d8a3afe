package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/store"
)

var errNothingToRetry = errors.New("runs: nothing to retry, every contact was sent")

func (a *app) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect, export and retry past runs",
	}
	cmd.AddCommand(a.runsListCmd(), a.runsShowCmd(), a.runsExportCmd(), a.runsRetryCmd())
	return cmd
}

// withStore opens the history database for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(*store.Store) error) error {
	st, err := store.Open(cmd.Context(), a.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

func (a *app) runsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs, 0 for all")
	return cmd
}

func (a *app) runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the summary and failed contacts of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				r, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Template:\n%s\n\n", boxStyle.Render(r.Template))
				printSummary(out, r)
				return nil
			})
		},
	}
}

func (a *app) runsExportCmd() *cobra.Command {
	var format, status, output string
	cmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Export a run report as CSV, JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			switch format {
			case campaign.FormatCSV, campaign.FormatJSON, campaign.FormatYAML, "yml":
			default:
				return fmt.Errorf("runs: unknown format %q, use csv, json or yaml", format)
			}
			return a.withStore(cmd, func(st *store.Store) error {
				r, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				switch status {
				case "":
				case string(campaign.StatusSent):
					r.Attempts = r.Sent()
				case string(campaign.StatusFailed):
					r.Attempts = r.Failed()
				default:
					return fmt.Errorf("runs: unknown status %q, use sent or failed", status)
				}

				if output == "" || output == "-" {
					return campaign.Export(cmd.OutOrStdout(), r, format)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("runs: %w", err)
				}
				if err := campaign.Export(f, r, format); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", campaign.FormatCSV, "csv, json or yaml")
	f.StringVar(&status, "status", "", "only sent or failed contacts")
	f.StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) runsRetryCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "retry RUN_ID",
		Short: "Send again to the contacts a run failed or skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				list []contacts.Contact
				tmpl string
			)
			err := a.withStore(cmd, func(st *store.Store) error {
				var err error
				list, tmpl, err = st.FailedContacts(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return errNothingToRetry
			}

			out := cmd.OutOrStdout()
			if err := a.showPreview(out, list[0], tmpl); err != nil {
				return err
			}
			if err := a.confirm(yes, fmt.Sprintf("Retry %d contacts?", len(list))); err != nil {
				return err
			}
			_, err = a.execute(cmd.Context(), out, list, tmpl)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&yes, "yes", "y", false, "send without asking for confirmation")
	f.Duration("delay", campaign.DefaultDelay, "pause between contacts")
	f.Bool("dry-run", false, "log messages instead of opening WhatsApp Web")
	bindFlag(cmd, "delay", "delay")
	bindFlag(cmd, "dry-run", "dry_run")
	return cmd
}
