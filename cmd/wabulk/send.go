package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/store"
)

// errNotConfirmed is returned when a run needs confirmation and none was given.
var errNotConfirmed = errors.New("send: not confirmed, pass --yes to send without a prompt")

type sendOptions struct {
	csvPath     string
	message     string
	messageFile string
	reportPath  string
	start       int
	end         int
	yes         bool
}

func (a *app) sendCmd() *cobra.Command {
	var o sendOptions
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message template to every contact of a CSV file",
		Example: `  wabulk send --csv contacts.csv --message "Hi {name}!"
  wabulk send --csv contacts.csv --message-file promo.txt --start 10 --end 50 --delay 8s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.send(cmd, &o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.csvPath, "csv", "", "contacts CSV with phone_number and name columns")
	f.StringVarP(&o.message, "message", "m", "", "message template, {column} placeholders")
	f.StringVar(&o.messageFile, "message-file", "", "read the message template from a file")
	f.StringVar(&o.reportPath, "report", "", "write the report to this file (.csv, .json or .yaml)")
	f.IntVar(&o.start, "start", 0, "first contact to send to, 1-based")
	f.IntVar(&o.end, "end", 0, "last contact to send to, 1-based (default last)")
	f.BoolVarP(&o.yes, "yes", "y", false, "send without asking for confirmation")
	f.Duration("delay", campaign.DefaultDelay, "pause between contacts")
	f.Bool("dry-run", false, "log messages instead of opening WhatsApp Web")
	f.Bool("headless", false, "run Chrome without a window")
	_ = cmd.MarkFlagRequired("csv")
	cmd.MarkFlagsMutuallyExclusive("message", "message-file")
	bindFlag(cmd, "delay", "delay")
	bindFlag(cmd, "dry-run", "dry_run")
	bindFlag(cmd, "headless", "browser.headless")
	return cmd
}

func (a *app) send(cmd *cobra.Command, o *sendOptions) error {
	out := cmd.OutOrStdout()

	list, err := contacts.LoadFile(o.csvPath)
	if err != nil {
		return err
	}
	if len(list.Skipped) > 0 {
		_, _ = fmt.Fprintf(out, "Skipping rows without a phone number: %v\n", list.Skipped)
	}
	selected, err := list.Range(o.start, o.end)
	if err != nil {
		return err
	}

	tmpl, err := a.messageTemplate(o.message, o.messageFile)
	if err != nil {
		return err
	}
	if err := contacts.Validate(tmpl, list.Columns); err != nil {
		return err
	}

	if err := a.showPreview(out, selected[0], tmpl); err != nil {
		return err
	}
	if err := a.confirm(o.yes, fmt.Sprintf("Send to %d contacts?", len(selected))); err != nil {
		return err
	}

	report, err := a.execute(cmd.Context(), out, selected, tmpl)
	if report != nil && o.reportPath != "" {
		if werr := writeReport(o.reportPath, report); werr != nil {
			return werr
		}
		_, _ = fmt.Fprintf(out, "Report written to %s\n", o.reportPath)
	}
	return err
}

// messageTemplate picks the template from the flags, a prompt or the default.
func (a *app) messageTemplate(message, file string) (string, error) {
	switch {
	case message != "":
		return message, nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("send: read message file: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	case a.interactive():
		tmpl := contacts.DefaultTemplate
		prompt := &survey.Multiline{
			Message: "Message (use {name} or any CSV column; empty keeps the default)",
		}
		var answer string
		if err := survey.AskOne(prompt, &answer); err != nil {
			return "", fmt.Errorf("send: read message: %w", err)
		}
		if strings.TrimSpace(answer) != "" {
			tmpl = answer
		}
		return tmpl, nil
	default:
		return contacts.DefaultTemplate, nil
	}
}

func (a *app) showPreview(out io.Writer, c contacts.Contact, tmpl string) error {
	body, err := contacts.Render(tmpl, c)
	if err != nil {
		return err
	}
	phone, err := contacts.FormatPhone(c.Phone, a.cfg.CountryCode)
	if err != nil {
		phone = c.Phone + " (" + err.Error() + ")"
	}
	printPreview(out, c.Name, phone, body)
	return nil
}

// confirm asks before sending. Without a terminal it requires --yes.
func (a *app) confirm(yes bool, question string) error {
	if yes {
		return nil
	}
	if !a.interactive() {
		return errNotConfirmed
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: question}, &ok); err != nil {
		return fmt.Errorf("send: confirm: %w", err)
	}
	if !ok {
		return errNotConfirmed
	}
	return nil
}

// execute runs list through a sender, records it in the history database and
// prints progress and the summary. Ctrl-C skips the remaining contacts.
func (a *app) execute(ctx context.Context, out io.Writer, list []contacts.Contact, tmpl string) (*campaign.Report, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, a.cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	runner := campaign.NewRunner(a.newSender())
	runner.Recorder = st
	runner.Delay = a.cfg.Delay
	runner.CountryCode = a.cfg.CountryCode
	runner.Sleep = a.sleep

	report, err := runner.Run(ctx, list, tmpl, func(p campaign.Progress) {
		printProgress(out, p)
	})
	if report != nil {
		printSummary(out, report)
	}
	return report, err
}

// writeReport exports r in the format named by the file extension.
func writeReport(path string, r *campaign.Report) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case campaign.FormatJSON, campaign.FormatYAML, "yml":
	default:
		format = campaign.FormatCSV
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("send: create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("send: write report: %w", cerr)
		}
	}()
	return campaign.Export(f, r, format)
}
