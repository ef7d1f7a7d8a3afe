package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/whatsapp"
)

// Delay bounds between two contacts.
const (
	DefaultDelay = 5 * time.Second
	MinDelay     = 2 * time.Second
	MaxDelay     = 60 * time.Second
)

// ErrNoContacts is returned when Run is given an empty contact list.
var ErrNoContacts = errors.New("campaign: no contacts to send to")

// errCancelled is recorded on contacts left unattempted by a cancelled run.
const errCancelled = "run cancelled"

// Recorder persists run progress. Errors are logged and never stop a run.
type Recorder interface {
	BeginRun(ctx context.Context, r *Report) error
	RecordAttempt(ctx context.Context, runID string, a Attempt) error
	FinishRun(ctx context.Context, r *Report) error
}

// Progress is reported after every attempt.
type Progress struct {
	RunID   string  `json:"run_id"`
	Attempt Attempt `json:"attempt"`
	Index   int     `json:"index"` // 1-based
	Total   int     `json:"total"`
}

// ProgressFunc receives progress updates. It is called from the run goroutine.
type ProgressFunc func(Progress)

// Runner sends a template to contacts sequentially over one Sender session.
type Runner struct {
	Sender      whatsapp.Sender
	Recorder    Recorder // optional
	Delay       time.Duration
	CountryCode string

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner returns a Runner with the default delay.
func NewRunner(sender whatsapp.Sender) *Runner {
	return &Runner{
		Sender:      sender,
		Delay:       DefaultDelay,
		CountryCode: contacts.DefaultCountryCode,
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run opens the sender once, then renders, sends and records each contact in
// order, pausing Delay between contacts. A failed contact is recorded and the
// loop moves on. The returned error is non-nil only when the run could not
// start; per-contact failures live in the report.
func (r *Runner) Run(ctx context.Context, list []contacts.Contact, tmpl string, onProgress ProgressFunc) (*Report, error) {
	return r.RunWithID(ctx, uuid.NewString(), list, tmpl, onProgress)
}

// RunWithID is Run with a caller-chosen run ID, so the caller can expose the
// ID before the run finishes.
func (r *Runner) RunWithID(ctx context.Context, runID string, list []contacts.Contact, tmpl string, onProgress ProgressFunc) (*Report, error) {
	if len(list) == 0 {
		return nil, ErrNoContacts
	}
	if r.Sender == nil {
		return nil, errors.New("campaign: no sender configured")
	}

	report := &Report{
		RunID:     runID,
		Template:  tmpl,
		StartedAt: r.now(),
		Total:     len(list),
	}
	r.record("begin run", func() error { return r.Recorder.BeginRun(ctx, report) })

	log := slog.With("run_id", report.RunID)
	log.Info("campaign: starting run", "contacts", len(list), "delay", r.Delay)

	if err := r.Sender.Open(ctx); err != nil {
		report.Error = err.Error()
		log.Error("campaign: failed to open WhatsApp Web", "error", err)
		// Unreached contacts are recorded as failed with the open error.
		for i, c := range list {
			r.finishAttempt(ctx, report, r.attempt(c, "", StatusFailed, report.Error), i+1, onProgress)
		}
		report.FinishedAt = r.now()
		incRun("failed")
		r.record("finish run", func() error { return r.Recorder.FinishRun(context.WithoutCancel(ctx), report) })
		return report, fmt.Errorf("campaign: open sender: %w", err)
	}
	defer func() {
		if err := r.Sender.Close(); err != nil {
			log.Error("campaign: failed to close sender", "error", err)
		}
	}()

	cancelled := false
	for i, c := range list {
		var a Attempt
		if cancelled || ctx.Err() != nil {
			cancelled = true
			a = r.attempt(c, "", StatusSkipped, errCancelled)
		} else {
			log.Info(fmt.Sprintf("campaign: [%d/%d] sending", i+1, len(list)), "name", c.Name)
			a = r.sendOne(ctx, c, tmpl)
		}
		r.finishAttempt(ctx, report, a, i+1, onProgress)

		if !cancelled && i < len(list)-1 {
			if err := r.sleep(ctx, r.Delay); err != nil {
				cancelled = true
			}
		}
	}

	report.FinishedAt = r.now()
	result := "completed"
	if cancelled {
		result = "cancelled"
	}
	incRun(result)
	s := report.Summary()
	log.Info("campaign: run finished", "result", result, "sent", s.Sent, "failed", s.Failed, "skipped", s.Skipped)
	r.record("finish run", func() error { return r.Recorder.FinishRun(context.WithoutCancel(ctx), report) })
	return report, nil
}

// sendOne renders, formats and sends a single contact.
func (r *Runner) sendOne(ctx context.Context, c contacts.Contact, tmpl string) Attempt {
	body, err := contacts.Render(tmpl, c)
	if err != nil {
		slog.Error("campaign: failed to render message", "row", c.Row, "name", c.Name, "error", err)
		return r.attempt(c, "", StatusFailed, err.Error())
	}

	phone, err := contacts.FormatPhone(c.Phone, r.CountryCode)
	if err != nil {
		slog.Error("campaign: failed to format phone", "row", c.Row, "name", c.Name, "error", err)
		return r.attempt(c, body, StatusFailed, err.Error())
	}

	start := time.Now()
	err = r.Sender.Send(ctx, phone, body)
	sendDuration.Observe(time.Since(start).Seconds())

	a := r.attempt(c, body, StatusSent, "")
	a.Phone = phone
	if err != nil {
		if ctx.Err() != nil {
			a.Status, a.Error = StatusSkipped, errCancelled
			return a
		}
		slog.Error("campaign: failed to send", "name", c.Name, "phone", phone, "error", err)
		a.Status, a.Error = StatusFailed, err.Error()
		return a
	}
	slog.Info("campaign: message sent", "name", c.Name, "phone", phone)
	return a
}

func (r *Runner) attempt(c contacts.Contact, body string, status Status, errMsg string) Attempt {
	return Attempt{
		Row:       c.Row,
		Name:      c.Name,
		Phone:     c.Phone,
		Fields:    c.Fields,
		Status:    status,
		Error:     errMsg,
		Message:   body,
		Timestamp: r.now(),
	}
}

func (r *Runner) finishAttempt(ctx context.Context, report *Report, a Attempt, index int, onProgress ProgressFunc) {
	report.Attempts = append(report.Attempts, a)
	incMessage(a.Status)
	r.record("record attempt", func() error {
		return r.Recorder.RecordAttempt(context.WithoutCancel(ctx), report.RunID, a)
	})
	if onProgress != nil {
		onProgress(Progress{RunID: report.RunID, Index: index, Total: report.Total, Attempt: a})
	}
}

func (r *Runner) record(what string, fn func() error) {
	if r.Recorder == nil {
		return
	}
	if err := fn(); err != nil {
		slog.Error("campaign: failed to "+what, "error", err)
	}
}

// ClampDelay bounds d to [MinDelay, MaxDelay].
func ClampDelay(d time.Duration) time.Duration {
	return min(max(d, MinDelay), MaxDelay)
}
