package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/store"
)

// ErrRunActive is returned when a run is started while another is going.
var ErrRunActive = errors.New("a run is already in progress")

// liveRun is a run started by this process.
type liveRun struct {
	id      string
	mu      sync.Mutex
	report  campaign.Report
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (l *liveRun) snapshot() (campaign.Report, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.report
	r.Attempts = append([]campaign.Attempt(nil), l.report.Attempts...)
	return r, l.running
}

// runManager allows a single active run and remembers the last one.
type runManager struct {
	mu     sync.Mutex
	active *liveRun
	last   *liveRun
}

func newRunManager() *runManager {
	return &runManager{}
}

func (m *runManager) activeID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.id
}

// start launches runner over list in the background and returns the run ID.
func (m *runManager) start(runner *campaign.Runner, list []contacts.Contact, tmpl string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return "", ErrRunActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	run := &liveRun{
		id:      id,
		report:  campaign.Report{RunID: id, Template: tmpl, StartedAt: time.Now(), Total: len(list)},
		running: true,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.active = run
	m.last = run

	go func() {
		defer close(run.done)
		defer cancel()

		report, err := runner.RunWithID(ctx, id, list, tmpl, func(p campaign.Progress) {
			run.mu.Lock()
			run.report.Attempts = append(run.report.Attempts, p.Attempt)
			run.mu.Unlock()
		})
		if err != nil {
			slog.Error("runs: run failed", "run_id", id, "error", err)
		}

		run.mu.Lock()
		if report != nil {
			run.report = *report
		} else if err != nil {
			run.report.Error = err.Error()
			run.report.FinishedAt = time.Now()
		}
		run.running = false
		run.mu.Unlock()

		m.mu.Lock()
		if m.active == run {
			m.active = nil
		}
		m.mu.Unlock()
	}()
	return id, nil
}

// get returns the run if this process knows it.
func (m *runManager) get(id string) (*liveRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last != nil && m.last.id == id {
		return m.last, true
	}
	return nil, false
}

func (m *runManager) cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.id != id {
		return false
	}
	m.active.cancel()
	return true
}

func (m *runManager) shutdown(ctx context.Context) error {
	m.mu.Lock()
	run := m.active
	m.mu.Unlock()
	if run == nil {
		return nil
	}
	run.cancel()
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runs: waiting for run %s: %w", run.id, ctx.Err())
	}
}

// StartRun validates the request and starts a run in the background.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(r)
	if err != nil {
		h.badBody(w, "runs", err)
		return
	}
	req, err := parseRunRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "runs: "+err.Error())
		return
	}

	u, ok := h.uploads.get(req.UploadID)
	if !ok {
		writeError(w, http.StatusNotFound, "runs: unknown upload_id, upload the CSV again")
		return
	}
	if err := contacts.Validate(req.Message, u.list.Columns); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	delay := h.delay()
	if req.DelaySeconds != 0 {
		delay = time.Duration(req.DelaySeconds) * time.Second
		if delay < campaign.MinDelay || delay > campaign.MaxDelay {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("runs: delay_seconds must be between %d and %d",
				int(campaign.MinDelay.Seconds()), int(campaign.MaxDelay.Seconds())))
			return
		}
	}

	list, err := u.list.Range(req.StartRow, req.EndRow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.startRun(w, list, req.Message, delay, "upload")
}

// RetryRun starts a new run over the contacts a previous run did not reach.
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusNotFound, "runs: history is disabled")
		return
	}
	id := r.PathValue("id")
	list, tmpl, err := h.History.FailedContacts(r.Context(), id)
	if err != nil {
		h.historyError(w, id, err)
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusConflict, "runs: nothing to retry, every contact was sent")
		return
	}
	slog.Info("runs: retrying failed contacts", "run_id", id, "contacts", len(list))
	h.startRun(w, list, tmpl, h.delay(), "retry")
}

func (h *Handler) startRun(w http.ResponseWriter, list []contacts.Contact, tmpl string, delay time.Duration, trigger string) {
	id, err := h.runs.start(h.newRunner(delay), list, tmpl)
	if errors.Is(err, ErrRunActive) {
		writeError(w, http.StatusConflict, "runs: "+err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "runs: "+err.Error())
		return
	}
	runsStartedTotal.WithLabelValues(trigger).Inc()
	slog.Info("runs: run started", "run_id", id, "contacts", len(list), "delay", delay, "trigger", trigger)
	writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: id, Total: len(list)})
}

// ListRuns returns the run history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "runs: limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs := []store.RunInfo{}
	if h.History != nil {
		got, err := h.History.ListRuns(r.Context(), limit)
		if err != nil {
			slog.Error("runs: failed to list history", "error", err)
			writeError(w, http.StatusInternalServerError, "runs: failed to read history")
			return
		}
		if got != nil {
			runs = got
		}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetRun returns live progress for the active run or the stored report.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, running, err := h.lookupRun(r.Context(), id)
	if err != nil {
		h.historyError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(report, running))
}

// ExportRun downloads a run report as CSV, JSON or YAML. status=sent or
// status=failed narrows the export to that list.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = campaign.FormatCSV
	}
	if format == "yml" {
		format = campaign.FormatYAML
	}
	switch format {
	case campaign.FormatCSV, campaign.FormatJSON, campaign.FormatYAML:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("export: unsupported format %q", format))
		return
	}

	report, _, err := h.lookupRun(r.Context(), id)
	if err != nil {
		h.historyError(w, id, err)
		return
	}

	suffix := ""
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "sent":
		report.Attempts = report.Sent()
		suffix = "-sent"
	case "failed":
		report.Attempts = report.Failed()
		suffix = "-failed"
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("export: unsupported status %q", status))
		return
	}

	w.Header().Set("Content-Type", campaign.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s%s.%s"`, id, suffix, format))
	if err := campaign.Export(w, report, format); err != nil {
		slog.Error("export: failed to write report", "run_id", id, "error", err)
	}
}

// CancelRun stops the active run after the current contact.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.runs.cancel(id) {
		writeError(w, http.StatusConflict, "runs: run "+id+" is not active")
		return
	}
	slog.Info("runs: cancellation requested", "run_id", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id, "state": "cancelling"})
}

// lookupRun prefers the in-process run, then the history.
func (h *Handler) lookupRun(ctx context.Context, id string) (*campaign.Report, bool, error) {
	if live, ok := h.runs.get(id); ok {
		report, running := live.snapshot()
		return &report, running, nil
	}
	if h.History == nil {
		return nil, false, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	report, err := h.History.GetRun(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return report, false, nil
}

func (h *Handler) historyError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "runs: run "+id+" not found")
		return
	}
	slog.Error("runs: failed to read history", "run_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "runs: failed to read history")
}
