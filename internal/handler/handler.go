package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/store"
	"github.com/swatto/wabulk/internal/whatsapp"
)

// maxBodySize is the maximum allowed request body size (5 MB), CSV uploads included.
const maxBodySize = 5 << 20

// Config holds the configuration for the handler
//
//nolint:govet // fieldalignment: minor optimization not worth reduced readability
type Config struct {
	RateLimit    int           // Max run starts per minute (0 = disabled)
	LogFormat    string        // Access log format: "simple" (default) or "nginx"
	AccessToken  string        // If set, /api/* requires Authorization: Bearer <token>
	DryRun       bool          // If true, log messages instead of driving the browser
	DefaultDelay time.Duration // Delay used when a request does not choose one
	CountryCode  string        // Prefix for numbers written without one
}

// Validate checks that all configuration fields are consistent.
func (c *Config) Validate() error {
	if c.RateLimit < 0 {
		return fmt.Errorf("RateLimit must be >= 0 (got %d)", c.RateLimit)
	}
	switch c.LogFormat {
	case "", "simple", "nginx":
	default:
		return fmt.Errorf("LogFormat must be \"simple\" or \"nginx\" (got %q)", c.LogFormat)
	}
	if c.DefaultDelay != 0 && (c.DefaultDelay < campaign.MinDelay || c.DefaultDelay > campaign.MaxDelay) {
		return fmt.Errorf("DefaultDelay must be between %s and %s (got %s)", campaign.MinDelay, campaign.MaxDelay, c.DefaultDelay)
	}
	return nil
}

// SenderFactory returns a fresh Sender for each run.
type SenderFactory func() whatsapp.Sender

// History is the run storage the handler reads and writes. *store.Store
// implements it.
type History interface {
	campaign.Recorder
	ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error)
	GetRun(ctx context.Context, id string) (*campaign.Report, error)
	FailedContacts(ctx context.Context, id string) ([]contacts.Contact, string, error)
}

// Handler serves the web UI and the JSON API.
type Handler struct {
	Config      *Config
	NewSender   SenderFactory
	History     History // optional
	StartTime   time.Time
	Version     string
	rateLimiter *RateLimiter
	uploads     *uploadCache
	runs        *runManager

	// sleep replaces the pause between contacts in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new Handler. In dry-run mode newSender is ignored.
func New(cfg *Config, newSender SenderFactory, history History, version string) *Handler {
	if cfg.DryRun || newSender == nil {
		newSender = func() whatsapp.Sender { return &whatsapp.DryRunSender{} }
	}
	h := &Handler{
		Config:    cfg,
		NewSender: newSender,
		History:   history,
		StartTime: time.Now(),
		Version:   version,
		uploads:   newUploadCache(maxUploads),
		runs:      newRunManager(),
	}
	if cfg.RateLimit > 0 {
		h.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	return h
}

// RegisterRoutes registers all HTTP routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /template.csv", h.TemplateCSV)

	api := func(pattern string, fn http.HandlerFunc, limited bool) {
		var next http.Handler = fn
		if limited && h.rateLimiter != nil {
			next = h.rateLimiter.Wrap(next)
		}
		if h.Config.AccessToken != "" {
			next = RequireToken(h.Config.AccessToken, next)
		}
		mux.Handle(pattern, next)
	}
	api("POST /api/contacts", h.UploadContacts, false)
	api("POST /api/preview", h.Preview, false)
	api("POST /api/runs", h.StartRun, true)
	api("GET /api/runs", h.ListRuns, false)
	api("GET /api/runs/{id}", h.GetRun, false)
	api("GET /api/runs/{id}/export", h.ExportRun, false)
	api("POST /api/runs/{id}/retry", h.RetryRun, true)
	api("POST /api/runs/{id}/cancel", h.CancelRun, false)
}

// Ping handles the ping endpoint
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if _, err := io.WriteString(w, "ping"); err != nil {
		slog.Error("ping: failed to write response", "error", err)
	}
}

// Health handles the health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.StartTime).Round(time.Second)
	response := HealthResponse{
		Status:    "ok",
		Version:   h.Version,
		Uptime:    uptime.String(),
		ActiveRun: h.runs.activeID(),
		DryRun:    h.Config.DryRun,
	}
	writeJSON(w, http.StatusOK, response)
}

// TemplateCSV serves an example contacts file.
func (h *Handler) TemplateCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contacts_template.csv"`)
	if err := contacts.ExampleCSV(w); err != nil {
		slog.Error("template: failed to write example CSV", "error", err)
	}
}

// Close cancels the active run, if any, and waits for it to record its
// report or for ctx to expire.
func (h *Handler) Close(ctx context.Context) error {
	return h.runs.shutdown(ctx)
}

func (h *Handler) delay() time.Duration {
	if h.Config.DefaultDelay > 0 {
		return h.Config.DefaultDelay
	}
	return campaign.DefaultDelay
}

func (h *Handler) countryCode() string {
	if h.Config.CountryCode != "" {
		return h.Config.CountryCode
	}
	return contacts.DefaultCountryCode
}

// newRunner wires a runner with a fresh sender and the history recorder.
func (h *Handler) newRunner(delay time.Duration) *campaign.Runner {
	runner := campaign.NewRunner(h.NewSender())
	runner.Delay = delay
	runner.CountryCode = h.countryCode()
	runner.Sleep = h.sleep
	if h.History != nil {
		runner.Recorder = h.History
	}
	return runner
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("http: failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
