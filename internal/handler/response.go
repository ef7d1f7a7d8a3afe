package handler

import (
	"time"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
	"github.com/swatto/wabulk/internal/store"
)

// HealthResponse represents the JSON response for the /health endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	ActiveRun string `json:"active_run,omitempty"`
	DryRun    bool   `json:"dry_run"`
}

// ErrorResponse is the body of every JSON error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadResponse describes a parsed contacts file.
type UploadResponse struct {
	UploadID string             `json:"upload_id"`
	Filename string             `json:"filename"`
	Columns  []string           `json:"columns"`
	Contacts []contacts.Contact `json:"contacts"`
	Skipped  []int              `json:"skipped"`
	Count    int                `json:"count"`
}

// PreviewResponse is one rendered message.
type PreviewResponse struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	PhoneError string `json:"phone_error,omitempty"`
	Message    string `json:"message"`
	HTML       string `json:"html"` // sanitised, WhatsApp markup applied
	Row        int    `json:"row"`
}

// StartRunResponse is returned with 202 when a run starts.
type StartRunResponse struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`
}

// Run states.
const (
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// RunResponse is a run, live or from history.
type RunResponse struct {
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	RunID      string             `json:"run_id"`
	State      string             `json:"state"`
	Template   string             `json:"template"`
	Error      string             `json:"error,omitempty"`
	Attempts   []campaign.Attempt `json:"attempts"`
	Summary    campaign.Summary   `json:"summary"`
	Done       int                `json:"done"`
}

// RunListResponse is the run history.
type RunListResponse struct {
	Runs []store.RunInfo `json:"runs"`
}

func newRunResponse(r *campaign.Report, running bool) RunResponse {
	state := StateFinished
	switch {
	case running:
		state = StateRunning
	case r.Error != "":
		state = StateFailed
	}
	attempts := r.Attempts
	if attempts == nil {
		attempts = []campaign.Attempt{}
	}
	return RunResponse{
		RunID:      r.RunID,
		State:      state,
		Template:   r.Template,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
		Attempts:   attempts,
		Summary:    r.Summary(),
		Done:       len(r.Attempts),
	}
}
