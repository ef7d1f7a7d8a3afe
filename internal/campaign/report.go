// Package campaign runs a message template over a contact list, one contact
// at a time, and reports what happened to each.
package campaign

import (
	"time"
)

// Status is the outcome of one attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Attempt records the outcome for a single contact.
type Attempt struct {
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Name      string            `json:"name" yaml:"name"`
	Phone     string            `json:"phone" yaml:"phone"`
	Status    Status            `json:"status" yaml:"status"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	Message   string            `json:"message,omitempty" yaml:"message,omitempty"`
	Row       int               `json:"row" yaml:"row"`
}

// Summary holds the run totals.
type Summary struct {
	Total       int     `json:"total" yaml:"total"`
	Sent        int     `json:"sent" yaml:"sent"`
	Failed      int     `json:"failed" yaml:"failed"`
	Skipped     int     `json:"skipped" yaml:"skipped"`
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"` // percent of Total
}

// Report is the result of one run.
type Report struct {
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	RunID      string    `json:"run_id" yaml:"run_id"`
	Template   string    `json:"template" yaml:"template"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"` // run-level failure, e.g. login
	Attempts   []Attempt `json:"attempts" yaml:"attempts"`
	Total      int       `json:"total" yaml:"total"` // contacts selected for the run
}

// Summary computes totals over the attempts. Contacts that were never
// attempted because the run failed to start count as failed.
func (r *Report) Summary() Summary {
	s := Summary{Total: r.Total}
	if s.Total < len(r.Attempts) {
		s.Total = len(r.Attempts)
	}
	for _, a := range r.Attempts {
		switch a.Status {
		case StatusSent:
			s.Sent++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	if r.Error != "" {
		s.Failed += s.Total - len(r.Attempts)
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Sent) / float64(s.Total) * 100
	}
	return s
}

// Failed returns the attempts that did not send, skipped ones included.
func (r *Report) Failed() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if a.Status != StatusSent {
			out = append(out, a)
		}
	}
	return out
}

// Sent returns the successful attempts.
func (r *Report) Sent() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if a.Status == StatusSent {
			out = append(out, a)
		}
	}
	return out
}
