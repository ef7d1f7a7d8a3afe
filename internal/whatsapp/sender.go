// Package whatsapp drives WhatsApp Web in a Chrome window to deliver
// pre-composed messages one chat at a time.
package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotOpen is returned by Send before a successful Open.
	ErrNotOpen = errors.New("whatsapp: browser not open, call Open first")
	// ErrLoginTimeout is returned when the chat list does not appear in time.
	ErrLoginTimeout = errors.New("whatsapp: timed out waiting for login (scan the QR code)")
	// ErrInvalidNumber is returned when WhatsApp reports the number is not on WhatsApp.
	ErrInvalidNumber = errors.New("whatsapp: phone number is invalid or not on WhatsApp")
	// ErrSendButtonNotFound is returned when the send control never shows up.
	ErrSendButtonNotFound = errors.New("whatsapp: send button not found")
	// ErrComposeNotFound is returned in type mode when the compose box never shows up.
	ErrComposeNotFound = errors.New("whatsapp: compose box not found")
)

// Sender delivers one message per call over a session opened once.
type Sender interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, phone, body string) error
	Close() error
}

// DryRunSender logs messages instead of sending them.
type DryRunSender struct {
	mu     sync.Mutex
	open   bool
	sent   int
	Settle time.Duration // optional pause after each message
}

// Open implements Sender.
func (d *DryRunSender) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	slog.Info("dry-run: browser session not started")
	return nil
}

// Send implements Sender.
func (d *DryRunSender) Send(ctx context.Context, phone, body string) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.sent++
	d.mu.Unlock()

	slog.Info("dry-run: would send message", "phone", phone, "body", body)
	return sleepCtx(ctx, d.Settle)
}

// Close implements Sender.
func (d *DryRunSender) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

// Count returns the number of messages that would have been sent.
func (d *DryRunSender) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
