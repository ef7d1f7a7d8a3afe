package whatsapp

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestChatURL(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		phone     string
		text      string
		wantPhone string
		wantText  string
		hasText   bool
	}{
		{"default base", "", "+919876543210", "Hi Ann!", "919876543210", "Hi Ann!", true},
		{"trailing slash", "http://localhost:8080/", "+15550001", "x", "15550001", "x", true},
		{"no text", "http://localhost:8080", "+15550001", "", "15550001", "", false},
		{"special chars", "", "+15550001", "Hi & bye #1\n50% off 👋", "15550001", "Hi & bye #1\n50% off 👋", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChatURL(tt.base, tt.phone, tt.text)

			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("ChatURL() returned unparsable URL %q: %v", got, err)
			}
			if u.Path != "/send/" {
				t.Errorf("expected path /send/, got %q", u.Path)
			}
			wantBase := tt.base
			if wantBase == "" {
				wantBase = DefaultBaseURL
			}
			if !strings.HasPrefix(got, strings.TrimRight(wantBase, "/")+"/send/?") {
				t.Errorf("ChatURL() = %q, want prefix %q", got, wantBase)
			}
			q := u.Query()
			if q.Get("phone") != tt.wantPhone {
				t.Errorf("phone = %q, want %q", q.Get("phone"), tt.wantPhone)
			}
			if q.Has("text") != tt.hasText {
				t.Errorf("text present = %t, want %t", q.Has("text"), tt.hasText)
			}
			if q.Get("text") != tt.wantText {
				t.Errorf("text = %q, want %q", q.Get("text"), tt.wantText)
			}
		})
	}
}

func TestSelectors_WithDefaults(t *testing.T) {
	s := Selectors{SendButton: "#send"}.withDefaults()
	d := DefaultSelectors()

	if s.SendButton != "#send" {
		t.Errorf("custom selector overwritten: %q", s.SendButton)
	}
	if s.LoggedIn != d.LoggedIn || s.QRCode != d.QRCode || s.ComposeBox != d.ComposeBox || s.InvalidNumber != d.InvalidNumber {
		t.Errorf("empty selectors not defaulted: %+v", s)
	}
}

func TestBrowserOptions_WithDefaults(t *testing.T) {
	o := BrowserOptions{LoginTimeout: time.Minute, SendSettle: -1}.withDefaults()

	if o.LoginTimeout != time.Minute {
		t.Errorf("LoginTimeout = %v, want 1m", o.LoginTimeout)
	}
	if o.SendTimeout != 10*time.Second {
		t.Errorf("SendTimeout = %v, want 10s", o.SendTimeout)
	}
	if o.SendSettle != 0 {
		t.Errorf("negative SendSettle should clamp to 0, got %v", o.SendSettle)
	}
	if o.Mode != ModePrefill {
		t.Errorf("Mode = %q, want %q", o.Mode, ModePrefill)
	}
	if o.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", o.BaseURL)
	}
}

func TestBrowserSender_SendBeforeOpen(t *testing.T) {
	s := NewBrowserSender(BrowserOptions{})

	err := s.Send(context.Background(), "+15550001", "hi")
	if !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on unopened sender: %v", err)
	}
}

func TestDryRunSender(t *testing.T) {
	d := &DryRunSender{}
	ctx := context.Background()

	if err := d.Send(ctx, "+15550001", "hi"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen before Open, got %v", err)
	}
	if err := d.Open(ctx); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := d.Send(ctx, "+15550001", "hi"); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if d.Count() != 3 {
		t.Errorf("Count() = %d, want 3", d.Count())
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDryRunSender_SettleHonoursContext(t *testing.T) {
	d := &DryRunSender{Settle: time.Hour}
	_ = d.Open(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Send(ctx, "+15550001", "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
