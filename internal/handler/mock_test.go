package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swatto/wabulk/internal/store"
	"github.com/swatto/wabulk/internal/whatsapp"
)

// MockSender is a mock implementation of whatsapp.Sender for testing
type MockSender struct {
	SendFunc func(ctx context.Context, phone, body string) error
	OpenErr  error
	Calls    []MockCall
	Opened   int
	mu       sync.Mutex
}

// MockCall represents a single call to Send
type MockCall struct {
	Phone string
	Body  string
}

// Open implements the whatsapp.Sender interface
func (m *MockSender) Open(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opened++
	return m.OpenErr
}

// Send implements the whatsapp.Sender interface
func (m *MockSender) Send(ctx context.Context, phone, body string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Phone: phone, Body: body})
	fn := m.SendFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, phone, body)
	}
	return nil
}

// Close implements the whatsapp.Sender interface
func (m *MockSender) Close() error { return nil }

// CallCount returns the number of times Send was called
func (m *MockSender) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// GetCall returns the call at the specified index
func (m *MockSender) GetCall(index int) MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[index]
}

const testCSV = "phone_number,name,city\n" +
	"+919876543210,Asha,Chennai\n" +
	"9123456780,Ravi,Madurai\n" +
	",Nobody,Nowhere\n" +
	"+15550000001,Ann,Lyon\n"

// newTestHandler returns a handler backed by a temporary history database
// whose runs never pause between contacts.
func newTestHandler(t *testing.T, cfg *Config, sender *MockSender) (*Handler, http.Handler) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	h := New(cfg, func() whatsapp.Sender { return sender }, st, "test")
	h.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Close(ctx); err != nil {
			t.Errorf("close handler: %v", err)
		}
		_ = st.Close()
	})

	return h, mux(h)
}

// uploadCSV posts content as a contacts file and returns the recorder.
func uploadCSV(t *testing.T, srv http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/contacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func postJSON(srv http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func newRequest(method, path, body, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func serve(srv http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func mux(h *Handler) http.Handler {
	m := http.NewServeMux()
	h.RegisterRoutes(m)
	return m
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// waitForRun blocks until the run started by this handler finishes.
func waitForRun(t *testing.T, h *Handler, id string) {
	t.Helper()
	live, ok := h.runs.get(id)
	if !ok {
		t.Fatalf("run %s unknown to handler", id)
	}
	select {
	case <-live.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run %s did not finish", id)
	}
}
