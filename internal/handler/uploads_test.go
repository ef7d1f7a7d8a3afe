package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/swatto/wabulk/internal/contacts"
)

func TestUploadContacts(t *testing.T) {
	_, srv := newTestHandler(t, &Config{}, &MockSender{})

	w := uploadCSV(t, srv, "contacts.csv", testCSV)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UploadID == "" {
		t.Error("expected an upload id")
	}
	if resp.Filename != "contacts.csv" {
		t.Errorf("filename: got %q", resp.Filename)
	}
	if resp.Count != 3 {
		t.Errorf("count: got %d, want 3", resp.Count)
	}
	if diff := cmp.Diff([]string{"phone_number", "name", "city"}, resp.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, resp.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if got := resp.Contacts[2]; got.Name != "Ann" || got.Row != 4 || got.Field("city") != "Lyon" {
		t.Errorf("unexpected third contact: %+v", got)
	}
}

func TestUploadContacts_Errors(t *testing.T) {
	_, srv := newTestHandler(t, &Config{}, &MockSender{})

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing columns", "phone,full_name\n+1555,Ann\n", "phone_number and name"},
		{"empty file", "", "empty"},
		{"no phone numbers", "phone_number,name\n,Ann\n", "no contacts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := uploadCSV(t, srv, "bad.csv", tt.content)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("error body %q does not mention %q", w.Body.String(), tt.want)
			}
		})
	}
}

func TestUploadContacts_MissingFile(t *testing.T) {
	_, srv := newTestHandler(t, &Config{}, &MockSender{})

	w := postJSON(srv, "/api/contacts", "{}")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUploadCache_EvictsOldest(t *testing.T) {
	c := newUploadCache(2)
	first := c.put("a.csv", &contacts.List{})
	c.put("b.csv", &contacts.List{})
	c.put("c.csv", &contacts.List{})

	if _, ok := c.get(first.id); ok {
		t.Error("oldest upload should have been evicted")
	}
	if len(c.items) != 2 {
		t.Errorf("expected 2 cached uploads, got %d", len(c.items))
	}
}

func uploadID(t *testing.T, srv http.Handler) string {
	t.Helper()
	w := uploadCSV(t, srv, "contacts.csv", testCSV)
	if w.Code != http.StatusOK {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	return resp.UploadID
}

func TestPreview(t *testing.T) {
	_, srv := newTestHandler(t, &Config{}, &MockSender{})
	id := uploadID(t, srv)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       PreviewResponse
	}{
		{
			name:       "first row by default",
			body:       fmt.Sprintf(`{"upload_id":%q,"message":"Hi *{name}* from {city}"}`, id),
			wantStatus: http.StatusOK,
			want: PreviewResponse{
				Row: 1, Name: "Asha", Phone: "+919876543210",
				Message: "Hi *Asha* from Chennai",
				HTML:    "Hi <b>Asha</b> from Chennai",
			},
		},
		{
			name:       "chosen row gets country code",
			body:       fmt.Sprintf(`{"upload_id":%q,"message":"Hi {name}\nbye","row":2}`, id),
			wantStatus: http.StatusOK,
			want: PreviewResponse{
				Row: 2, Name: "Ravi", Phone: "+919123456780",
				Message: "Hi Ravi\nbye",
				HTML:    "Hi Ravi<br>bye",
			},
		},
		{
			name:       "default template",
			body:       fmt.Sprintf(`{"upload_id":%q}`, id),
			wantStatus: http.StatusOK,
			want: PreviewResponse{
				Row: 1, Name: "Asha", Phone: "+919876543210",
				Message: "Hi Asha! 👋\n\nThis is an automated message. How can I help you?",
				HTML:    "Hi Asha! 👋<br><br>This is an automated message. How can I help you?",
			},
		},
		{
			name:       "unknown placeholder",
			body:       fmt.Sprintf(`{"upload_id":%q,"message":"Hi {surname}"}`, id),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "row out of range",
			body:       fmt.Sprintf(`{"upload_id":%q,"message":"Hi","row":9}`, id),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown upload",
			body:       `{"upload_id":"nope","message":"Hi"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "row is not a number",
			body:       fmt.Sprintf(`{"upload_id":%q,"row":"two"}`, id),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not an object",
			body:       `["x"]`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(srv, "/api/preview", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got PreviewResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("preview mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreviewHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"*bold* and _italic_ and ~gone~", "<b>bold</b> and <i>italic</i> and <s>gone</s>"},
		{"snake_case_name", "snake_case_name"},
		{"```code```", "<code>code</code>"},
		{"<script>alert(1)</script>hi", "hi"},
		{"a < b & c", "a &lt; b &amp; c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := PreviewHTML(tt.in); got != tt.want {
				t.Errorf("PreviewHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
