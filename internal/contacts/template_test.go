package contacts

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRender(t *testing.T) {
	contact := Contact{
		Phone: "+15550001",
		Name:  "Ann",
		Fields: map[string]string{
			"phone_number": "+15550001",
			"name":         "Ann",
			"city":         "Lyon",
			"first name":   "Annie",
			"empty":        "",
		},
	}

	tests := []struct {
		name    string
		tmpl    string
		want    string
		wantErr error
	}{
		{"plain text", "Hello there", "Hello there", nil},
		{"single field", "Hi {name}!", "Hi Ann!", nil},
		{"repeated fields", "{name} from {city}, {name}", "Ann from Lyon, Ann", nil},
		{"field with space", "Hi {first name}", "Hi Annie", nil},
		{"empty value", "[{empty}]", "[]", nil},
		{"escaped braces", "{{name}} is {name}", "{name} is Ann", nil},
		{"multiline and emoji", "Hi {name}! 👋\n\nBye", "Hi Ann! 👋\n\nBye", nil},
		{"default template", DefaultTemplate, "Hi Ann! 👋\n\nThis is an automated message. How can I help you?", nil},
		{"unknown field", "Hi {surname}", "", ErrUnknownField},
		{"unterminated", "Hi {name", "", ErrBadTemplate},
		{"nested open", "Hi {na{me}", "", ErrBadTemplate},
		{"stray close", "Hi name}", "", ErrBadTemplate},
		{"empty placeholder", "Hi {}", "", ErrBadTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, contact)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Render(%q) error = %v, want %v", tt.tmpl, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render(%q) unexpected error: %v", tt.tmpl, err)
			}
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	got, err := Placeholders("{name} {city} {{skip}} {name}")
	if err != nil {
		t.Fatalf("Placeholders() error = %v", err)
	}
	if diff := cmp.Diff([]string{"name", "city"}, got); diff != "" {
		t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	columns := []string{"phone_number", "name"}

	if err := Validate("Hi {name}", columns); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := Validate("Hi {city} {zip}", columns); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Validate() error = %v, want ErrUnknownField", err)
	}
	if err := Validate("   ", columns); !errors.Is(err, ErrBadTemplate) {
		t.Errorf("Validate() error = %v, want ErrBadTemplate for empty message", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		msg    string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
		{"👋👋👋👋👋", 4, "👋..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.msg, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.msg, tt.maxLen, got, tt.want)
		}
	}
}
