package contacts

import (
	"errors"
	"testing"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		countryCode string
		want        string
		wantErr     bool
	}{
		{"already international", "+919876543210", "", "+919876543210", false},
		{"country code without plus", "919876543210", "", "+919876543210", false},
		{"local number", "9876543210", "", "+919876543210", false},
		{"separators", "(987) 654-3210", "", "+919876543210", false},
		{"dots and spaces", " +44 20.7946.0018 ", "", "+442079460018", false},
		{"spreadsheet float", "919876543210.0", "", "+919876543210", false},
		{"custom country code", "5551234567", "1", "+15551234567", false},
		{"custom country code with plus", "5551234567", "+1", "+15551234567", false},
		{"letters", "call-me", "", "", true},
		{"too short", "12", "", "", true},
		{"too long", "+1234567890123456", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatPhone(tt.raw, tt.countryCode)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("FormatPhone(%q) error = %v, want ErrInvalidPhone", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatPhone(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("FormatPhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+919876543210"); got != "919876543210" {
		t.Errorf("Digits() = %q", got)
	}
}
