package whatsapp

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the WhatsApp Web entry point.
const DefaultBaseURL = "https://web.whatsapp.com"

// Selectors locate the WhatsApp Web elements the sender interacts with.
// WhatsApp changes its markup without notice, so every one is overridable.
type Selectors struct {
	LoggedIn      string `mapstructure:"logged_in" yaml:"logged_in"`
	QRCode        string `mapstructure:"qr_code" yaml:"qr_code"`
	ComposeBox    string `mapstructure:"compose_box" yaml:"compose_box"`
	SendButton    string `mapstructure:"send_button" yaml:"send_button"`
	InvalidNumber string `mapstructure:"invalid_number" yaml:"invalid_number"`
}

// DefaultSelectors returns selectors matching the current WhatsApp Web markup.
func DefaultSelectors() Selectors {
	return Selectors{
		LoggedIn:      "#pane-side",
		QRCode:        "div[data-ref]",
		ComposeBox:    "footer div[contenteditable='true']",
		SendButton:    "button[aria-label='Send'], span[data-icon='send']",
		InvalidNumber: "div[data-animate-modal-popup='true']",
	}
}

// withDefaults fills empty selectors from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.LoggedIn == "" {
		s.LoggedIn = d.LoggedIn
	}
	if s.QRCode == "" {
		s.QRCode = d.QRCode
	}
	if s.ComposeBox == "" {
		s.ComposeBox = d.ComposeBox
	}
	if s.SendButton == "" {
		s.SendButton = d.SendButton
	}
	if s.InvalidNumber == "" {
		s.InvalidNumber = d.InvalidNumber
	}
	return s
}

// ChatURL returns the deep link that opens a chat with phone. A non-empty
// text is prefilled into the compose box.
func ChatURL(baseURL, phone, text string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	q := url.Values{}
	q.Set("phone", strings.TrimPrefix(phone, "+"))
	if text != "" {
		q.Set("text", text)
	}
	return strings.TrimRight(baseURL, "/") + "/send/?" + q.Encode()
}
