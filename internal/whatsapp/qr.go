package whatsapp

import (
	qrcodeTerminal "github.com/Baozisoftware/qrcode-terminal-go"
)

// PrintQR renders a WhatsApp login QR payload on the terminal so headless
// sessions can be linked from a phone.
func PrintQR(ref string) {
	qrcodeTerminal.New().Get(ref).Print()
}
