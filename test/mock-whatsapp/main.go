// Command mock-whatsapp serves just enough of WhatsApp Web for wabulk to log
// in and send messages against it. Point browser.base_url at it.
package main

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// invalidPhone is rejected with the "not on WhatsApp" popup.
const invalidPhone = "000000000"

// Message is a message the Send button delivered
type Message struct {
	SentAt time.Time `json:"sent_at"`
	Phone  string    `json:"phone"`
	Body   string    `json:"body"`
}

// MessageStore stores sent messages for verification
type MessageStore struct {
	mu       sync.RWMutex
	messages []Message
}

func (s *MessageStore) Add(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *MessageStore) GetAll() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Message, len(s.messages))
	copy(result, s.messages)
	return result
}

func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

var (
	store   = &MessageStore{}
	started = time.Now()
)

// loginDelay keeps the QR code on screen for a while after startup, so the
// login wait and QR printing can be exercised.
func loginDelay() time.Duration {
	d, err := time.ParseDuration(os.Getenv("LOGIN_DELAY"))
	if err != nil {
		return 0
	}
	return d
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	delay := loginDelay()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if time.Since(started) < delay {
			fmt.Fprintf(w, `<html><body><div data-ref="mock-login-%d">scan me</div>
<script>setTimeout(() => location.reload(), 1000)</script></body></html>`, time.Now().Unix())
			return
		}
		fmt.Fprint(w, `<html><body><div id="pane-side">chats</div></body></html>`)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "mock-whatsapp healthy")
	})

	// The chat deep link: a compose box prefilled with ?text= and a Send button
	// that reports what was in the box.
	mux.HandleFunc("GET /send/", func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		if phone == invalidPhone {
			log.Printf("Rejecting invalid number %s", phone)
			fmt.Fprint(w, `<html><body><div data-animate-modal-popup="true">Phone number shared via url is invalid.</div></body></html>`)
			return
		}
		fmt.Fprintf(w, `<html><body>
<footer><div contenteditable="true">%s</div></footer>
<button aria-label="Send" onclick="fetch('/sent?phone=%s', {method: 'POST', body: document.querySelector('footer div').innerText}); document.querySelector('footer div').innerText = ''">send</button>
</body></html>`, html.EscapeString(r.URL.Query().Get("text")), html.EscapeString(phone))
	})

	mux.HandleFunc("POST /sent", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		msg := Message{SentAt: time.Now().UTC(), Phone: r.URL.Query().Get("phone"), Body: strings.TrimSpace(string(body))}
		log.Printf("Received message: Phone=%s, Body=%q", msg.Phone, msg.Body)
		store.Add(msg)
		w.WriteHeader(http.StatusNoContent)
	})

	// GET /messages - retrieve all sent messages for verification
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		messages := store.GetAll()
		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{
			"count":    len(messages),
			"messages": messages,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Failed to encode messages response: %v", err)
		}
	})

	mux.HandleFunc("DELETE /messages", func(w http.ResponseWriter, r *http.Request) {
		store.Clear()
		w.WriteHeader(http.StatusNoContent)
		log.Printf("Message store cleared")
	})

	log.Printf("Mock WhatsApp Web starting on port %s (login delay %s)", port, delay)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
