package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Mode selects how the message reaches the compose box.
type Mode string

const (
	// ModePrefill passes the message in the chat URL and only clicks send.
	ModePrefill Mode = "prefill"
	// ModeType opens the chat empty and types the message into the compose box.
	ModeType Mode = "type"
)

// QRFunc receives the login QR payload each time WhatsApp rotates it.
type QRFunc func(ref string)

// BrowserOptions configures a BrowserSender.
type BrowserOptions struct {
	BaseURL           string
	BrowserBin        string // empty: let rod find or download Chrome
	UserDataDir       string // persistent profile so the login survives runs
	ControlURL        string // attach to an already running Chrome instead of launching
	Headless          bool
	Mode              Mode
	LoginTimeout      time.Duration
	NavigationTimeout time.Duration
	SendTimeout       time.Duration
	SendSettle        time.Duration // pause after clicking send so the message leaves
	PollInterval      time.Duration
	Selectors         Selectors
	OnQR              QRFunc
}

// DefaultBrowserOptions returns the options used when nothing is configured.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		BaseURL:           DefaultBaseURL,
		Mode:              ModePrefill,
		LoginTimeout:      30 * time.Second,
		NavigationTimeout: 30 * time.Second,
		SendTimeout:       10 * time.Second,
		SendSettle:        2 * time.Second,
		PollInterval:      time.Second,
		Selectors:         DefaultSelectors(),
	}
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	d := DefaultBrowserOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = d.LoginTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = d.SendTimeout
	}
	if o.SendSettle < 0 {
		o.SendSettle = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	o.Selectors = o.Selectors.withDefaults()
	return o
}

// BrowserSender sends messages through one WhatsApp Web tab.
type BrowserSender struct {
	opts     BrowserOptions
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewBrowserSender creates a sender; the browser starts on Open.
func NewBrowserSender(opts BrowserOptions) *BrowserSender {
	return &BrowserSender{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (s *BrowserSender) Options() BrowserOptions {
	return s.opts
}

// Open launches (or attaches to) Chrome, loads WhatsApp Web and waits until
// the session is logged in.
func (s *BrowserSender) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return nil
	}

	slog.Info("whatsapp: opening WhatsApp Web, scan the QR code if asked", "url", s.opts.BaseURL)

	controlURL := s.opts.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(s.opts.Headless).
			Set(flags.NoSandbox).
			Set(flags.Flag("disable-dev-shm-usage"))
		if s.opts.BrowserBin != "" {
			l = l.Bin(s.opts.BrowserBin)
		}
		if s.opts.UserDataDir != "" {
			l = l.UserDataDir(s.opts.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("whatsapp: launch chrome: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.killLocked()
		return fmt.Errorf("whatsapp: connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.closeLocked()
		return fmt.Errorf("whatsapp: create page: %w", err)
	}

	if err := page.Timeout(s.opts.NavigationTimeout).Navigate(s.opts.BaseURL); err != nil {
		s.closeLocked()
		return fmt.Errorf("whatsapp: open %s: %w", s.opts.BaseURL, err)
	}

	if err := s.waitForLogin(ctx, page); err != nil {
		s.closeLocked()
		return err
	}

	s.page = page
	slog.Info("whatsapp: WhatsApp Web loaded successfully")
	return nil
}

// waitForLogin polls for the logged-in marker, forwarding QR codes while the
// login screen is shown.
func (s *BrowserSender) waitForLogin(ctx context.Context, page *rod.Page) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LoginTimeout)
	defer cancel()

	p := page.Context(ctx)
	sel := s.opts.Selectors
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var lastRef string
	for {
		ok, _, err := p.Has(sel.LoggedIn)
		if err == nil && ok {
			return nil
		}

		if ok, el, err := p.Has(sel.QRCode); err == nil && ok {
			ref, err := el.Attribute("data-ref")
			if err == nil && ref != nil && *ref != "" && *ref != lastRef {
				lastRef = *ref
				slog.Info("whatsapp: waiting for QR code scan", "timeout", s.opts.LoginTimeout)
				if s.opts.OnQR != nil {
					s.opts.OnQR(*ref)
				}
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrLoginTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Send opens the chat for phone, delivers body and clicks send.
func (s *BrowserSender) Send(ctx context.Context, phone, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return ErrNotOpen
	}

	prefill := body
	if s.opts.Mode == ModeType {
		prefill = ""
	}
	chatURL := ChatURL(s.opts.BaseURL, phone, prefill)
	page := s.page.Context(ctx)

	if err := page.Timeout(s.opts.NavigationTimeout).Navigate(chatURL); err != nil {
		return fmt.Errorf("whatsapp: open chat: %w", err)
	}

	target, notFound := s.opts.Selectors.SendButton, ErrSendButtonNotFound
	if s.opts.Mode == ModeType {
		target, notFound = s.opts.Selectors.ComposeBox, ErrComposeNotFound
	}

	el, err := s.waitForChat(page, target)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return notFound
		}
		return err
	}

	if s.opts.Mode == ModeType {
		if err := typeMessage(page, el, body); err != nil {
			return err
		}
		tp := page.Timeout(s.opts.SendTimeout)
		el, err = tp.Element(s.opts.Selectors.SendButton)
		tp.CancelTimeout()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrSendButtonNotFound
			}
			return fmt.Errorf("whatsapp: find send button: %w", err)
		}
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("whatsapp: click send: %w", err)
	}

	return sleepCtx(ctx, s.opts.SendSettle)
}

// waitForChat races the target element against WhatsApp's invalid number popup.
func (s *BrowserSender) waitForChat(page *rod.Page, target string) (*rod.Element, error) {
	tp := page.Timeout(s.opts.SendTimeout)
	defer tp.CancelTimeout()

	return tp.Race().
		Element(target).
		Element(s.opts.Selectors.InvalidNumber).Handle(func(e *rod.Element) error {
		text, _ := e.Text()
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			return ErrInvalidNumber
		}
		return fmt.Errorf("%w: %s", ErrInvalidNumber, text)
	}).
		Do()
}

// typeMessage types body into the compose box. Enter would send the message,
// so line breaks are entered with Shift+Enter.
func typeMessage(page *rod.Page, compose *rod.Element, body string) error {
	if err := compose.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("whatsapp: focus compose box: %w", err)
	}
	for i, line := range strings.Split(body, "\n") {
		if i > 0 {
			if err := page.KeyActions().Press(input.ShiftLeft).Type(input.Enter).Release(input.ShiftLeft).Do(); err != nil {
				return fmt.Errorf("whatsapp: type line break: %w", err)
			}
		}
		if line == "" {
			continue
		}
		if err := page.InsertText(line); err != nil {
			return fmt.Errorf("whatsapp: type message: %w", err)
		}
	}
	return nil
}

// Close closes the browser. It is safe to call more than once.
func (s *BrowserSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.closeLocked()
	if err == nil {
		slog.Info("whatsapp: browser closed")
	}
	return err
}

func (s *BrowserSender) closeLocked() error {
	var err error
	if s.browser != nil {
		// The run context may already be cancelled; closing must still reach Chrome.
		err = s.browser.Context(context.Background()).Close()
		s.browser = nil
	}
	s.page = nil
	s.killLocked()
	if err != nil {
		return fmt.Errorf("whatsapp: close browser: %w", err)
	}
	return nil
}

func (s *BrowserSender) killLocked() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
}
