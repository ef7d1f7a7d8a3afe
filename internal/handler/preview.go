package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/swatto/wabulk/internal/contacts"
)

// previewPolicy keeps only the tags WhatsApp markup turns into.
var previewPolicy = bluemonday.StrictPolicy().AllowElements("b", "i", "s", "code", "br")

// WhatsApp inline markup: *bold*, _italic_, ~strike~, ```mono```.
var markup = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("```([^`]+)```"), "<code>$1</code>"},
	{regexp.MustCompile(`\*([^*\n]+)\*`), "<b>$1</b>"},
	{regexp.MustCompile(`\b_([^_\n]+)_\b`), "<i>$1</i>"},
	{regexp.MustCompile(`~([^~\n]+)~`), "<s>$1</s>"},
}

// PreviewHTML renders a message the way the WhatsApp chat shows it and
// sanitises the result for display in the UI.
func PreviewHTML(msg string) string {
	out := msg
	for _, m := range markup {
		out = m.re.ReplaceAllString(out, m.repl)
	}
	out = strings.ReplaceAll(out, "\n", "<br>")
	return previewPolicy.Sanitize(out)
}

// Preview renders the message for one uploaded contact.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(r)
	if err != nil {
		h.badBody(w, "preview", err)
		return
	}
	req, err := parsePreviewRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "preview: "+err.Error())
		return
	}

	u, ok := h.uploads.get(req.UploadID)
	if !ok {
		writeError(w, http.StatusNotFound, "preview: unknown upload_id, upload the CSV again")
		return
	}
	if req.Message == "" {
		req.Message = contacts.DefaultTemplate
	}
	row := req.Row
	if row == 0 {
		row = 1
	}
	if row < 1 || row > u.list.Len() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("preview: row must be between 1 and %d", u.list.Len()))
		return
	}

	c := u.list.Contacts[row-1]
	msg, err := contacts.Render(req.Message, c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, contacts.ErrUnknownField) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	resp := PreviewResponse{
		Row:     row,
		Name:    c.Name,
		Message: msg,
		HTML:    PreviewHTML(msg),
	}
	if phone, err := contacts.FormatPhone(c.Phone, h.countryCode()); err != nil {
		resp.Phone = c.Phone
		resp.PhoneError = err.Error()
	} else {
		resp.Phone = phone
	}
	writeJSON(w, http.StatusOK, resp)
}

// badBody replies to a request whose JSON body could not be read.
func (h *Handler) badBody(w http.ResponseWriter, op string, err error) {
	slog.Error(op+": invalid request body", "error", err)
	if errors.Is(err, errUnsupportedMediaType) {
		writeError(w, http.StatusNotAcceptable, op+": "+err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, op+": "+err.Error())
}
