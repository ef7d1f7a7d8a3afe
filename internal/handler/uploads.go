package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swatto/wabulk/internal/contacts"
)

// maxUploads bounds the in-memory upload cache; the oldest entry is evicted.
const maxUploads = 16

type upload struct {
	created  time.Time
	list     *contacts.List
	id       string
	filename string
}

// uploadCache keeps parsed contact files between the upload and the run.
type uploadCache struct {
	mu    sync.Mutex
	items map[string]*upload
	order []string
	max   int
}

func newUploadCache(max int) *uploadCache {
	return &uploadCache{items: make(map[string]*upload), max: max}
}

func (c *uploadCache) put(filename string, list *contacts.List) *upload {
	u := &upload{id: uuid.NewString(), filename: filename, list: list, created: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[u.id] = u
	c.order = append(c.order, u.id)
	for len(c.order) > c.max {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	return u
}

func (c *uploadCache) get(id string) (*upload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.items[id]
	return u, ok
}

// UploadContacts parses the multipart "file" field as a contacts CSV.
func (h *Handler) UploadContacts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("upload: failed to read form file", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload: file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "upload: multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	list, err := contacts.Load(file)
	if err != nil {
		slog.Error("upload: failed to parse CSV", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if list.Len() == 0 {
		writeError(w, http.StatusBadRequest, "upload: CSV has no contacts with a phone number")
		return
	}

	u := h.uploads.put(header.Filename, list)
	uploadsTotal.Inc()
	slog.Info("upload: contacts loaded", "upload_id", u.id, "filename", header.Filename, "contacts", list.Len(), "skipped", len(list.Skipped))

	skipped := list.Skipped
	if skipped == nil {
		skipped = []int{}
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		UploadID: u.id,
		Filename: header.Filename,
		Columns:  list.Columns,
		Contacts: list.Contacts,
		Skipped:  skipped,
		Count:    list.Len(),
	})
}
