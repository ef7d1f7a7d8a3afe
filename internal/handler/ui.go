package handler

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/flosch/pongo2/v6"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	templateSet = pongo2.NewSet("wabulk", pongo2.NewFSLoader(templateFS))
	indexTpl    = pongo2.Must(templateSet.FromFile("templates/index.html"))
)

// Index serves the single-page UI.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	defaultTemplate, err := json.Marshal(contacts.DefaultTemplate)
	if err != nil {
		http.Error(w, "index: failed to encode template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = indexTpl.ExecuteWriter(pongo2.Context{
		"version":          h.Version,
		"dry_run":          h.Config.DryRun,
		"token_required":   h.Config.AccessToken != "",
		"default_template": string(defaultTemplate),
		"min_delay":        int(campaign.MinDelay.Seconds()),
		"max_delay":        int(campaign.MaxDelay.Seconds()),
		"default_delay":    int(h.delay().Seconds()),
		"phone_column":     contacts.ColumnPhone,
		"name_column":      contacts.ColumnName,
	}, w)
	if err != nil {
		slog.Error("index: failed to render page", "error", err)
	}
}
