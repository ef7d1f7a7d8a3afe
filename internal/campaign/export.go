package campaign

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/csv"
	}
}

// Export writes r in the given format.
func Export(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return WriteCSV(w, r.Attempts)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML, "yml":
		return WriteYAML(w, r)
	default:
		return fmt.Errorf("campaign: unsupported export format %q", format)
	}
}

// WriteCSV writes one line per attempt.
func WriteCSV(w io.Writer, attempts []Attempt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"row", "name", "phone", "status", "timestamp", "error"}); err != nil {
		return fmt.Errorf("campaign: write CSV header: %w", err)
	}
	for _, a := range attempts {
		if err := cw.Write([]string{
			strconv.Itoa(a.Row),
			a.Name,
			a.Phone,
			string(a.Status),
			a.Timestamp.Format(time.RFC3339),
			a.Error,
		}); err != nil {
			return fmt.Errorf("campaign: write CSV row %d: %w", a.Row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type exportDoc struct {
	Report  `yaml:",inline"`
	Summary Summary `json:"summary" yaml:"summary"`
}

// WriteJSON writes the report and its summary as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exportDoc{Report: *r, Summary: r.Summary()}); err != nil {
		return fmt.Errorf("campaign: encode JSON report: %w", err)
	}
	return nil
}

// WriteYAML writes the report and its summary as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exportDoc{Report: *r, Summary: r.Summary()}); err != nil {
		return fmt.Errorf("campaign: encode YAML report: %w", err)
	}
	return enc.Close()
}
