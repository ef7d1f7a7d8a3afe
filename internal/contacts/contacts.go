// Package contacts loads contact lists from CSV and renders per-contact
// messages from {field} templates.
package contacts

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Required CSV columns.
const (
	ColumnPhone = "phone_number"
	ColumnName  = "name"
)

var (
	// ErrMissingColumns is returned when the header lacks a required column.
	ErrMissingColumns = errors.New("contacts: CSV must contain columns phone_number and name")
	// ErrEmpty is returned for a CSV without a header row.
	ErrEmpty = errors.New("contacts: CSV file is empty")
	// ErrFileNotFound is returned by LoadFile when the path does not exist.
	ErrFileNotFound = errors.New("contacts: CSV file not found")
	// ErrInvalidRange is returned by Range for out-of-bounds row selections.
	ErrInvalidRange = errors.New("contacts: invalid row range")
)

// Contact is a single CSV data row.
type Contact struct {
	Fields map[string]string `json:"fields"`
	Phone  string            `json:"phone_number"`
	Name   string            `json:"name"`
	Row    int               `json:"row"` // 1-based data row, header excluded
}

// Field returns the value of a column, or empty string if not present.
func (c *Contact) Field(name string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[name]
}

// List is the result of loading a CSV file.
type List struct {
	Columns  []string  `json:"columns"`
	Contacts []Contact `json:"contacts"`
	Skipped  []int     `json:"skipped,omitempty"` // rows dropped for a blank phone number
}

// Len returns the number of loaded contacts.
func (l *List) Len() int {
	return len(l.Contacts)
}

// Range returns the contacts between start and end, 1-based and inclusive,
// counted over loaded contacts. Zero start or end selects the first or last
// contact.
func (l *List) Range(start, end int) ([]Contact, error) {
	n := len(l.Contacts)
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = n
	}
	if start < 1 || end > n || start > end {
		return nil, fmt.Errorf("%w: start=%d end=%d (have %d contacts)", ErrInvalidRange, start, end, n)
	}
	return l.Contacts[start-1 : end], nil
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("contacts: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load parses a UTF-8 CSV with a header row. The header must contain
// phone_number and name; any other column is kept as a template field.
func Load(r io.Reader) (*List, error) {
	br := bufio.NewReader(r)
	// Spreadsheet exports often carry a UTF-8 BOM.
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("contacts: read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	if !hasColumn(columns, ColumnPhone) || !hasColumn(columns, ColumnName) {
		return nil, ErrMissingColumns
	}

	list := &List{Columns: columns}
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("contacts: read row %d: %w", row, err)
		}
		if isBlank(record) {
			row--
			continue
		}

		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				fields[col] = strings.TrimSpace(record[i])
			} else {
				fields[col] = ""
			}
		}

		if fields[ColumnPhone] == "" {
			list.Skipped = append(list.Skipped, row)
			continue
		}
		list.Contacts = append(list.Contacts, Contact{
			Row:    row,
			Phone:  fields[ColumnPhone],
			Name:   fields[ColumnName],
			Fields: fields,
		})
	}
	return list, nil
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ExampleCSV writes the downloadable template file.
func ExampleCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll([][]string{
		{ColumnPhone, ColumnName},
		{"+919876543210", "Chandran Marimuthu"},
	}); err != nil {
		return fmt.Errorf("contacts: write example CSV: %w", err)
	}
	return nil
}
