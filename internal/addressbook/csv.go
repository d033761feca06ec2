package addressbook

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/snarg/call-engine/internal/database"
)

// csvHeader is the canonical column order for import and export.
var csvHeader = []string{
	"id", "name", "surname", "address", "zip_code", "city", "state", "country",
	"phone_number", "enabled", "created_time", "annotations", "on_call_availability",
}

// ContactStore is the slice of the database layer the CSV round-trip needs.
type ContactStore interface {
	ListContacts(ctx context.Context) ([]*database.Contact, error)
	InsertContact(ctx context.Context, c *database.Contact) (string, error)
	UpdateContact(ctx context.Context, c *database.Contact) (int64, error)
}

// ExportCSV writes every contact in the canonical column order. The
// availability column carries the compact JSON window list.
func ExportCSV(ctx context.Context, db ContactStore, w io.Writer) error {
	contacts, err := db.ListContacts(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range contacts {
		avail := compactJSON(c.Availability)
		record := []string{
			c.ID, c.Name, c.Surname, c.Address, c.ZipCode, c.City, c.State, c.Country,
			c.PhoneNumber, strconv.FormatBool(c.Enabled),
			c.CreatedTime.Format("2006-01-02 15:04:05"), c.Annotations, avail,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ImportSummary accumulates per-row results of a CSV import.
type ImportSummary struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors,omitempty"`
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ImportCSV reads contact rows, deduplicating against the existing book by
// id when present, else by normalised (phone_number, name, surname). Known
// rows become updates, unknown rows inserts. Row errors are accumulated
// into the summary; the import keeps going.
func ImportCSV(ctx context.Context, db ContactStore, r io.Reader) (*ImportSummary, error) {
	existing, err := db.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*database.Contact, len(existing))
	byKey := make(map[[3]string]*database.Contact, len(existing))
	for _, c := range existing {
		byID[c.ID] = c
		byKey[[3]string{norm(c.PhoneNumber), norm(c.Name), norm(c.Surname)}] = c
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("csv is missing the required 'name' column")
	}
	if _, ok := col["phone_number"]; !ok {
		return nil, fmt.Errorf("csv is missing the required 'phone_number' column")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	summary := &ImportSummary{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		summary.Processed++

		avail := strings.TrimSpace(field(record, "on_call_availability"))
		if avail == "" {
			avail = "[]"
		}
		if !json.Valid([]byte(avail)) {
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: invalid on_call_availability JSON", line))
			continue
		}
		enabled, _ := strconv.ParseBool(field(record, "enabled"))

		c := &database.Contact{
			Name:         field(record, "name"),
			Surname:      field(record, "surname"),
			Address:      field(record, "address"),
			ZipCode:      field(record, "zip_code"),
			City:         field(record, "city"),
			State:        field(record, "state"),
			Country:      field(record, "country"),
			PhoneNumber:  field(record, "phone_number"),
			Availability: json.RawMessage(avail),
			Enabled:      enabled,
			Annotations:  field(record, "annotations"),
		}
		if c.Name == "" || c.PhoneNumber == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: name and phone_number are required", line))
			continue
		}

		var match *database.Contact
		if id := strings.TrimSpace(field(record, "id")); id != "" {
			match = byID[id]
		}
		if match == nil {
			match = byKey[[3]string{norm(c.PhoneNumber), norm(c.Name), norm(c.Surname)}]
		}

		if match != nil {
			c.ID = match.ID
			if _, err := db.UpdateContact(ctx, c); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: update: %v", line, err))
				continue
			}
			summary.Updated++
		} else {
			id, err := db.InsertContact(ctx, c)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: insert: %v", line, err))
				continue
			}
			c.ID = id
			byID[id] = c
			byKey[[3]string{norm(c.PhoneNumber), norm(c.Name), norm(c.Surname)}] = c
			summary.Created++
		}
	}
	return summary, nil
}
