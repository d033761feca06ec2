// Package addressbook manages contacts and resolves the "oncall" alias to
// an ordered list of currently reachable people.
package addressbook

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/snarg/call-engine/internal/database"
)

// Window is one on-call availability slot. Lower priority wins.
type Window struct {
	StartAt  string `json:"start_at"`
	EndAt    string `json:"end_at"`
	Priority int    `json:"priority"`
}

// OnCallContact is one resolved entry of the on-call roster.
type OnCallContact struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	PhoneNumber string    `json:"phone_number"`
	CreatedTime time.Time `json:"created_time"`
	Priority    int       `json:"priority"`
}

// parseWindows decodes a contact's availability JSON, dropping malformed or
// inverted entries instead of failing the whole contact.
func parseWindows(raw json.RawMessage) []parsedWindow {
	var items []Window
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []parsedWindow
	for _, w := range items {
		start, ok1 := parseISOUTC(w.StartAt)
		end, ok2 := parseISOUTC(w.EndAt)
		if !ok1 || !ok2 || start.After(end) {
			continue
		}
		out = append(out, parsedWindow{start: start, end: end, priority: w.Priority})
	}
	return out
}

type parsedWindow struct {
	start, end time.Time
	priority   int
}

// parseISOUTC accepts RFC 3339 timestamps (Zulu suffix included) and naive
// timestamps, which are taken as UTC.
func parseISOUTC(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type rosterEntry struct {
	contact     OnCallContact
	windowStart time.Time
}

// Roster resolves the contacts on call at time t, in escalation order:
// priority first, then the earliest matching window start, then contact
// creation time, then name. The head of the list is the primary; the rest
// are backups.
func Roster(contacts []*database.Contact, t time.Time) []OnCallContact {
	t = t.UTC()
	var entries []rosterEntry
	for _, c := range contacts {
		if !c.Enabled {
			continue
		}
		for _, w := range parseWindows(c.Availability) {
			if w.start.After(t) || w.end.Before(t) {
				continue
			}
			entries = append(entries, rosterEntry{
				contact: OnCallContact{
					ID:          c.ID,
					Name:        c.Name,
					Surname:     c.Surname,
					PhoneNumber: c.PhoneNumber,
					CreatedTime: c.CreatedTime,
					Priority:    w.priority,
				},
				windowStart: w.start,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.contact.Priority != b.contact.Priority {
			return a.contact.Priority < b.contact.Priority
		}
		if !a.windowStart.Equal(b.windowStart) {
			return a.windowStart.Before(b.windowStart)
		}
		if !a.contact.CreatedTime.Equal(b.contact.CreatedTime) {
			return a.contact.CreatedTime.Before(b.contact.CreatedTime)
		}
		return a.contact.Name+a.contact.Surname < b.contact.Name+b.contact.Surname
	})

	out := make([]OnCallContact, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		// A contact with several matching windows appears once, at its
		// best-ranked position.
		if seen[e.contact.ID] {
			continue
		}
		seen[e.contact.ID] = true
		out = append(out, e.contact)
	}
	return out
}
