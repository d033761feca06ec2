package addressbook

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/snarg/call-engine/internal/database"
)

func contact(id, name, surname, phone string, created time.Time, enabled bool, windows string) *database.Contact {
	return &database.Contact{
		ID: id, Name: name, Surname: surname, PhoneNumber: phone,
		CreatedTime: created, Enabled: enabled,
		Availability: json.RawMessage(windows),
	}
}

func window(start, end string, priority int) string {
	return fmt.Sprintf(`{"start_at":"%s","end_at":"%s","priority":%d}`, start, end, priority)
}

func TestRosterOrdering(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := window("2024-06-10T00:00:00Z", "2024-06-10T23:59:00Z", 1)

	contacts := []*database.Contact{
		contact("c1", "Carol", "Young", "+3", created, true, "["+window("2024-06-10T00:00:00Z", "2024-06-10T23:59:00Z", 2)+"]"),
		contact("c2", "Alice", "Prim", "+1", created, true, "["+day+"]"),
		contact("c3", "Bob", "Second", "+2", created.Add(time.Hour), true, "["+day+"]"),
	}

	roster := Roster(contacts, now)
	if len(roster) != 3 {
		t.Fatalf("roster has %d entries, want 3", len(roster))
	}
	// Priority 1 before priority 2; equal priority ordered by created_time.
	want := []string{"+1", "+2", "+3"}
	for i, phone := range want {
		if roster[i].PhoneNumber != phone {
			t.Errorf("roster[%d] = %s, want %s", i, roster[i].PhoneNumber, phone)
		}
	}
}

func TestRosterWindowStartBreaksTies(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	contacts := []*database.Contact{
		contact("late", "Zoe", "Late", "+9", created, true,
			"["+window("2024-06-10T08:00:00Z", "2024-06-10T23:00:00Z", 1)+"]"),
		contact("early", "Amy", "Early", "+8", created, true,
			"["+window("2024-06-10T00:00:00Z", "2024-06-10T23:00:00Z", 1)+"]"),
	}
	roster := Roster(contacts, now)
	if roster[0].PhoneNumber != "+8" {
		t.Errorf("earlier window start should rank first, got %s", roster[0].PhoneNumber)
	}
}

func TestRosterNameBreaksFinalTie(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := window("2024-06-10T00:00:00Z", "2024-06-10T23:00:00Z", 1)

	contacts := []*database.Contact{
		contact("b", "Bruno", "B", "+2", created, true, "["+day+"]"),
		contact("a", "Anna", "A", "+1", created, true, "["+day+"]"),
	}
	roster := Roster(contacts, now)
	if roster[0].Name != "Anna" {
		t.Errorf("name+surname tiebreak failed, got %s first", roster[0].Name)
	}
}

func TestRosterFiltering(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		contact *database.Contact
		wantIn  bool
	}{
		{
			"disabled_excluded",
			contact("d", "Dan", "Off", "+4", created, false,
				"["+window("2024-06-10T00:00:00Z", "2024-06-10T23:00:00Z", 1)+"]"),
			false,
		},
		{
			"window_in_the_past",
			contact("p", "Pam", "Past", "+5", created, true,
				"["+window("2024-06-09T00:00:00Z", "2024-06-09T23:00:00Z", 1)+"]"),
			false,
		},
		{
			"window_in_the_future",
			contact("f", "Fred", "Future", "+6", created, true,
				"["+window("2024-06-11T00:00:00Z", "2024-06-11T23:00:00Z", 1)+"]"),
			false,
		},
		{
			"window_boundary_inclusive",
			contact("b", "Ben", "Boundary", "+7", created, true,
				"["+window("2024-06-10T12:00:00Z", "2024-06-10T13:00:00Z", 1)+"]"),
			true,
		},
		{
			"inverted_window_dropped",
			contact("i", "Ivy", "Inv", "+8", created, true,
				"["+window("2024-06-10T23:00:00Z", "2024-06-10T00:00:00Z", 1)+"]"),
			false,
		},
		{
			"malformed_availability",
			contact("m", "Mal", "Formed", "+9", created, true, `{"not":"a list"}`),
			false,
		},
		{
			"naive_timestamps_taken_as_utc",
			contact("n", "Nia", "Naive", "+10", created, true,
				`[{"start_at":"2024-06-10 00:00:00","end_at":"2024-06-10 23:00:00","priority":1}]`),
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roster := Roster([]*database.Contact{tt.contact}, now)
			if got := len(roster) == 1; got != tt.wantIn {
				t.Errorf("included = %v, want %v", got, tt.wantIn)
			}
		})
	}
}

func TestRosterDeduplicatesContacts(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Two matching windows; the contact must appear once, at its best rank.
	c := contact("x", "Xen", "Twice", "+1", created, true,
		"["+window("2024-06-10T00:00:00Z", "2024-06-10T23:00:00Z", 2)+","+
			window("2024-06-10T11:00:00Z", "2024-06-10T13:00:00Z", 1)+"]")

	roster := Roster([]*database.Contact{c}, now)
	if len(roster) != 1 {
		t.Fatalf("roster has %d entries, want 1", len(roster))
	}
	if roster[0].Priority != 1 {
		t.Errorf("kept priority %d, want the best-ranked window (1)", roster[0].Priority)
	}
}
