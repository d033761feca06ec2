package checksum

import (
	"testing"
	"time"
)

func TestCallDeterministic(t *testing.T) {
	a := Call("+15550001", "fire")
	b := Call("+15550001", "fire")
	if a != b {
		t.Errorf("Call not deterministic: %q vs %q", a, b)
	}
}

func TestDigestShape(t *testing.T) {
	tests := []struct {
		name string
		sum  string
	}{
		{"call", Call("+15550001", "fire")},
		{"message", Message("fire")},
		{"unique", Unique("+15550001", "fire", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))},
		{"empty_message", Message("")},
		{"unicode", Message("serveur hors-ligne — càblage")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.sum) != 8 {
				t.Errorf("digest %q has length %d, want 8 hex chars (4 bytes)", tt.sum, len(tt.sum))
			}
			for _, c := range tt.sum {
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					t.Errorf("digest %q contains non-hex char %q", tt.sum, c)
				}
			}
		})
	}
}

func TestDistinctInputsDistinctSums(t *testing.T) {
	pairs := [][2]string{
		{Call("+15550001", "fire"), Call("+15550002", "fire")},
		{Call("+15550001", "fire"), Call("+15550001", "flood")},
		{Message("fire"), Message("flood")},
		{Message("fire"), Call("+15550001", "fire")},
	}
	for i, p := range pairs {
		if p[0] == p[1] {
			t.Errorf("pair %d: expected distinct sums, both %q", i, p[0])
		}
	}
}

func TestUniqueVariesWithFirstDial(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Unique("+15550001", "fire", t0)
	b := Unique("+15550001", "fire", t0.Add(time.Microsecond))
	if a == b {
		t.Errorf("Unique should change with first_dial, got %q for both", a)
	}
	if Unique("+15550001", "fire", t0) != a {
		t.Errorf("Unique not deterministic for the same first_dial")
	}
}
