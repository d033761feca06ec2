package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i % 3000)
	}

	wav := EncodeWAV(samples)
	decoded, rate, channels, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != TargetSampleRate {
		t.Errorf("rate = %d, want %d", rate, TargetSampleRate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestDecodeWAVRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not_riff", []byte("OggS....whatever")},
		{"riff_but_not_wave", []byte("RIFF\x04\x00\x00\x00AVI ")},
		{"no_data_chunk", EncodeWAV(nil)[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := DecodeWAV(tt.data); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestResample(t *testing.T) {
	in := make([]int16, 16000) // one second at 16 kHz
	out := Resample(in, 16000, 8000)
	if len(out) != 8000 {
		t.Errorf("16k→8k of 16000 samples = %d, want 8000", len(out))
	}

	same := Resample(in, 8000, 8000)
	if len(same) != len(in) {
		t.Errorf("same-rate resample changed length: %d", len(same))
	}

	up := Resample([]int16{0, 100}, 8000, 16000)
	if len(up) != 4 {
		t.Errorf("upsample length = %d, want 4", len(up))
	}

	if got := Resample(nil, 16000, 8000); len(got) != 0 {
		t.Errorf("resampling nothing produced %d samples", len(got))
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Doubling the rate must land midpoints between neighbours.
	out := Resample([]int16{0, 1000}, 8000, 16000)
	if out[1] != 500 {
		t.Errorf("midpoint = %d, want 500", out[1])
	}
}

func TestDownmix(t *testing.T) {
	stereo := []int16{100, 200, -100, 100}
	mono := Downmix(stereo, 2)
	if len(mono) != 2 || mono[0] != 150 || mono[1] != 0 {
		t.Errorf("Downmix = %v, want [150 0]", mono)
	}

	already := []int16{1, 2, 3}
	if got := Downmix(already, 1); len(got) != 3 {
		t.Errorf("mono input must pass through, got %v", got)
	}
}

func TestValidArtifact(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.wav")
	os.WriteFile(good, EncodeWAV([]int16{1, 2, 3}), 0o644)

	empty := filepath.Join(dir, "empty.wav")
	os.WriteFile(empty, nil, 0o644)

	junk := filepath.Join(dir, "junk.wav")
	os.WriteFile(junk, []byte("in-progress write"), 0o644)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"valid", good, true},
		{"missing", filepath.Join(dir, "nope.wav"), false},
		{"empty", empty, false},
		{"no_riff_magic", junk, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidArtifact(tt.path); got != tt.want {
				t.Errorf("ValidArtifact(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
