package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Artifacts are canonical telephony audio: 8 kHz, mono, 16-bit PCM.
const (
	TargetSampleRate = 8000
	targetChannels   = 1
	bytesPerSample   = 2
)

var riffMagic = []byte("RIFF")

// EncodeWAV wraps mono 16-bit samples in a canonical RIFF header at the
// target rate.
func EncodeWAV(samples []int16) []byte {
	dataLen := len(samples) * bytesPerSample
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	byteRate := TargetSampleRate * targetChannels * bytesPerSample

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))            // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))             // PCM
	binary.Write(buf, binary.LittleEndian, uint16(targetChannels))
	binary.Write(buf, binary.LittleEndian, uint32(TargetSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(targetChannels*bytesPerSample)) // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))                            // bits per sample
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// DecodeWAV parses a PCM16 WAV payload into interleaved samples plus its
// declared rate and channel count. Only uncompressed 16-bit PCM is accepted;
// that is what every supported synthesis engine emits.
func DecodeWAV(data []byte) (samples []int16, sampleRate, channels int, err error) {
	if len(data) < 12 || !bytes.Equal(data[:4], riffMagic) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, 0, 0, fmt.Errorf("not a RIFF/WAVE payload")
	}

	var fmtSeen bool
	var bitsPerSample int
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8:]
		if chunkLen > len(body) {
			chunkLen = len(body) // tolerate a truncated final chunk
		}
		body = body[:chunkLen]

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, 0, fmt.Errorf("fmt chunk too short: %d bytes", chunkLen)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if bitsPerSample != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported sample width %d (want 16)", bitsPerSample)
			}
			if channels < 1 || channels > 2 {
				return nil, 0, 0, fmt.Errorf("unsupported channel count %d", channels)
			}
			fmtSeen = true
		case "data":
			if !fmtSeen {
				return nil, 0, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			n := chunkLen / bytesPerSample
			samples = make([]int16, n)
			for i := 0; i < n; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(body[i*2 : i*2+2]))
			}
			return samples, sampleRate, channels, nil
		}

		// Chunks are word-aligned.
		pos += 8 + chunkLen + chunkLen%2
	}
	return nil, 0, 0, fmt.Errorf("no data chunk found")
}

// Downmix folds interleaved stereo to mono by averaging the channel pair.
func Downmix(samples []int16, channels int) []int16 {
	if channels != 2 {
		return samples
	}
	out := make([]int16, len(samples)/2)
	for i := range out {
		out[i] = int16((int32(samples[2*i]) + int32(samples[2*i+1])) / 2)
	}
	return out
}

// Resample converts mono samples between rates by linear interpolation.
// Telephony prompts do not warrant a polyphase filter.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	outLen := int(int64(len(samples)) * int64(to) / int64(from))
	if outLen == 0 {
		return nil
	}
	out := make([]int16, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		srcPos := float64(i) * ratio
		j := int(srcPos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := srcPos - float64(j)
		out[i] = int16(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}

// Normalize converts arbitrary PCM16 input to the canonical artifact
// format: mono at the target rate.
func Normalize(samples []int16, sampleRate, channels int) []int16 {
	mono := Downmix(samples, channels)
	return Resample(mono, sampleRate, TargetSampleRate)
}

// ValidArtifact reports whether the file at path is a ready artifact:
// present, non-empty, and starting with the RIFF magic. An in-progress
// temp-file write never satisfies this because artifacts appear by rename.
func ValidArtifact(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := f.Read(head)
	if err != nil || n < 4 {
		return false
	}
	return bytes.Equal(head, riffMagic)
}
