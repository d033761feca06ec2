// Package checksum produces the short content hashes that name call cycles,
// voice messages, and audio artifacts. All three use Blake2b with a 4-byte
// digest over UTF-8 input, hex-encoded; inputs are concatenated without a
// separator.
package checksum

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

const digestSize = 4

func sum(parts ...string) string {
	h, _ := blake2b.New(digestSize, nil)
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Call identifies a (phone, message) pair: the deduplication key of a cycle.
func Call(phone, message string) string {
	return sum(phone, message)
}

// Message identifies the message text alone; it names the audio artifact.
func Message(message string) string {
	return sum(message)
}

// Unique identifies one attempt-sequence by folding in the first dial time.
func Unique(phone, message string, firstDial time.Time) string {
	return sum(phone, message, firstDial.UTC().Format("2006-01-02 15:04:05.000000"))
}
