package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint identifies a transcript by its normalized counterparty text, so
// the same conversation exported twice under different ids replays once.
func Fingerprint(t Transcript) string {
	h := sha256.New()
	for _, m := range t.Counterparty() {
		h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(m.Text)), " ")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Dedup drops transcripts whose fingerprint is already in seen and records
// the rest.
func Dedup(ts []Transcript, seen map[string]bool) (kept []Transcript, dropped int) {
	for _, t := range ts {
		fp := Fingerprint(t)
		if seen[fp] {
			dropped++
			continue
		}
		seen[fp] = true
		kept = append(kept, t)
	}
	return kept, dropped
}
