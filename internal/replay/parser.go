package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/decoy/internal/processor"
)

// line is either a whole transcript or a single message record.
type line struct {
	SessionID string              `json:"sessionId"`
	Channel   string              `json:"channel"`
	Messages  []processor.Message `json:"messages"`
	Expected  *Expectation        `json:"expected"`

	Sender    string              `json:"sender"`
	Text      string              `json:"text"`
	Timestamp processor.Timestamp `json:"timestamp"`
}

// ParseFile reads a JSONL file of transcripts. Lines holding a "messages"
// array are whole transcripts; lines holding "text" are single messages
// grouped by sessionId in file order. Records without a sessionId belong to
// a session named after the file. Malformed lines are skipped.
func ParseFile(path string) ([]Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	index := make(map[string]int)
	var out []Transcript

	get := func(id string) *Transcript {
		if id == "" {
			id = fallback
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, Transcript{SessionID: id})
		}
		return &out[i]
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			continue
		}

		switch {
		case len(l.Messages) > 0:
			t := get(strings.TrimSpace(l.SessionID))
			t.Messages = append(t.Messages, l.Messages...)
			mergeHeader(t, l)
		case strings.TrimSpace(l.Text) != "":
			t := get(strings.TrimSpace(l.SessionID))
			t.Messages = append(t.Messages, processor.Message{
				Sender:    l.Sender,
				Text:      l.Text,
				Timestamp: l.Timestamp,
			})
			mergeHeader(t, l)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

func mergeHeader(t *Transcript, l line) {
	if t.Channel == "" {
		t.Channel = l.Channel
	}
	if l.Expected != nil {
		t.Expected = l.Expected
	}
}
