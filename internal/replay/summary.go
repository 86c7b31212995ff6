package replay

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// Summary aggregates outcomes. The confusion counts only cover labelled
// transcripts.
type Summary struct {
	Transcripts    int
	Messages       int
	Detected       int
	ReportsDue     int
	IntelItems     int
	Errors         int
	Labelled       int
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	TypeMatches    int
	ByType         map[string]int
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{ByType: make(map[string]int)}
	for _, o := range outcomes {
		s.Transcripts++
		s.Messages += o.Inbound
		s.IntelItems += o.IntelItems
		if o.Err != "" {
			s.Errors++
		}
		if o.ScamDetected {
			s.Detected++
			s.ByType[o.ScamType]++
		}
		if o.ReportStatus == session.ReportPending || o.ReportStatus == session.ReportSent {
			s.ReportsDue++
		}
		if o.Expected == nil {
			continue
		}
		s.Labelled++
		switch {
		case o.ScamDetected && o.Expected.ScamDetected:
			s.TruePositives++
			if o.Expected.ScamType == "" || strings.EqualFold(o.Expected.ScamType, o.ScamType) {
				s.TypeMatches++
			}
		case o.ScamDetected:
			s.FalsePositives++
		case o.Expected.ScamDetected:
			s.FalseNegatives++
		default:
			s.TrueNegatives++
		}
	}
	return s
}

// Precision is TP/(TP+FP), or 0 with no positives.
func (s Summary) Precision() float64 {
	return ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
}

// Recall is TP/(TP+FN), or 0 with no labelled scams.
func (s Summary) Recall() float64 {
	return ratio(s.TruePositives, s.TruePositives+s.FalseNegatives)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// FormatSummary renders outcomes grouped by source file.
func FormatSummary(outcomes []Outcome) string {
	byFile := make(map[string][]Outcome)
	for _, o := range outcomes {
		byFile[o.Path] = append(byFile[o.Path], o)
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var sb strings.Builder
	sb.WriteString("Replay Summary\n")

	for _, f := range files {
		group := byFile[f]
		detected := 0
		for _, o := range group {
			if o.ScamDetected {
				detected++
			}
		}
		fmt.Fprintf(&sb, "\n%s (%d transcripts, %d scams)\n", filepath.Base(f), len(group), detected)
		for _, o := range group {
			fmt.Fprintf(&sb, "  - %s: %d msgs", o.SessionID, o.Inbound)
			if o.ScamDetected {
				fmt.Fprintf(&sb, ", %s %.2f at turn %d", o.ScamType, o.Confidence, o.DetectedAt)
			} else {
				sb.WriteString(", no scam")
			}
			if o.IntelItems > 0 {
				fmt.Fprintf(&sb, ", %d intel [%s]", o.IntelItems, strings.Join(o.Categories, ","))
			}
			if o.ReportStatus != "" {
				fmt.Fprintf(&sb, ", report %s", o.ReportStatus)
			}
			if o.Expected != nil && o.Expected.ScamDetected != o.ScamDetected {
				sb.WriteString(" MISMATCH")
			}
			if o.Err != "" {
				fmt.Fprintf(&sb, " (error: %s)", o.Err)
			}
			sb.WriteString("\n")
		}
	}

	s := Summarize(outcomes)
	fmt.Fprintf(&sb, "\nTotal: %d transcripts, %d messages, %d scams, %d intel items, %d reports due\n",
		s.Transcripts, s.Messages, s.Detected, s.IntelItems, s.ReportsDue)
	if s.Labelled > 0 {
		fmt.Fprintf(&sb, "Labelled: %d (tp %d, fp %d, tn %d, fn %d) precision %.2f recall %.2f, type matches %d\n",
			s.Labelled, s.TruePositives, s.FalsePositives, s.TrueNegatives, s.FalseNegatives,
			s.Precision(), s.Recall(), s.TypeMatches)
	}
	return sb.String()
}
