package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
)

const classifyPrompt = `You review a single text message sent to a member of the public and decide whether it is part of a scam.
Reply with JSON only, no prose:
{"is_scam": true|false, "confidence": 0.0-1.0, "scam_type": "...", "risk_level": "low|medium|high|critical", "indicators": ["..."]}
scam_type is one of: phishing, kyc, threat, impersonation, investment, lottery, bank_fraud, upi_fraud, other, none.`

// labelFamilies maps the model's scam_type vocabulary onto indicator families.
var labelFamilies = map[string]patterns.Family{
	"phishing":      patterns.FamilyPhishing,
	"bank_fraud":    patterns.FamilyPhishing,
	"upi_fraud":     patterns.FamilyPhishing,
	"kyc":           patterns.FamilyKYC,
	"kyc_fraud":     patterns.FamilyKYC,
	"threat":        patterns.FamilyThreat,
	"impersonation": patterns.FamilyThreat,
	"investment":    patterns.FamilyInvestment,
	"lottery":       patterns.FamilyLottery,
	"prize":         patterns.FamilyLottery,
}

type verdict struct {
	IsScam     bool     `json:"is_scam"`
	Confidence float64  `json:"confidence"`
	ScamType   string   `json:"scam_type"`
	RiskLevel  string   `json:"risk_level"`
	Indicators []string `json:"indicators"`
}

// ScamClassifier asks a model for a second opinion on a message.
type ScamClassifier struct {
	c         Completer
	threshold float64
	logger    *slog.Logger
}

// NewScamClassifier creates a classifier whose labels are pinned to the
// given side of threshold, the engine's scam-positive confidence.
func NewScamClassifier(c Completer, threshold float64, logger *slog.Logger) *ScamClassifier {
	if threshold <= 0 || threshold > 1 {
		threshold = classifier.DefaultConfig().Threshold
	}
	return &ScamClassifier{c: c, threshold: threshold, logger: logger}
}

// Classify returns the model's label. A benign verdict never reaches the
// scam threshold and a scam verdict never falls below it.
func (s *ScamClassifier) Classify(ctx context.Context, text string) (classifier.Label, error) {
	raw, err := s.c.Complete(ctx, classifyPrompt, []Message{{Role: RoleUser, Content: text}}, Options{MaxTokens: 550})
	if err != nil {
		return classifier.Label{}, fmt.Errorf("classify: %w", err)
	}

	var v verdict
	if err := json.Unmarshal([]byte(extractJSON(raw)), &v); err != nil {
		return classifier.Label{}, fmt.Errorf("parse classification: %w", err)
	}

	label := classifier.Label{Scam: v.IsScam, Confidence: v.Confidence}
	if v.IsScam {
		if label.Confidence < s.threshold {
			label.Confidence = s.threshold
		}
		if f, ok := labelFamilies[strings.ToLower(strings.TrimSpace(v.ScamType))]; ok {
			label.ScamType = string(f)
		}
	} else if ceiling := math.Max(0, s.threshold-0.01); label.Confidence > ceiling {
		label.Confidence = ceiling
	}

	s.logger.Debug("external classification",
		"scam", label.Scam,
		"scam_type", label.ScamType,
		"confidence", label.Confidence,
		"indicators", v.Indicators,
	)
	return label, nil
}

var _ classifier.External = (*ScamClassifier)(nil)
