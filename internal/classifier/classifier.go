package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/decoy/internal/patterns"
)

// Generic is the scam type when no typed indicator family matched.
const Generic = "generic"

// ErrUnavailable marks a failed or timed-out external classification.
var ErrUnavailable = errors.New("classification unavailable")

// Label is an external classifier's verdict on one message.
type Label struct {
	Scam       bool
	ScamType   string
	Confidence float64
}

// External is an optional text classifier consulted to raise confidence.
type External interface {
	Classify(ctx context.Context, text string) (Label, error)
}

type Config struct {
	Threshold       float64       // scam-positive at or above this confidence
	Saturation      float64       // raw sum that maps to confidence 1.0
	ExternalWeight  float64       // w in the blend, 0..1
	ExternalTimeout time.Duration // bound on the external call
}

func DefaultConfig() Config {
	return Config{
		Threshold:       0.4,
		Saturation:      2.0,
		ExternalWeight:  1.0,
		ExternalTimeout: 8 * time.Second,
	}
}

// Result is the classification of one message in context.
type Result struct {
	ScamType      string                      `json:"scam_type"`
	Confidence    float64                     `json:"confidence"`
	RuleScore     float64                     `json:"rule_score"`
	Indicators    []string                    `json:"indicators"`
	RiskLevel     string                      `json:"risk_level"`
	Scam          bool                        `json:"scam"`
	External      bool                        `json:"external"`
	Dominant      patterns.Family             `json:"dominant,omitempty"`
	Contributions map[patterns.Family]float64 `json:"contributions,omitempty"`
}

type Classifier struct {
	lib      *patterns.Library
	external External
	cfg      Config
	logger   *slog.Logger
}

// New creates a classifier. external may be nil, in which case rule scoring
// alone decides.
func New(lib *patterns.Library, external External, cfg Config, logger *slog.Logger) *Classifier {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Saturation <= 0 {
		cfg.Saturation = def.Saturation
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = def.ExternalTimeout
	}
	cfg.ExternalWeight = clamp(cfg.ExternalWeight)
	return &Classifier{lib: lib, external: external, cfg: cfg, logger: logger}
}

// Threshold returns the scam-positive confidence threshold.
func (c *Classifier) Threshold() float64 {
	return c.cfg.Threshold
}

// Classify scores message against the indicator families, with history used
// for the escalation signal. It never fails: an external classifier error
// leaves the rule score authoritative.
func (c *Classifier) Classify(ctx context.Context, message string, history []string) Result {
	res := c.score(message, history)

	if c.external == nil {
		return res
	}

	label, err := c.consult(ctx, message)
	if err != nil {
		c.logger.Warn("external classifier failed, using rule score",
			"error", err,
			"rule_confidence", res.Confidence,
		)
		return res
	}

	ext := 0.0
	if label.Scam {
		ext = label.Confidence
	}
	blended := Blend(res.RuleScore, ext, c.cfg.ExternalWeight)
	if blended > res.Confidence {
		res.Confidence = blended
		res.External = true
	}
	if res.ScamType == Generic && label.Scam && c.lib.IsTyped(patterns.Family(label.ScamType)) {
		res.ScamType = label.ScamType
		res.External = true
	}
	res.Scam = res.Confidence >= c.cfg.Threshold
	res.RiskLevel = RiskLevel(res.Confidence)
	return res
}

// Score returns the rule-based classification only.
func (c *Classifier) Score(message string, history []string) Result {
	return c.score(message, history)
}

func (c *Classifier) consult(ctx context.Context, message string) (Label, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExternalTimeout)
	defer cancel()

	label, err := c.external.Classify(ctx, message)
	if err != nil {
		return Label{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	label.Confidence = clamp(label.Confidence)
	return label, nil
}

func (c *Classifier) score(message string, history []string) Result {
	raw := make(map[patterns.Family]float64)
	var indicators []string

	for _, h := range c.lib.Keywords(message) {
		raw[h.Family] += h.Weight
		indicators = append(indicators, h.Phrase)
	}

	addSignal := func(name string) {
		if s, ok := c.lib.Signal(name); ok {
			raw[s.Family] += s.Weight
			indicators = append(indicators, "signal:"+name)
		}
	}
	for _, u := range c.lib.URLs(message) {
		if u.Phishing {
			addSignal("phishing_url")
			break
		}
	}
	if len(c.lib.PaymentHandles(message)) > 0 {
		addSignal("payment_handle")
	}
	if len(c.lib.BankAccounts(message)) > 0 {
		addSignal("bank_account")
	}
	if c.lib.Escalating(history) {
		addSignal("escalation")
	}

	contrib := make(map[patterns.Family]float64, len(raw))
	sum := 0.0
	for f, v := range raw {
		capped := Capped(v, c.lib.FamilyCap(f))
		contrib[f] = capped
		sum += capped
	}

	dominant := dominantFamily(contrib)
	scamType := Generic
	if dominant != "" {
		scamType = string(dominant)
	}

	conf := Normalize(sum, c.cfg.Saturation)
	return Result{
		ScamType:      scamType,
		Confidence:    conf,
		RuleScore:     conf,
		Indicators:    indicators,
		RiskLevel:     RiskLevel(conf),
		Scam:          conf >= c.cfg.Threshold,
		Dominant:      dominant,
		Contributions: contrib,
	}
}

// dominantFamily picks the typed family with the highest contribution.
// Iterating in priority order with a strict comparison resolves ties.
func dominantFamily(contrib map[patterns.Family]float64) patterns.Family {
	var best patterns.Family
	bestScore := 0.0
	for _, f := range patterns.TypedFamilies {
		if v := contrib[f]; v > bestScore {
			best, bestScore = f, v
		}
	}
	return best
}
