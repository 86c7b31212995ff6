package classifier

// Risk levels reported alongside a classification.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// RiskLevel maps a confidence to a coarse risk bucket.
func RiskLevel(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return RiskCritical
	case confidence >= 0.6:
		return RiskHigh
	case confidence >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Normalize scales a raw weighted sum into [0,1]. A saturation of 2.0 means a
// sum of 2.0 or more is full confidence.
func Normalize(sum, saturation float64) float64 {
	if saturation <= 0 {
		return clamp(sum)
	}
	return clamp(sum / saturation)
}

// Blend combines the rule score with an external score.
//
// Formula: candidate = (1-w)*rule + w*external, result = max(rule, candidate)
// The external score can only raise the rule score, never lower it.
func Blend(rule, external, weight float64) float64 {
	w := clamp(weight)
	candidate := (1-w)*rule + w*clamp(external)
	if candidate < rule {
		return clamp(rule)
	}
	return clamp(candidate)
}

// Capped limits a family contribution to its cap.
func Capped(sum, limit float64) float64 {
	if sum > limit {
		return limit
	}
	if sum < 0 {
		return 0
	}
	return sum
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
