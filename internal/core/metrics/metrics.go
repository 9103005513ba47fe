// Package metrics projects an analysis into a fixed numeric summary.
package metrics

import (
	"hash/fnv"
	"math/rand/v2"
)

// Metrics is the bounded summary shown next to an analysis. Every field is
// in [0,100].
type Metrics struct {
	FinancialImpact int `json:"financialImpact"`
	TimeImpact      int `json:"timeImpact"`
	HealthImpact    int `json:"healthImpact"`
	OverallScore    int `json:"overallScore"`
}

// Projector derives Metrics from an analysis text. Implementations must be
// pure: the same text yields the same Metrics.
type Projector func(analysis string) Metrics

// Placeholder synthesizes metrics until the scoring service returns real
// numbers. Values are drawn from a generator seeded with a hash of the
// analysis text.
func Placeholder(analysis string) Metrics {
	h := fnv.New64a()
	_, _ = h.Write([]byte(analysis))
	seed := h.Sum64()

	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return Metrics{
		FinancialImpact: r.IntN(101),
		TimeImpact:      r.IntN(101),
		HealthImpact:    r.IntN(101),
		OverallScore:    r.IntN(101),
	}
}

// Clamp forces every field into [0,100].
func (m Metrics) Clamp() Metrics {
	return Metrics{
		FinancialImpact: clamp(m.FinancialImpact),
		TimeImpact:      clamp(m.TimeImpact),
		HealthImpact:    clamp(m.HealthImpact),
		OverallScore:    clamp(m.OverallScore),
	}
}

// Verdict maps the overall score to a qualitative verdict.
func (m Metrics) Verdict() Verdict {
	return VerdictFor(m.OverallScore)
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}

// Verdict is the qualitative reading of an overall score.
type Verdict string

const (
	VerdictBeneficial Verdict = "beneficial"
	VerdictMixed      Verdict = "mixed"
	VerdictNegative   Verdict = "significant negative impact"
)

// VerdictFor applies the fixed thresholds: above 70 is beneficial, 40 to 70
// is mixed and below 40 is a significant negative impact.
func VerdictFor(score int) Verdict {
	switch {
	case score > 70:
		return VerdictBeneficial
	case score >= 40:
		return VerdictMixed
	default:
		return VerdictNegative
	}
}

// Summary is the sentence shown under the score.
func (v Verdict) Summary() string {
	switch v {
	case VerdictBeneficial:
		return "This decision appears to be beneficial overall."
	case VerdictMixed:
		return "This decision has mixed impacts to consider."
	default:
		return "This decision may have significant negative impacts."
	}
}
