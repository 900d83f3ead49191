// Package scoring turns an aggregated snapshot into an overall score and
// eligibility tier using fixed weighted blends.
package scoring

import (
	"math"

	"lectern/internal/aggregate"
	"lectern/pkg/types"
)

// Component weights for the overall blend.
const (
	weightVoiceConfidence = 0.3
	weightVoiceAudibility = 0.4
	weightVoiceClarity    = 0.3

	weightFacialEngagement = 0.6
	weightFacialVariety    = 0.4

	weightTeachingInteraction = 0.4
	weightTeachingExamples    = 0.3
	weightTeachingEngagement  = 0.3

	weightVoice    = 0.4
	weightFacial   = 0.3
	weightTeaching = 0.3
)

// Eligibility thresholds, inclusive on the lower bound of each tier.
const (
	thresholdEligible         = 85.0
	thresholdNeedsImprovement = 70.0
)

// Score computes the overall assessment score in [0,100], rounded to one
// decimal place. Score is pure and deterministic; a nil snapshot is treated
// as an empty session and scored against the neutral baseline.
func Score(snap *types.AggregatedSnapshot) float64 {
	if snap == nil {
		snap = aggregate.DefaultSnapshot("")
	}

	voice := snap.Voice.Confidence*weightVoiceConfidence +
		snap.Voice.Audibility*weightVoiceAudibility +
		snap.Voice.Clarity*weightVoiceClarity

	facial := snap.Facial.EngagementLevel*weightFacialEngagement +
		snap.Facial.ExpressionVariety*weightFacialVariety

	teaching := snap.Teaching.InteractionLevel*weightTeachingInteraction +
		snap.Teaching.ExampleUsage*weightTeachingExamples +
		snap.Teaching.StudentEngagement*weightTeachingEngagement

	overall := voice*weightVoice + facial*weightFacial + teaching*weightTeaching
	return math.Round(overall*10) / 10
}

// Eligibility classifies a final score into its tier.
func Eligibility(score float64) string {
	switch {
	case score >= thresholdEligible:
		return types.EligibilityEligible
	case score >= thresholdNeedsImprovement:
		return types.EligibilityNeedsImprovement
	default:
		return types.EligibilityNotEligible
	}
}
