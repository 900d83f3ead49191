// Package recommend derives prioritized improvement recommendations from a
// session's aggregated snapshot using a fixed, ordered rule table.
package recommend

import (
	"lectern/pkg/types"
)

// rule is one independently evaluated threshold check. A rule fires when its
// metric falls below the threshold; firing rules are emitted in table order.
type rule struct {
	metric    func(*types.AggregatedSnapshot) float64
	threshold float64
	rec       types.Recommendation
}

var rules = []rule{
	{
		metric:    func(s *types.AggregatedSnapshot) float64 { return s.Voice.Confidence },
		threshold: 70,
		rec: types.Recommendation{
			Category:    types.CategoryVoice,
			Priority:    types.PriorityHigh,
			Title:       "Improve Voice Confidence",
			Description: "Practice speaking exercises and breathing techniques to build confidence.",
		},
	},
	{
		metric:    func(s *types.AggregatedSnapshot) float64 { return s.Voice.Audibility },
		threshold: 75,
		rec: types.Recommendation{
			Category:    types.CategoryVoice,
			Priority:    types.PriorityHigh,
			Title:       "Enhance Voice Projection",
			Description: "Work on projecting your voice to ensure all students can hear clearly.",
		},
	},
	{
		metric:    func(s *types.AggregatedSnapshot) float64 { return s.Facial.EngagementLevel },
		threshold: 70,
		rec: types.Recommendation{
			Category:    types.CategoryEngagement,
			Priority:    types.PriorityMedium,
			Title:       "Increase Facial Expressiveness",
			Description: "Use more facial expressions and gestures to engage students.",
		},
	},
	{
		metric:    func(s *types.AggregatedSnapshot) float64 { return s.Teaching.InteractionLevel },
		threshold: 80,
		rec: types.Recommendation{
			Category:    types.CategoryTeaching,
			Priority:    types.PriorityMedium,
			Title:       "Increase Student Interaction",
			Description: "Ask more questions and encourage student participation.",
		},
	},
	{
		metric:    func(s *types.AggregatedSnapshot) float64 { return s.Teaching.ExampleUsage },
		threshold: 75,
		rec: types.Recommendation{
			Category:    types.CategoryTeaching,
			Priority:    types.PriorityLow,
			Title:       "Use More Examples",
			Description: "Include more real-world examples to illustrate concepts.",
		},
	},
}

// Recommend evaluates every rule against the snapshot and returns the firing
// recommendations in rule order. Rules are not mutually exclusive. When no
// rule fires the result is an empty slice; no placeholder message is
// synthesized.
func Recommend(snap *types.AggregatedSnapshot) []types.Recommendation {
	recs := make([]types.Recommendation, 0, len(rules))
	if snap == nil {
		return recs
	}

	for _, r := range rules {
		if r.metric(snap) < r.threshold {
			recs = append(recs, r.rec)
		}
	}
	return recs
}
