package analyzer

import (
	"context"

	"lectern/pkg/types"
)

// Fallback values substituted for metrics the client did not supply, matching
// the aggregator's neutral baseline.
var passthroughDefaults = map[string]float64{
	"confidence":         70,
	"volume":             65,
	"clarity":            75,
	"audibility":         80,
	"engagement_level":   70,
	"expression_variety": 65,
}

// Passthrough trusts metric values computed upstream (e.g. in-browser
// analysis) and maps them directly into a sample. Missing metrics fall back
// to the neutral baseline; range enforcement is the aggregator's job.
type Passthrough struct{}

// NewPassthrough creates a passthrough analyzer.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Analyze maps the raw payload's metric maps into a sample.
func (p *Passthrough) Analyze(ctx context.Context, raw types.RawInput) (types.MetricSample, error) {
	emotion := raw.Emotion
	if !types.IsValidEmotion(emotion) {
		emotion = "neutral"
	}

	return types.MetricSample{
		Timestamp: raw.Timestamp,
		Voice: types.VoiceMetrics{
			Confidence: metricOr(raw.AudioData, "confidence"),
			Volume:     metricOr(raw.AudioData, "volume"),
			Clarity:    metricOr(raw.AudioData, "clarity"),
			Audibility: metricOr(raw.AudioData, "audibility"),
		},
		Facial: types.FacialMetrics{
			EngagementLevel:   metricOr(raw.VideoFrame, "engagement_level"),
			ExpressionVariety: metricOr(raw.VideoFrame, "expression_variety"),
			Emotion:           emotion,
		},
	}, nil
}

func metricOr(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return passthroughDefaults[key]
}
