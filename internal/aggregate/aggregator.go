package aggregate

import (
	"time"

	"lectern/pkg/types"
)

// Metric names used as keys in AggregatedSnapshot.Stats.
const (
	MetricConfidence        = "voice.confidence"
	MetricVolume            = "voice.volume"
	MetricClarity           = "voice.clarity"
	MetricAudibility        = "voice.audibility"
	MetricEngagementLevel   = "facial.engagement_level"
	MetricExpressionVariety = "facial.expression_variety"
)

// Neutral baseline reported for a session before any sample has arrived.
// Callers must never crash on an empty session, so Snapshot falls back to
// these instead of failing.
const (
	defaultConfidence = 70.0
	defaultVolume     = 65.0
	defaultClarity    = 75.0
	defaultAudibility = 80.0
	defaultEngagement = 70.0
	defaultVariety    = 65.0
	defaultEmotion    = "neutral"
)

// runningStat maintains sufficient statistics for one numeric metric. No raw
// history is retained; the mean uses the incremental update formula.
type runningStat struct {
	mean float64
	min  float64
	max  float64
}

func (s *runningStat) add(v float64, n int) {
	if n == 1 {
		s.mean, s.min, s.max = v, v, v
		return
	}
	s.mean += (v - s.mean) / float64(n)
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
}

// Aggregator owns the running statistics for one session. It performs no I/O
// and is not safe for concurrent use; the session registry serializes all
// mutations of one session behind its per-session handle.
type Aggregator struct {
	sessionID string
	count     int

	confidence runningStat
	volume     runningStat
	clarity    runningStat
	audibility runningStat
	engagement runningStat
	variety    runningStat

	emotionCounts map[string]int
	finalized     bool
	updatedAt     time.Time
}

// New creates an empty aggregator for the given session.
func New(sessionID string) *Aggregator {
	return &Aggregator{
		sessionID:     sessionID,
		emotionCounts: make(map[string]int),
	}
}

// Ingest folds one sample into the running statistics and returns the updated
// snapshot. All numeric values are clamped to [0,100] before they touch the
// aggregate. Ingest after Finalize fails with ErrSessionFinalized.
func (a *Aggregator) Ingest(sample types.MetricSample) (*types.AggregatedSnapshot, error) {
	if a.finalized {
		return nil, ErrSessionFinalized
	}

	a.count++
	n := a.count

	a.confidence.add(types.ClampMetric(sample.Voice.Confidence), n)
	a.volume.add(types.ClampMetric(sample.Voice.Volume), n)
	a.clarity.add(types.ClampMetric(sample.Voice.Clarity), n)
	a.audibility.add(types.ClampMetric(sample.Voice.Audibility), n)
	a.engagement.add(types.ClampMetric(sample.Facial.EngagementLevel), n)
	a.variety.add(types.ClampMetric(sample.Facial.ExpressionVariety), n)

	// Labels outside the fixed vocabulary are dropped rather than aggregated.
	if types.IsValidEmotion(sample.Facial.Emotion) {
		a.emotionCounts[sample.Facial.Emotion]++
	}

	if sample.Timestamp.IsZero() {
		a.updatedAt = time.Now()
	} else {
		a.updatedAt = sample.Timestamp
	}

	return a.Snapshot(), nil
}

// Snapshot returns the current aggregate. With no ingested samples it returns
// the neutral-baseline default snapshot rather than failing.
func (a *Aggregator) Snapshot() *types.AggregatedSnapshot {
	if a.count == 0 {
		return DefaultSnapshot(a.sessionID)
	}

	voice := types.VoiceMetrics{
		Confidence: a.confidence.mean,
		Volume:     a.volume.mean,
		Clarity:    a.clarity.mean,
		Audibility: a.audibility.mean,
	}
	facial := types.FacialMetrics{
		EngagementLevel:   a.engagement.mean,
		ExpressionVariety: a.variety.mean,
		Emotion:           a.dominantEmotion(),
	}

	return &types.AggregatedSnapshot{
		SessionID:   a.sessionID,
		SampleCount: a.count,
		Voice:       voice,
		Facial:      facial,
		Teaching:    DeriveTeachingMetrics(voice, facial),
		Stats: map[string]types.MetricStat{
			MetricConfidence:        {Mean: a.confidence.mean, Min: a.confidence.min, Max: a.confidence.max},
			MetricVolume:            {Mean: a.volume.mean, Min: a.volume.min, Max: a.volume.max},
			MetricClarity:           {Mean: a.clarity.mean, Min: a.clarity.min, Max: a.clarity.max},
			MetricAudibility:        {Mean: a.audibility.mean, Min: a.audibility.min, Max: a.audibility.max},
			MetricEngagementLevel:   {Mean: a.engagement.mean, Min: a.engagement.min, Max: a.engagement.max},
			MetricExpressionVariety: {Mean: a.variety.mean, Min: a.variety.min, Max: a.variety.max},
		},
		UpdatedAt: a.updatedAt,
	}
}

// Finalize freezes the aggregate and returns the final snapshot. Subsequent
// Ingest calls fail with ErrSessionFinalized; Finalize itself is idempotent.
func (a *Aggregator) Finalize() *types.AggregatedSnapshot {
	a.finalized = true
	return a.Snapshot()
}

// Count returns the number of samples ingested so far.
func (a *Aggregator) Count() int {
	return a.count
}

// Finalized reports whether Finalize has been called.
func (a *Aggregator) Finalized() bool {
	return a.finalized
}

// dominantEmotion returns the most frequently observed emotion label. Ties
// resolve in vocabulary order so the result is deterministic.
func (a *Aggregator) dominantEmotion() string {
	best := defaultEmotion
	bestCount := 0
	for _, e := range types.Emotions {
		if c := a.emotionCounts[e]; c > bestCount {
			best, bestCount = e, c
		}
	}
	return best
}

// DeriveTeachingMetrics computes the secondary teaching metrics from voice
// and facial running means using the fixed linear blend.
func DeriveTeachingMetrics(voice types.VoiceMetrics, facial types.FacialMetrics) types.TeachingMetrics {
	return types.TeachingMetrics{
		InteractionLevel:  types.ClampMetric((voice.Confidence + facial.EngagementLevel) / 2),
		ExampleUsage:      types.ClampMetric(voice.Clarity + 20),
		StudentEngagement: types.ClampMetric(facial.EngagementLevel + 15),
	}
}

// DefaultSnapshot returns the neutral-baseline snapshot used for sessions
// with no ingested samples.
func DefaultSnapshot(sessionID string) *types.AggregatedSnapshot {
	voice := types.VoiceMetrics{
		Confidence: defaultConfidence,
		Volume:     defaultVolume,
		Clarity:    defaultClarity,
		Audibility: defaultAudibility,
	}
	facial := types.FacialMetrics{
		EngagementLevel:   defaultEngagement,
		ExpressionVariety: defaultVariety,
		Emotion:           defaultEmotion,
	}

	return &types.AggregatedSnapshot{
		SessionID: sessionID,
		Voice:     voice,
		Facial:    facial,
		Teaching:  DeriveTeachingMetrics(voice, facial),
	}
}
