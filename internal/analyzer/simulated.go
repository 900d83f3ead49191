// Package analyzer provides SignalAnalyzer implementations: a simulated
// generator standing in for real sensor processing, and a passthrough that
// trusts metrics computed upstream. The pipeline is agnostic to which one is
// plugged in.
package analyzer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"lectern/pkg/types"
)

// Simulation ranges: each metric is drawn uniformly from [base, base+spread].
const (
	simConfidenceBase, simConfidenceSpread = 70, 25
	simVolumeBase, simVolumeSpread         = 65, 30
	simClarityBase, simClaritySpread       = 75, 20
	simAudibilityBase, simAudibilitySpread = 80, 15
	simEngagementBase, simEngagementSpread = 70, 25
	simVarietyBase, simVarietySpread       = 65, 30
)

// Simulated generates plausible metric samples without touching the raw
// input. It stands in for a real audio/video model during development and
// load testing.
type Simulated struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated analyzer. A non-zero seed makes the
// sequence reproducible; seed 0 seeds from the clock.
func NewSimulated(seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{rnd: rand.New(rand.NewSource(seed))}
}

// Analyze produces one simulated sample. The raw payload is ignored except
// for its timestamp.
func (s *Simulated) Analyze(ctx context.Context, raw types.RawInput) (types.MetricSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.MetricSample{
		Timestamp: raw.Timestamp,
		Voice: types.VoiceMetrics{
			Confidence: s.draw(simConfidenceBase, simConfidenceSpread),
			Volume:     s.draw(simVolumeBase, simVolumeSpread),
			Clarity:    s.draw(simClarityBase, simClaritySpread),
			Audibility: s.draw(simAudibilityBase, simAudibilitySpread),
		},
		Facial: types.FacialMetrics{
			EngagementLevel:   s.draw(simEngagementBase, simEngagementSpread),
			ExpressionVariety: s.draw(simVarietyBase, simVarietySpread),
			Emotion:           types.Emotions[s.rnd.Intn(len(types.Emotions))],
		},
	}, nil
}

// draw returns base + r*spread rounded to one decimal, matching the
// resolution real metric sources report at.
func (s *Simulated) draw(base, spread float64) float64 {
	v := base + s.rnd.Float64()*spread
	return float64(int(v*10+0.5)) / 10
}
