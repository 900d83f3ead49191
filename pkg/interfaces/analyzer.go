package interfaces

import (
	"context"
	"lectern/pkg/types"
)

// SignalAnalyzer turns raw sensor input into a metric sample. Implementations
// may be a deterministic test double, a simulated generator, or a real
// sensor-processing pipeline; the session pipeline treats them uniformly.
//
// Analyzers should return metric values already in [0,100]; the aggregator
// clamps regardless, so an implementation that cannot guarantee the range is
// still safe to plug in.
type SignalAnalyzer interface {
	Analyze(ctx context.Context, raw types.RawInput) (types.MetricSample, error)
}
