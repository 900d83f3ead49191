package analyzer

import (
	"context"
	"sync/atomic"

	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// Analyzer mode names accepted in configuration.
const (
	ModeSimulated   = "simulated"
	ModePassthrough = "passthrough"
)

// Dynamic wraps another analyzer and allows it to be swapped at runtime, so
// a config reload can change analysis mode without restarting the pipeline.
type Dynamic struct {
	current atomic.Value // interfaces.SignalAnalyzer
}

// NewDynamic creates a dynamic analyzer with the given initial delegate.
func NewDynamic(initial interfaces.SignalAnalyzer) *Dynamic {
	d := &Dynamic{}
	d.current.Store(&holder{initial})
	return d
}

// holder keeps the stored concrete type stable across Set calls; atomic.Value
// requires consistent types.
type holder struct {
	a interfaces.SignalAnalyzer
}

// Set replaces the delegate. In-flight Analyze calls finish on the old one.
func (d *Dynamic) Set(a interfaces.SignalAnalyzer) {
	d.current.Store(&holder{a})
}

// Analyze delegates to the current analyzer.
func (d *Dynamic) Analyze(ctx context.Context, raw types.RawInput) (types.MetricSample, error) {
	return d.current.Load().(*holder).a.Analyze(ctx, raw)
}

// ForMode builds an analyzer for a configured mode name. Unknown modes fall
// back to simulated.
func ForMode(mode string, seed int64) interfaces.SignalAnalyzer {
	switch mode {
	case ModePassthrough:
		return NewPassthrough()
	default:
		return NewSimulated(seed)
	}
}
