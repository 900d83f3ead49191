package pipeline

import "errors"

// Pipeline error types
var (
	ErrAnalyzerFailed = errors.New("signal analysis failed")
)
