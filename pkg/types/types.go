package types

import (
	"time"
)

// Session lifecycle states. Sessions move created -> running -> completing ->
// completed, or to abandoned from any non-terminal state. Completed and
// abandoned are terminal.
const (
	StateCreated    = "created"
	StateRunning    = "running"
	StateCompleting = "completing"
	StateCompleted  = "completed"
	StateAbandoned  = "abandoned"
)

// Event types delivered to session observers.
const (
	EventLiveUpdate   = "live-update"
	EventFinalResult  = "final-result"
	EventSessionEnded = "session-ended"
)

// Eligibility tiers for a final assessment score.
const (
	EligibilityEligible         = "eligible"
	EligibilityNeedsImprovement = "needs-improvement"
	EligibilityNotEligible      = "not-eligible"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation categories.
const (
	CategoryVoice      = "voice"
	CategoryEngagement = "engagement"
	CategoryTeaching   = "teaching"
)

// Emotions is the fixed vocabulary an analyzer may report.
var Emotions = []string{"neutral", "happy", "confident", "engaged", "serious"}

// VoiceMetrics holds the named voice metrics, each in [0,100].
type VoiceMetrics struct {
	Confidence float64 `json:"confidence"`
	Volume     float64 `json:"volume"`
	Clarity    float64 `json:"clarity"`
	Audibility float64 `json:"audibility"`
}

// FacialMetrics holds the named facial metrics in [0,100] plus a categorical
// emotion label from the Emotions vocabulary.
type FacialMetrics struct {
	EngagementLevel   float64 `json:"engagement_level"`
	ExpressionVariety float64 `json:"expression_variety"`
	Emotion           string  `json:"emotion"`
}

// TeachingMetrics are secondary metrics derived from voice and facial
// aggregates with a fixed linear blend.
type TeachingMetrics struct {
	InteractionLevel  float64 `json:"interaction_level"`
	ExampleUsage      float64 `json:"example_usage"`
	StudentEngagement float64 `json:"student_engagement"`
}

// MetricSample is one timestamped observation for a session, produced by a
// SignalAnalyzer from raw sensor input.
type MetricSample struct {
	SessionID string        `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
	Voice     VoiceMetrics  `json:"voice_metrics"`
	Facial    FacialMetrics `json:"facial_metrics"`
}

// RawInput is the payload delivered by the ingress layer for one sample.
// Metric maps are keyed by metric name (confidence, volume, clarity,
// audibility for audio; engagement_level, expression_variety for video).
// A passthrough analyzer maps them directly; a simulated analyzer ignores
// them entirely.
type RawInput struct {
	Timestamp  time.Time          `json:"timestamp,omitempty"`
	AudioData  map[string]float64 `json:"audio_data,omitempty"`
	VideoFrame map[string]float64 `json:"video_frame,omitempty"`
	Emotion    string             `json:"emotion,omitempty"`
}

// MetricStat carries the running statistics for a single named metric.
type MetricStat struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// AggregatedSnapshot is the running or final summary of all samples seen for
// a session. Voice and Facial carry running means, Stats carries per-metric
// mean/min/max keyed by metric name, and Teaching is recomputed from the
// running means on every ingest.
type AggregatedSnapshot struct {
	SessionID   string                `json:"session_id"`
	SampleCount int                   `json:"sample_count"`
	Voice       VoiceMetrics          `json:"voice_metrics"`
	Facial      FacialMetrics         `json:"facial_metrics"`
	Teaching    TeachingMetrics       `json:"teaching_metrics"`
	Stats       map[string]MetricStat `json:"metric_stats,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Session is the lifecycle container for one timed evaluation.
type Session struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject,omitempty"`
	Institution string     `json:"institution,omitempty"`
	Duration    int        `json:"duration,omitempty"` // planned length in minutes
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// Recommendation is one improvement suggestion derived from a final snapshot.
type Recommendation struct {
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AssessmentResult is produced exactly once per session at completion.
type AssessmentResult struct {
	SessionID        string              `json:"assessment_id"`
	OverallScore     float64             `json:"overall_score"`
	Eligibility      string              `json:"eligibility"`
	Recommendations  []Recommendation    `json:"recommendations"`
	DetailedAnalysis *AggregatedSnapshot `json:"detailed_analysis"`
	CompletedAt      time.Time           `json:"completed_at"`
}

// AssessmentRecord is a persisted assessment as read back from storage.
type AssessmentRecord struct {
	ID               string              `json:"id"`
	Subject          string              `json:"subject,omitempty"`
	Institution      string              `json:"institution,omitempty"`
	Duration         int                 `json:"duration,omitempty"`
	Status           string              `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	OverallScore     float64             `json:"overall_score"`
	Eligibility      string              `json:"eligibility"`
	Recommendations  []Recommendation    `json:"recommendations,omitempty"`
	DetailedAnalysis *AggregatedSnapshot `json:"detailed_analysis,omitempty"`
}

// Event is the envelope broadcast to observers of a session. Snapshot is set
// for live-update events, Result for final-result events; session-ended
// carries neither.
type Event struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	Timestamp time.Time           `json:"timestamp"`
	Snapshot  *AggregatedSnapshot `json:"snapshot,omitempty"`
	Result    *AssessmentResult   `json:"result,omitempty"`
}
