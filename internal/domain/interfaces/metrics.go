package interfaces

import "time"

// BuildOutcome labels the final status of a build
type BuildOutcome string

// Build outcomes
const (
	OutcomeSuccess BuildOutcome = "success"
	OutcomeFailed  BuildOutcome = "failed"
	OutcomeBlocked BuildOutcome = "blocked"
)

// MetricsRecorder receives build measurements. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, success bool)
	IncBuildOutcome(outcome BuildOutcome)
	IncDownload(source string)
	ObserveArchiveSize(bytes int64)
}

// NoopRecorder discards all measurements
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, bool)                {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)               {}
func (NoopRecorder) IncDownload(string)                         {}
func (NoopRecorder) ObserveArchiveSize(int64)                   {}
