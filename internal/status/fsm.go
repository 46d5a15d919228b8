// Package status models the document processing lifecycle as an explicit
// finite-state machine, making illegal transitions (e.g. error directly to
// complete) unrepresentable at runtime.
package status

import (
	"fmt"
	"time"

	"findocs/internal/domain"
)

// ElapsedDebounce is how long an in-flight phase must run before elapsed
// time is surfaced, so fast extractions do not flicker a timer.
const ElapsedDebounce = 3 * time.Second

// legal transitions out of each stage. Retry out of error re-enters at
// processing, not idle: classification and routing re-run from scratch
// because the prior failure state is not trusted.
var transitions = map[domain.PipelineStage][]domain.PipelineStage{
	domain.StageIdle:       {domain.StageUploading},
	domain.StageUploading:  {domain.StageProcessing, domain.StageError},
	domain.StageProcessing: {domain.StageExtracting, domain.StageComplete, domain.StageError},
	domain.StageExtracting: {domain.StageComplete, domain.StageError},
	domain.StageComplete:   {},
	domain.StageError:      {domain.StageProcessing},
}

// CanTransition reports whether moving from one stage to another is legal.
func CanTransition(from, to domain.PipelineStage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the next stage.
func Transition(from, to domain.PipelineStage) (domain.PipelineStage, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}
	return to, nil
}

// Terminal reports whether the stage is a terminal rendering state.
func Terminal(stage domain.PipelineStage) bool {
	return stage == domain.StageComplete || stage == domain.StageError
}

// InFlight reports whether the stage represents work underway.
func InFlight(stage domain.PipelineStage) bool {
	return stage == domain.StageUploading ||
		stage == domain.StageProcessing ||
		stage == domain.StageExtracting
}

// Snapshot is the progress view consumed by presentation layers.
type Snapshot struct {
	Stage          domain.PipelineStage `json:"stage"`
	UploadProgress *int                 `json:"upload_progress,omitempty"`
	ElapsedSeconds *int                 `json:"elapsed_seconds,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
}

// Snap builds a progress snapshot for a stage that entered at enteredAt.
// Elapsed seconds are only populated for in-flight stages past the
// de-bounce window.
func Snap(stage domain.PipelineStage, enteredAt time.Time, now time.Time, errMsg string) Snapshot {
	s := Snapshot{Stage: stage}
	if InFlight(stage) {
		if elapsed := now.Sub(enteredAt); elapsed > ElapsedDebounce {
			secs := int(elapsed.Seconds())
			s.ElapsedSeconds = &secs
		}
	}
	if stage == domain.StageError {
		s.ErrorMessage = errMsg
	}
	return s
}
