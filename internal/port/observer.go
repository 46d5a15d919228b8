package port

import (
	"github.com/google/uuid"

	"findocs/internal/domain"
)

// PipelineObserver receives pipeline diagnostics so core stages stay free
// of global logging state and remain independently testable.
type PipelineObserver interface {
	StageChanged(docID uuid.UUID, stage domain.PipelineStage)
	Failure(docID uuid.UUID, msg string)
}
