package port

import (
	"context"

	"github.com/google/uuid"

	"findocs/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
// All query methods include userID to scope access to the owning user.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Document, int, error)
	UpdateStage(ctx context.Context, doc *domain.Document) error
	UpdateResult(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, userID, docID uuid.UUID) error
}
