package repository

import (
	"context"

	"github.com/dom/wartracker/internal/domain"
	"github.com/google/uuid"
)

// RecordRepository persists match records. Writes report, through
// SaveReport, any columns the schema could not take.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.MatchRecord) (*domain.SaveReport, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.RecordPatch) (*domain.MatchRecord, *domain.SaveReport, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MatchRecord, error)
	List(ctx context.Context, filter domain.RecordFilter) ([]*domain.MatchRecord, error)
	Stats(ctx context.Context, filter domain.RecordFilter) (*domain.RecordStats, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repositories struct {
	Record RecordRepository
}
