package repository

import (
	"context"

	"sheetlens/internal/model"
)

// AnalysisRepository defines data access for analyses using SQL queries only.
// No business logic here, only persistence operations. Ownership is
// enforced by the service layer, not by these queries.
type AnalysisRepository interface {
	// Create inserts a new analysis record.
	// Returns the stored record with the database-assigned ID and CreatedAt.
	Create(ctx context.Context, a *model.Analysis) (*model.Analysis, error)

	// FindByID returns an analysis by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Analysis, error)

	// ListByOwner returns the owner's analyses, most recent first, without row data.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.AnalysisSummary], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
