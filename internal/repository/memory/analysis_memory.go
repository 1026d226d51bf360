// Package memory is an in-process repository.AnalysisRepository. It backs
// tests and local runs that have no PostgreSQL available.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"sheetlens/internal/model"
	"sheetlens/internal/repository"
)

// AnalysisMemory keeps analyses in a map guarded by a mutex.
type AnalysisMemory struct {
	mu   sync.RWMutex
	byID map[string]model.Analysis
}

// NewAnalysisMemory returns an empty store.
func NewAnalysisMemory() *AnalysisMemory {
	return &AnalysisMemory{byID: map[string]model.Analysis{}}
}

var _ repository.AnalysisRepository = (*AnalysisMemory)(nil)

// Create stores a copy of a.
func (r *AnalysisMemory) Create(_ context.Context, a *model.Analysis) (*model.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = *a
	out := *a
	return &out, nil
}

// FindByID returns a copy of the stored analysis, or sql.ErrNoRows.
func (r *AnalysisMemory) FindByID(_ context.Context, id string) (*model.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

// ListByOwner orders by created_at DESC, id DESC, like the PostgreSQL store.
func (r *AnalysisMemory) ListByOwner(_ context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.AnalysisSummary], error) {
	r.mu.RLock()
	var all []model.AnalysisSummary
	for _, a := range r.byID {
		if a.OwnerID == ownerID {
			all = append(all, a.Summarize())
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	res := &repository.PageResult[model.AnalysisSummary]{Items: []model.AnalysisSummary{}, Total: len(all)}
	if pq.Offset >= len(all) {
		return res, nil
	}
	end := len(all)
	if pq.Limit > 0 && pq.Offset+pq.Limit < end {
		end = pq.Offset + pq.Limit
	}
	res.Items = append(res.Items, all[pq.Offset:end]...)
	return res, nil
}
