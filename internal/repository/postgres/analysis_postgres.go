package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sheetlens/internal/model"
	"sheetlens/internal/repository"
)

// AnalysisPostgres is a PostgreSQL implementation of repository.AnalysisRepository.
// Row data and column order are stored as JSONB documents next to the
// scalar fields; it contains no business logic.
type AnalysisPostgres struct {
	db *sql.DB
}

// NewAnalysisPostgres creates a new AnalysisPostgres repository.
func NewAnalysisPostgres(db *sql.DB) *AnalysisPostgres {
	return &AnalysisPostgres{db: db}
}

var _ repository.AnalysisRepository = (*AnalysisPostgres)(nil)

// Create inserts a new analysis row and returns the stored record.
func (r *AnalysisPostgres) Create(ctx context.Context, a *model.Analysis) (*model.Analysis, error) {
	columns, err := json.Marshal(a.Data.Columns)
	if err != nil {
		return nil, fmt.Errorf("encode columns: %w", err)
	}
	data, err := json.Marshal(a.Data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}

	const q = `
		INSERT INTO analyses (id, owner_id, file_name, columns, data, row_count, summary, chart_type, axis_x, axis_y, axis_z, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		a.ID,
		a.OwnerID,
		a.FileName,
		string(columns),
		string(data),
		len(a.Data.Rows),
		a.Summary,
		string(a.ChartType),
		a.SelectedAxes.X,
		a.SelectedAxes.Y,
		a.SelectedAxes.Z,
		a.CreatedAt,
	)
	out := *a
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single analysis, including its rows, by ID.
func (r *AnalysisPostgres) FindByID(ctx context.Context, id string) (*model.Analysis, error) {
	const q = `
		SELECT id, owner_id, file_name, columns, data, summary, chart_type, axis_x, axis_y, axis_z, created_at
		FROM analyses
		WHERE id = $1
	`
	var (
		a         model.Analysis
		chartType string
		columns   []byte
		data      []byte
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.OwnerID,
		&a.FileName,
		&columns,
		&data,
		&a.Summary,
		&chartType,
		&a.SelectedAxes.X,
		&a.SelectedAxes.Y,
		&a.SelectedAxes.Z,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.ChartType = model.ChartType(chartType)

	if err := json.Unmarshal(data, &a.Data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	// JSONB does not keep object key order; the stored column list does.
	var order []string
	if err := json.Unmarshal(columns, &order); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	a.Data = model.NewDataset(order, a.Data.Rows)
	return &a, nil
}

// ListByOwner returns one page of the owner's analyses, newest first, and the owner's total.
func (r *AnalysisPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.AnalysisSummary], error) {
	const qCount = `SELECT COUNT(*) FROM analyses WHERE owner_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, file_name, summary, chart_type, row_count, created_at
		FROM analyses
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.AnalysisSummary, 0)
	for rows.Next() {
		var (
			s         model.AnalysisSummary
			chartType string
		)
		if err := rows.Scan(
			&s.ID,
			&s.FileName,
			&s.Summary,
			&chartType,
			&s.RowCount,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.ChartType = model.ChartType(chartType)
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.AnalysisSummary]{
		Items: items,
		Total: total,
	}, nil
}
