package model

import "time"

// ChartType is the dimensionality of the chart an analysis was saved with.
type ChartType string

const (
	Chart2D ChartType = "2d"
	Chart3D ChartType = "3d"
)

// Valid reports whether t is one of the supported chart types.
func (t ChartType) Valid() bool {
	return t == Chart2D || t == Chart3D
}

// SelectedAxes records which dataset columns were mapped to chart dimensions.
type SelectedAxes struct {
	X string `json:"x,omitempty"`
	Y string `json:"y,omitempty"`
	Z string `json:"z,omitempty"`
}

// Analysis is a persisted, summarized spreadsheet upload.
// This is a pure domain model with no database-specific dependencies or tags.
// Records are immutable once created.
type Analysis struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"ownerId"`
	FileName     string       `json:"fileName"`
	Data         Dataset      `json:"data" swaggertype:"array,object"`
	Summary      string       `json:"summary"`
	ChartType    ChartType    `json:"chartType"`
	SelectedAxes SelectedAxes `json:"selectedAxes"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// AnalysisSummary is the listing projection of an Analysis; it never carries row data.
type AnalysisSummary struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Summary   string    `json:"summary"`
	ChartType ChartType `json:"chartType"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summarize returns the listing projection of a.
func (a *Analysis) Summarize() AnalysisSummary {
	return AnalysisSummary{
		ID:        a.ID,
		FileName:  a.FileName,
		Summary:   a.Summary,
		ChartType: a.ChartType,
		RowCount:  len(a.Data.Rows),
		CreatedAt: a.CreatedAt,
	}
}
