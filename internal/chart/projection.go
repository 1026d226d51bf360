package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"sheetlens/internal/model"
)

var (
	ErrAxisRequired  = errors.New("axis is required")
	ErrUnknownColumn = errors.New("axis is not a dataset column")
	ErrNoPoints      = errors.New("no rows have values for every selected axis")
	ErrBadChartType  = errors.New("chart type must be 2d or 3d")
)

// Point is one row projected through the selected axes. Z is zero for 2D charts.
type Point struct {
	X, Y, Z float64
}

// Scale maps one axis' cell values onto numbers. Categorical axes assign each
// distinct label its first-seen index.
type Scale struct {
	Column     string
	Categories []string
	index      map[string]int
}

// Categorical reports whether the axis plots labels instead of numbers.
func (s *Scale) Categorical() bool { return len(s.Categories) > 0 }

// Projection is a dataset reduced to plottable points.
type Projection struct {
	Kind    model.ChartType
	Axes    model.SelectedAxes
	X, Y, Z *Scale
	Points  []Point
	// Skipped counts rows missing a finite value for one of the axes.
	Skipped int
}

// AxisError names the axis that failed validation.
type AxisError struct {
	Axis string
	Err  error
}

func (e *AxisError) Error() string { return fmt.Sprintf("%s: %v", e.Axis, e.Err) }
func (e *AxisError) Unwrap() error { return e.Err }

// CheckAxes validates an axis selection against ds for the given chart type.
func CheckAxes(ds model.Dataset, kind model.ChartType, axes model.SelectedAxes) error {
	if !kind.Valid() {
		return ErrBadChartType
	}
	required := []struct{ name, col string }{{"x", axes.X}, {"y", axes.Y}}
	if kind == model.Chart3D {
		required = append(required, struct{ name, col string }{"z", axes.Z})
	}
	for _, a := range required {
		if a.col == "" {
			return &AxisError{Axis: a.name, Err: ErrAxisRequired}
		}
		if !ds.HasColumn(a.col) {
			return &AxisError{Axis: a.name, Err: ErrUnknownColumn}
		}
	}
	return nil
}

// Project maps every row of ds through the selected axes.
func Project(ds model.Dataset, kind model.ChartType, axes model.SelectedAxes) (Projection, error) {
	if err := CheckAxes(ds, kind, axes); err != nil {
		return Projection{}, err
	}
	p := Projection{
		Kind: kind,
		Axes: axes,
		X:    newScale(ds, axes.X),
		Y:    newScale(ds, axes.Y),
	}
	if kind == model.Chart3D {
		p.Z = newScale(ds, axes.Z)
	}

	for _, row := range ds.Rows {
		x, okX := p.X.value(row)
		y, okY := p.Y.value(row)
		z, okZ := 0.0, true
		if p.Z != nil {
			z, okZ = p.Z.value(row)
		}
		if !okX || !okY || !okZ {
			p.Skipped++
			continue
		}
		p.Points = append(p.Points, Point{X: x, Y: y, Z: z})
	}
	if len(p.Points) == 0 {
		return Projection{}, ErrNoPoints
	}
	return p, nil
}

// newScale makes the axis categorical when any of its values is non-numeric text.
func newScale(ds model.Dataset, column string) *Scale {
	s := &Scale{Column: column}
	categorical := false
	for _, row := range ds.Rows {
		if str, ok := row[column].(string); ok {
			if _, err := strconv.ParseFloat(str, 64); err != nil {
				categorical = true
				break
			}
		}
	}
	if !categorical {
		return s
	}
	s.index = map[string]int{}
	for _, row := range ds.Rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		label := fmt.Sprint(v)
		if _, seen := s.index[label]; !seen {
			s.index[label] = len(s.Categories)
			s.Categories = append(s.Categories, label)
		}
	}
	return s
}

func (s *Scale) value(row model.Row) (float64, bool) {
	v, ok := row[s.Column]
	if !ok || v == nil {
		return 0, false
	}
	if s.Categorical() {
		i, ok := s.index[fmt.Sprint(v)]
		return float64(i), ok
	}
	return numeric(v)
}

// numeric converts a cell value to a plottable number. NaN and infinities
// are not plottable.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		return parseFinite(string(x))
	case float64:
		return x, finite(x)
	case float32:
		return float64(x), finite(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		return parseFinite(x)
	}
	return 0, false
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
