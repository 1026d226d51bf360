// Package chart projects dataset rows through the selected axes and renders
// them as PNG scatter charts: a plain 2D scatter, or a 3D point cloud drawn in
// isometric projection.
//
// Renderers hold their projected points until closed. A Tracker counts the
// renderers that are still open so callers can verify they release one before
// creating the next.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"sheetlens/internal/model"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("renderer is closed")

// Renderer draws one projection.
type Renderer interface {
	Render(w io.Writer) error
	Close() error
}

// Tracker counts live renderers.
type Tracker struct {
	live atomic.Int64
}

// Live returns the number of renderers created and not yet closed.
func (t *Tracker) Live() int {
	if t == nil {
		return 0
	}
	return int(t.live.Load())
}

func (t *Tracker) acquire() {
	if t != nil {
		t.live.Add(1)
	}
}

func (t *Tracker) release() {
	if t != nil {
		t.live.Add(-1)
	}
}

// Options sizes the rendered image.
type Options struct {
	Width  int
	Height int
	Title  string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	return o
}

var (
	pointColor = drawing.ColorFromHex("4bc0c0")
	axisColors = [3]drawing.Color{
		drawing.ColorFromHex("e74c3c"),
		drawing.ColorFromHex("2ecc71"),
		drawing.ColorFromHex("3498db"),
	}
)

// pointStyle renders dots only, no connecting line.
func pointStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeWidth: gochart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

// New returns a renderer for p and registers it with tracker (which may be nil).
func New(p Projection, opts Options, tracker *Tracker) (Renderer, error) {
	if len(p.Points) == 0 {
		return nil, ErrNoPoints
	}
	opts = opts.withDefaults()
	var build func() gochart.Chart
	switch p.Kind {
	case model.Chart2D:
		build = func() gochart.Chart { return build2D(p, opts) }
	case model.Chart3D:
		build = func() gochart.Chart { return build3D(p, opts) }
	default:
		return nil, ErrBadChartType
	}
	tracker.acquire()
	return &renderer{build: build, tracker: tracker}, nil
}

type renderer struct {
	mu      sync.Mutex
	build   func() gochart.Chart
	tracker *Tracker
	closed  bool
}

func (r *renderer) Render(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	c := r.build()
	if err := c.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// Close releases the renderer. It is safe to call more than once.
func (r *renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.build = nil
	r.tracker.release()
	return nil
}

func build2D(p Projection, o Options) gochart.Chart {
	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i], ys[i] = pt.X, pt.Y
	}
	return gochart.Chart{
		Title:  o.Title,
		Width:  o.Width,
		Height: o.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: gochart.XAxis{
			Name:  p.Axes.X,
			Range: paddedRange(xs),
			Ticks: categoryTicks(p.X),
		},
		YAxis: gochart.YAxis{
			Name:  p.Axes.Y,
			Range: paddedRange(ys),
			Ticks: categoryTicks(p.Y),
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{Name: "data", XValues: xs, YValues: ys, Style: pointStyle(pointColor)},
		},
	}
}

// Isometric projection angle (30 degrees).
var (
	isoCos = math.Cos(math.Pi / 6)
	isoSin = math.Sin(math.Pi / 6)
)

// iso maps a point in the unit cube onto the drawing plane.
func iso(x, y, z float64) (float64, float64) {
	return (x - z) * isoCos, y + (x+z)*isoSin
}

func build3D(p Projection, o Options) gochart.Chart {
	nx := normalizer(p.Points, func(pt Point) float64 { return pt.X })
	ny := normalizer(p.Points, func(pt Point) float64 { return pt.Y })
	nz := normalizer(p.Points, func(pt Point) float64 { return pt.Z })

	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i], ys[i] = iso(nx(pt.X), ny(pt.Y), nz(pt.Z))
	}

	series := make([]gochart.Series, 0, 4)
	// Axis guides from the origin to the unit corner of each axis.
	for i, end := range [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		ex, ey := iso(end[0], end[1], end[2])
		series = append(series, gochart.ContinuousSeries{
			Name:    [3]string{p.Axes.X, p.Axes.Y, p.Axes.Z}[i],
			XValues: []float64{0, ex},
			YValues: []float64{0, ey},
			Style:   gochart.Style{StrokeWidth: 2, StrokeColor: axisColors[i]},
		})
	}
	series = append(series, gochart.ContinuousSeries{Name: "data", XValues: xs, YValues: ys, Style: pointStyle(pointColor)})

	c := gochart.Chart{
		Title:  o.Title,
		Width:  o.Width,
		Height: o.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: gochart.XAxis{
			Name:  fmt.Sprintf("%s / %s", p.Axes.X, p.Axes.Z),
			Range: &gochart.ContinuousRange{Min: -isoCos - 0.1, Max: isoCos + 0.1},
		},
		YAxis: gochart.YAxis{
			Name:  p.Axes.Y,
			Range: &gochart.ContinuousRange{Min: -0.1, Max: 1 + 2*isoSin + 0.1},
		},
		Series: series,
	}
	c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	return c
}

// normalizer rescales values of one coordinate into [0, 1].
func normalizer(pts []Point, get func(Point) float64) func(float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range pts {
		v := get(pt)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return func(float64) float64 { return 0.5 }
	}
	return func(v float64) float64 { return (v - lo) / (hi - lo) }
}

// paddedRange widens the data range by 5% on each side. A single distinct
// value gets a unit range around it, since go-chart rejects zero-width ranges.
func paddedRange(vals []float64) *gochart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	pad := (hi - lo) * 0.05
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func categoryTicks(s *Scale) []gochart.Tick {
	if s == nil || !s.Categorical() {
		return nil
	}
	ticks := make([]gochart.Tick, len(s.Categories))
	for i, c := range s.Categories {
		ticks[i] = gochart.Tick{Value: float64(i), Label: c}
	}
	return ticks
}
