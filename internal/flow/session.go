// Package flow drives one upload-to-save session on the client side:
// pick a spreadsheet, parse it, choose chart axes, render, then persist the
// analysis through the API.
//
// A Session owns at most one live chart renderer and allows at most one save
// in flight. Errors never discard parsed rows except on a failed parse.
package flow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"sheetlens/internal/chart"
	"sheetlens/internal/client"
	"sheetlens/internal/model"
	"sheetlens/internal/sheet"
)

// State is a step of the session.
type State int

const (
	Idle State = iota
	FileSelected
	Parsed
	AxesChosen
	Rendered
	Saving
	Saved
	SaveFailed
)

var stateNames = [...]string{"Idle", "FileSelected", "Parsed", "AxesChosen", "Rendered", "Saving", "Saved", "SaveFailed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

var (
	ErrInvalidState   = errors.New("operation not allowed in the current state")
	ErrSaveInProgress = errors.New("a save is already in progress")
	ErrClosed         = errors.New("session is closed")
	ErrUnknownAxis    = errors.New("axis is not a key of the first row")
)

// API is the part of the analysis API a session calls.
type API interface {
	Save(ctx context.Context, req client.SaveRequest) (*model.Analysis, error)
	Recent(ctx context.Context, limit, offset int) (*client.Page, error)
}

// Options tunes a Session. Zero values pick defaults.
type Options struct {
	MaxRows      int
	HistoryLimit int
	Chart        chart.Options
	// Tracker counts live renderers; a private one is used when nil.
	Tracker *chart.Tracker
	Logger  *zap.Logger
}

// Session is safe for concurrent use.
type Session struct {
	mu   sync.Mutex
	api  API
	opts Options
	log  *zap.Logger

	state     State
	err       error
	closed    bool
	fileName  string
	content   []byte
	data      model.Dataset
	chartType model.ChartType
	axes      model.SelectedAxes
	renderer  chart.Renderer
	saved     *model.Analysis
	history   []model.AnalysisSummary
}

// New returns an Idle session calling api.
func New(api API, opts Options) *Session {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.Tracker == nil {
		opts.Tracker = &chart.Tracker{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{api: api, opts: opts, log: logger.With(zap.String("component", "flow"))}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error recorded by the last failed step, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Data returns the parsed rows.
func (s *Session) Data() model.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Columns returns the keys axes may be chosen from.
func (s *Session) Columns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.FirstRowKeys()
}

// Saved returns the record stored by the last successful save.
func (s *Session) Saved() *model.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// History returns the last fetched page of recent analyses.
func (s *Session) History() []model.AnalysisSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AnalysisSummary(nil), s.history...)
}

// SelectFile starts over with a new file. A name without a spreadsheet
// extension leaves the session Idle with the error recorded.
func (s *Session) SelectFile(name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.state == Saving {
		return ErrSaveInProgress
	}
	s.reset()
	if err := sheet.CheckExtension(name); err != nil {
		return s.fail(Idle, err)
	}
	s.fileName = name
	s.content = content
	s.to(FileSelected)
	return nil
}

// Parse decodes the selected file. On failure the session returns to Idle
// holding no rows.
func (s *Session) Parse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.state != FileSelected {
		return s.invalid("parse")
	}
	ds, err := sheet.Decode(bytes.NewReader(s.content), sheet.DecodeOptions{MaxRows: s.opts.MaxRows})
	s.content = nil
	if err != nil {
		s.data = model.Dataset{}
		return s.fail(Idle, err)
	}
	s.data = ds
	s.err = nil
	s.to(Parsed)
	return nil
}

// ChooseAxes sets the chart type and axes. Axes must be keys of the first
// parsed row; 3d charts also need z. Any rendered chart is released.
func (s *Session) ChooseAxes(kind model.ChartType, axes model.SelectedAxes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	switch s.state {
	case Parsed, AxesChosen, Rendered, Saved, SaveFailed:
	default:
		return s.invalid("choose axes")
	}
	if err := checkAxes(s.data.FirstRowKeys(), kind, axes); err != nil {
		s.err = err
		return err
	}
	s.closeRenderer()
	s.chartType = kind
	s.axes = axes
	s.saved = nil
	s.err = nil
	s.to(AxesChosen)
	return nil
}

// Render draws the chart as PNG into w. The previous renderer is closed
// before a new one is created.
func (s *Session) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.state != AxesChosen && s.state != Rendered {
		return s.invalid("render")
	}
	s.closeRenderer()

	p, err := chart.Project(s.data, s.chartType, s.axes)
	if err != nil {
		return s.fail(AxesChosen, err)
	}
	opts := s.opts.Chart
	if opts.Title == "" {
		opts.Title = s.fileName
	}
	r, err := chart.New(p, opts, s.opts.Tracker)
	if err != nil {
		return s.fail(AxesChosen, err)
	}
	if err := r.Render(w); err != nil {
		_ = r.Close()
		return s.fail(AxesChosen, err)
	}
	s.renderer = r
	s.err = nil
	s.to(Rendered)
	return nil
}

// Save persists the rendered analysis under fileName, or under the selected
// file's name when empty. Only one save runs at a time. On success the
// history is refreshed; on failure the rows are kept so Save can be retried.
func (s *Session) Save(ctx context.Context, fileName string) (*model.Analysis, error) {
	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	switch s.state {
	case Saving:
		s.mu.Unlock()
		return nil, ErrSaveInProgress
	case Rendered, SaveFailed:
	default:
		err := s.invalid("save")
		s.mu.Unlock()
		return nil, err
	}
	if fileName == "" {
		fileName = s.fileName
	}
	req := client.SaveRequest{
		FileName:     fileName,
		Data:         s.data,
		ChartType:    s.chartType,
		SelectedAxes: s.axes,
	}
	s.to(Saving)
	s.mu.Unlock()

	a, err := s.api.Save(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.log.Warn("save failed", zap.Error(err))
		err = s.fail(SaveFailed, err)
		s.mu.Unlock()
		return nil, err
	}
	s.saved = a
	s.err = nil
	s.to(Saved)
	s.mu.Unlock()

	if err := s.RefreshHistory(ctx); err != nil {
		s.log.Warn("history refresh failed", zap.Error(err))
	}
	return a, nil
}

// RefreshHistory fetches the first page of recent analyses.
func (s *Session) RefreshHistory(ctx context.Context) error {
	page, err := s.api.Recent(ctx, s.opts.HistoryLimit, 0)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.history = page.Items
	s.mu.Unlock()
	return nil
}

// Close releases the live renderer. Further calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeRenderer()
	return nil
}

func (s *Session) usable() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// reset drops everything tied to the current file.
func (s *Session) reset() {
	s.closeRenderer()
	s.fileName = ""
	s.content = nil
	s.data = model.Dataset{}
	s.chartType = ""
	s.axes = model.SelectedAxes{}
	s.saved = nil
	s.err = nil
	s.state = Idle
}

func (s *Session) closeRenderer() {
	if s.renderer != nil {
		_ = s.renderer.Close()
		s.renderer = nil
	}
}

func (s *Session) to(next State) {
	if next != s.state {
		s.log.Debug("state change", zap.Stringer("from", s.state), zap.Stringer("to", next))
	}
	s.state = next
}

func (s *Session) fail(next State, err error) error {
	s.err = err
	s.to(next)
	return err
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%s in %s: %w", op, s.state, ErrInvalidState)
}

func checkAxes(keys []string, kind model.ChartType, axes model.SelectedAxes) error {
	if !kind.Valid() {
		return fmt.Errorf("chart type %q: %w", kind, chart.ErrBadChartType)
	}
	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[k] = true
	}
	check := func(axis, col string, required bool) error {
		switch {
		case col == "" && required:
			return &chart.AxisError{Axis: axis, Err: chart.ErrAxisRequired}
		case col != "" && !known[col]:
			return &chart.AxisError{Axis: axis, Err: ErrUnknownAxis}
		}
		return nil
	}
	if err := check("x", axes.X, true); err != nil {
		return err
	}
	if err := check("y", axes.Y, true); err != nil {
		return err
	}
	return check("z", axes.Z, kind == model.Chart3D)
}
