package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sheetlens/internal/chart"
	"sheetlens/internal/model"
	"sheetlens/internal/repository"
	"sheetlens/internal/sheet"
	"sheetlens/internal/storage"
)

// ErrNotChartable means a stored analysis has no row with a value for every
// selected axis.
var ErrNotChartable = errors.New("analysis has no plottable rows")

const (
	defaultRecentLimit  = 10
	defaultRecentMaxCap = 100
	defaultPresignTTL   = 15 * time.Minute
)

// RecentResult is one page of an owner's analyses, most recent first.
type RecentResult struct {
	Items []model.AnalysisSummary `json:"data"`
	Total int                     `json:"total"`
}

// Workbook is an analysis encoded as an xlsx file.
type Workbook struct {
	FileName string
	Content  []byte
}

// ExportResult points at an archived workbook.
type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AnalysisService defines the use cases for saved analyses. Every method is
// scoped to ownerID; records of other owners are reported as ErrNotFound.
type AnalysisService interface {
	// Save validates in, generates the summary and stores a new record.
	// A missing file name is synthesized as analysis_<unix millis>.
	Save(ctx context.Context, ownerID string, in SaveInput) (*model.Analysis, error)

	// Recent lists the owner's analyses without row data.
	Recent(ctx context.Context, ownerID string, limit, offset int) (*RecentResult, error)

	// Get returns a full record.
	Get(ctx context.Context, id, ownerID string) (*model.Analysis, error)

	// Workbook encodes a record's rows as xlsx.
	Workbook(ctx context.Context, id, ownerID string) (*Workbook, error)

	// Export archives the workbook in object storage and returns a presigned link.
	Export(ctx context.Context, id, ownerID string) (*ExportResult, error)

	// Chart renders a record as PNG into w.
	Chart(ctx context.Context, id, ownerID string, opts chart.Options, w io.Writer) error
}

// Options tunes the analysis service. Zero values pick defaults.
type Options struct {
	MaxRows      int
	RecentLimit  int
	RecentMaxCap int
	CacheTTL     time.Duration
	PresignTTL   time.Duration
	Metrics      *Metrics
	Logger       *zap.Logger
	Now          func() time.Time
}

type analysisService struct {
	store   storage.Storage
	repo    repository.AnalysisRepository
	opts    Options
	cache   *recentCache
	tracker chart.Tracker
	logger  *zap.Logger
}

// NewAnalysisService constructs a new AnalysisService.
func NewAnalysisService(store storage.Storage, repo repository.AnalysisRepository, opts Options) AnalysisService {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = defaultRecentLimit
	}
	if opts.RecentMaxCap <= 0 {
		opts.RecentMaxCap = defaultRecentMaxCap
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = defaultPresignTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &analysisService{
		store:  store,
		repo:   repo,
		opts:   opts,
		cache:  newRecentCache(opts.CacheTTL),
		logger: logger.With(zap.String("component", "analysis")),
	}
}

func (s *analysisService) Save(ctx context.Context, ownerID string, in SaveInput) (*model.Analysis, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	in.FileName = strings.TrimSpace(in.FileName)
	if err := validateSave(in, s.opts.MaxRows); err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	if in.FileName == "" {
		in.FileName = fmt.Sprintf("analysis_%d", now.UnixMilli())
	}
	a := &model.Analysis{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		FileName:     in.FileName,
		Data:         in.Data,
		Summary:      summarize(in.Data),
		ChartType:    in.ChartType,
		SelectedAxes: in.SelectedAxes,
		CreatedAt:    now,
	}
	stored, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	s.cache.invalidate(ownerID)
	s.opts.Metrics.incSaved(string(stored.ChartType))
	s.logger.Info("analysis saved",
		zap.String("analysis_id", stored.ID),
		zap.String("owner_id", ownerID),
		zap.Int("rows", stored.Data.Len()),
		zap.String("chart_type", string(stored.ChartType)),
	)
	return stored, nil
}

func (s *analysisService) Recent(ctx context.Context, ownerID string, limit, offset int) (*RecentResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = s.opts.RecentLimit
	}
	if limit > s.opts.RecentMaxCap {
		limit = s.opts.RecentMaxCap
	}
	if offset < 0 {
		offset = 0
	}

	if res, ok := s.cache.get(ownerID, limit, offset); ok {
		return res, nil
	}
	gen := s.cache.generation(ownerID)
	page, err := s.repo.ListByOwner(ctx, ownerID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	items := page.Items
	if items == nil {
		items = []model.AnalysisSummary{}
	}
	res := &RecentResult{Items: items, Total: page.Total}
	s.cache.set(ownerID, gen, limit, offset, res)
	return res, nil
}

func (s *analysisService) Get(ctx context.Context, id, ownerID string) (*model.Analysis, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := AuthorizeOwner(a, ownerID); err != nil {
		if errors.Is(err, ErrForbidden) {
			s.logger.Debug("analysis owner mismatch", zap.String("analysis_id", id), zap.String("owner_id", ownerID))
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *analysisService) Workbook(ctx context.Context, id, ownerID string) (*Workbook, error) {
	a, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	content, err := sheet.Encode(a.Data, sheet.DefaultSheetName)
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return &Workbook{FileName: workbookName(a.FileName), Content: content}, nil
}

func (s *analysisService) Export(ctx context.Context, id, ownerID string) (*ExportResult, error) {
	wb, err := s.Workbook(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	key := storage.ExportPrefix + url.PathEscape(ownerID) + "/" + id + ".xlsx"
	if _, err := s.store.Put(ctx, key, bytes.NewReader(wb.Content), storage.PutObjectOptions{
		Size:        int64(len(wb.Content)),
		ContentType: sheet.ContentType,
		Metadata: map[string]string{
			"analysis-id": id,
			"file-name":   wb.FileName,
		},
	}); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	expires := s.opts.Now().UTC().Add(s.opts.PresignTTL)
	link, err := s.store.PresignGet(ctx, key, wb.FileName, s.opts.PresignTTL)
	if err != nil {
		// Rollback: an export nobody can download is dropped.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("export rollback failed", zap.String("key", key), zap.Error(delErr))
			return nil, fmt.Errorf("presign failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("presign failed: %w", err)
	}

	s.logger.Info("analysis exported", zap.String("analysis_id", id), zap.String("key", key))
	return &ExportResult{Key: key, URL: link, ExpiresAt: expires}, nil
}

func (s *analysisService) Chart(ctx context.Context, id, ownerID string, opts chart.Options, w io.Writer) error {
	a, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}
	p, err := chart.Project(a.Data, a.ChartType, a.SelectedAxes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotChartable, err)
	}
	if opts.Title == "" {
		opts.Title = a.FileName
	}
	r, err := chart.New(p, opts, &s.tracker)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotChartable, err)
	}
	defer r.Close()
	if err := r.Render(w); err != nil {
		return fmt.Errorf("%w: %v", ErrNotChartable, err)
	}
	return nil
}

// workbookName appends .xlsx unless name already carries it.
func workbookName(name string) string {
	if strings.EqualFold(path.Ext(name), ".xlsx") {
		return name
	}
	return name + ".xlsx"
}
