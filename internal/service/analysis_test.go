package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sheetlens/internal/chart"
	"sheetlens/internal/model"
	"sheetlens/internal/repository"
	repoMocks "sheetlens/internal/repository/mocks"
	"sheetlens/internal/sheet"
	"sheetlens/internal/storage"
	storeMocks "sheetlens/internal/storage/mocks"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func rows(t *testing.T, raw string) model.Dataset {
	t.Helper()
	var ds model.Dataset
	require.NoError(t, json.Unmarshal([]byte(raw), &ds))
	return ds
}

func salesData(t *testing.T) model.Dataset {
	return rows(t, `[{"Region":"North","Sales":100},{"Region":"South","Sales":250},{"Region":"East","Sales":80}]`)
}

func newTestService(store storage.Storage, repo repository.AnalysisRepository, opts Options) *analysisService {
	opts.Now = func() time.Time { return fixedNow }
	return NewAnalysisService(store, repo, opts).(*analysisService)
}

func TestAnalysisService_Save(t *testing.T) {
	ctx := context.Background()
	data := salesData(t)

	t.Run("happy path synthesizes file name and summary", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		reg := prometheus.NewRegistry()
		metrics, err := NewMetrics(reg)
		require.NoError(t, err)
		svc := newTestService(nil, mRepo, Options{Metrics: metrics})

		var created *model.Analysis
		mRepo.On("Create", ctx, mock.AnythingOfType("*model.Analysis")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*model.Analysis) }).
			Return(&model.Analysis{ID: "stored-id", OwnerID: "owner-1", ChartType: model.Chart2D}, nil)

		got, err := svc.Save(ctx, "owner-1", SaveInput{
			Data:         data,
			ChartType:    model.Chart2D,
			SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
		})
		require.NoError(t, err)
		assert.Equal(t, "stored-id", got.ID)

		require.NotNil(t, created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "owner-1", created.OwnerID)
		assert.Equal(t, "analysis_1773480413000", created.FileName)
		assert.Equal(t, "3 rows, 2 columns: Region, Sales", created.Summary)
		assert.Equal(t, fixedNow, created.CreatedAt)
		assert.Equal(t, data, created.Data)

		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.saved.WithLabelValues("2d")))
		mRepo.AssertExpectations(t)
	})

	t.Run("keeps given file name", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(nil, mRepo, Options{})
		mRepo.On("Create", ctx, mock.MatchedBy(func(a *model.Analysis) bool {
			return a.FileName == "q1.xlsx"
		})).Return(&model.Analysis{ID: "id"}, nil)

		_, err := svc.Save(ctx, "owner-1", SaveInput{
			FileName:     "  q1.xlsx ",
			Data:         data,
			ChartType:    model.Chart2D,
			SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
		})
		require.NoError(t, err)
		mRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(nil, mRepo, Options{})
		mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))

		_, err := svc.Save(ctx, "owner-1", SaveInput{
			Data:         data,
			ChartType:    model.Chart2D,
			SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db save failed: db fail")
	})

	t.Run("owner required", func(t *testing.T) {
		svc := newTestService(nil, new(repoMocks.MockAnalysisRepository), Options{})
		_, err := svc.Save(ctx, "", SaveInput{})
		assert.ErrorIs(t, err, ErrOwnerRequired)
	})
}

func TestAnalysisService_SaveValidation(t *testing.T) {
	ctx := context.Background()
	data := salesData(t)

	tests := []struct {
		name       string
		in         SaveInput
		maxRows    int
		wantFields map[string]string
	}{
		{
			name: "3d without z",
			in:   SaveInput{Data: data, ChartType: model.Chart3D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"}},
			wantFields: map[string]string{
				"selectedAxes.z": "is required",
			},
		},
		{
			name: "missing chart type and rows",
			in:   SaveInput{},
			wantFields: map[string]string{
				"chartType": "is required",
				"data":      "must contain at least one row",
			},
		},
		{
			name: "unsupported chart type",
			in:   SaveInput{Data: data, ChartType: "pie"},
			wantFields: map[string]string{
				"chartType": "must be one of: 2d, 3d",
			},
		},
		{
			name: "axis names unknown column",
			in:   SaveInput{Data: data, ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Profit"}},
			wantFields: map[string]string{
				"selectedAxes.y": "must name a column of data",
			},
		},
		{
			name: "2d with unknown z",
			in:   SaveInput{Data: data, ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales", Z: "Depth"}},
			wantFields: map[string]string{
				"selectedAxes.z": "must name a column of data",
			},
		},
		{
			name: "NUL in file name",
			in:   SaveInput{FileName: "q1\x00.xlsx", Data: data, ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"}},
			wantFields: map[string]string{
				"fileName": "must not contain NUL characters",
			},
		},
		{
			name: "NUL in cell",
			in: SaveInput{
				Data:         rows(t, `[{"Region":"North\u0000","Sales":100}]`),
				ChartType:    model.Chart2D,
				SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
			},
			wantFields: map[string]string{
				"data": "must not contain NUL characters",
			},
		},
		{
			name: "NUL in column name",
			in: SaveInput{
				Data:         rows(t, `[{"Region":"North","Sales":100,"No\u0000te":"x"}]`),
				ChartType:    model.Chart2D,
				SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
			},
			wantFields: map[string]string{
				"data": "must not contain NUL characters",
			},
		},
		{
			name:    "too many rows",
			in:      SaveInput{Data: data, ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"}},
			maxRows: 2,
			wantFields: map[string]string{
				"data": "must contain at most 2 rows",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockAnalysisRepository)
			svc := newTestService(nil, mRepo, Options{MaxRows: tt.maxRows})

			_, err := svc.Save(ctx, "owner-1", tt.in)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantFields, verr.Fields)
			mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalysisService_Recent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockAnalysisRepository)
		wantErr    bool
		checkRes   func(t *testing.T, res *RecentResult)
	}{
		{
			name:   "happy path",
			limit:  5,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("ListByOwner", ctx, "owner-1", repository.PageQuery{Limit: 5, Offset: 0}).
					Return(&repository.PageResult[model.AnalysisSummary]{
						Items: []model.AnalysisSummary{{ID: "2"}, {ID: "1"}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *RecentResult) {
				assert.Equal(t, "2", res.Items[0].ID)
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "zero limit uses default and negative offset is clamped",
			limit:  0,
			offset: -3,
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("ListByOwner", ctx, "owner-1", repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.AnalysisSummary]{}, nil)
			},
			checkRes: func(t *testing.T, res *RecentResult) {
				assert.NotNil(t, res.Items)
				assert.Empty(t, res.Items)
			},
		},
		{
			name:  "limit is capped",
			limit: 5000,
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("ListByOwner", ctx, "owner-1", repository.PageQuery{Limit: 100, Offset: 0}).
					Return(&repository.PageResult[model.AnalysisSummary]{}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("ListByOwner", ctx, "owner-1", mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockAnalysisRepository)
			svc := newTestService(nil, mRepo, Options{})
			tt.setupMocks(mRepo)

			res, err := svc.Recent(ctx, "owner-1", tt.limit, tt.offset)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestAnalysisService_RecentCache(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockAnalysisRepository)
	svc := newTestService(nil, mRepo, Options{CacheTTL: time.Minute})

	page := &repository.PageResult[model.AnalysisSummary]{Items: []model.AnalysisSummary{{ID: "1"}}, Total: 1}
	mRepo.On("ListByOwner", ctx, "owner-1", repository.PageQuery{Limit: 10}).Return(page, nil).Twice()
	mRepo.On("ListByOwner", ctx, "owner-2", repository.PageQuery{Limit: 10}).Return(page, nil).Once()
	mRepo.On("Create", ctx, mock.Anything).Return(&model.Analysis{ID: "2", ChartType: model.Chart2D}, nil).Once()

	_, err := svc.Recent(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	_, err = svc.Recent(ctx, "owner-2", 10, 0)
	require.NoError(t, err)
	_, err = svc.Recent(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	mRepo.AssertNumberOfCalls(t, "ListByOwner", 2)

	_, err = svc.Save(ctx, "owner-1", SaveInput{
		Data:         salesData(t),
		ChartType:    model.Chart2D,
		SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
	})
	require.NoError(t, err)

	// owner-1's pages were dropped, owner-2's are still cached.
	_, err = svc.Recent(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	_, err = svc.Recent(ctx, "owner-2", 10, 0)
	require.NoError(t, err)
	mRepo.AssertNumberOfCalls(t, "ListByOwner", 3)
	mRepo.AssertExpectations(t)
}

func TestAnalysisService_RecentCache_SaveDuringRead(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockAnalysisRepository)
	svc := newTestService(nil, mRepo, Options{CacheTTL: time.Minute})

	reading := make(chan struct{})
	release := make(chan struct{})
	stale := &repository.PageResult[model.AnalysisSummary]{Items: []model.AnalysisSummary{}, Total: 0}
	fresh := &repository.PageResult[model.AnalysisSummary]{Items: []model.AnalysisSummary{{ID: "new"}}, Total: 1}

	mRepo.On("ListByOwner", ctx, "owner-1", repository.PageQuery{Limit: 10}).Run(func(mock.Arguments) {
		close(reading)
		<-release
	}).Return(stale, nil).Once()
	mRepo.On("ListByOwner", ctx, "owner-1", repository.PageQuery{Limit: 10}).Return(fresh, nil).Once()
	mRepo.On("Create", ctx, mock.Anything).Return(&model.Analysis{ID: "new", ChartType: model.Chart2D}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Recent(ctx, "owner-1", 10, 0)
		done <- err
	}()

	<-reading
	_, err := svc.Save(ctx, "owner-1", SaveInput{
		Data:         salesData(t),
		ChartType:    model.Chart2D,
		SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
	})
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	res, err := svc.Recent(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "new", res.Items[0].ID)
	mRepo.AssertExpectations(t)
}

func TestAnalysisService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		owner      string
		setupMocks func(mRepo *repoMocks.MockAnalysisRepository)
		wantErr    error
	}{
		{
			name:  "happy path",
			id:    "valid-id",
			owner: "owner-1",
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Analysis{ID: "valid-id", OwnerID: "owner-1"}, nil)
			},
		},
		{
			name:       "validation - empty id",
			owner:      "owner-1",
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name:       "validation - empty owner",
			id:         "valid-id",
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {},
			wantErr:    ErrOwnerRequired,
		},
		{
			name:  "not found - mapping sql.ErrNoRows",
			id:    "missing-id",
			owner: "owner-1",
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:  "foreign owner reads as not found",
			id:    "foreign-id",
			owner: "owner-1",
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("FindByID", ctx, "foreign-id").Return(&model.Analysis{ID: "foreign-id", OwnerID: "owner-2"}, nil)
			},
			wantErr: ErrNotFound,
		},
		{
			name:  "generic repository error",
			id:    "error-id",
			owner: "owner-1",
			setupMocks: func(mRepo *repoMocks.MockAnalysisRepository) {
				mRepo.On("FindByID", ctx, "error-id").Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockAnalysisRepository)
			svc := newTestService(nil, mRepo, Options{})
			tt.setupMocks(mRepo)

			a, err := svc.Get(ctx, tt.id, tt.owner)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) || errors.Is(tt.wantErr, ErrOwnerRequired) {
					assert.ErrorIs(t, err, tt.wantErr)
					assert.NotErrorIs(t, err, ErrForbidden)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, a)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.id, a.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestAnalysisService_Workbook(t *testing.T) {
	ctx := context.Background()
	data := salesData(t)
	mRepo := new(repoMocks.MockAnalysisRepository)
	svc := newTestService(nil, mRepo, Options{})

	mRepo.On("FindByID", ctx, "id-1").Return(&model.Analysis{ID: "id-1", OwnerID: "owner-1", FileName: "analysis_1", Data: data}, nil)

	wb, err := svc.Workbook(ctx, "id-1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "analysis_1.xlsx", wb.FileName)

	back, err := sheet.Decode(bytes.NewReader(wb.Content), sheet.DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestAnalysisService_Export(t *testing.T) {
	ctx := context.Background()
	data := salesData(t)
	record := &model.Analysis{ID: "id-1", OwnerID: "owner-1", FileName: "q1.xlsx", Data: data}
	putOpts := mock.MatchedBy(func(o storage.PutObjectOptions) bool {
		return o.Size > 0 && o.ContentType == sheet.ContentType && o.Metadata["analysis-id"] == "id-1"
	})

	t.Run("happy path", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(mStore, mRepo, Options{PresignTTL: 10 * time.Minute})

		mRepo.On("FindByID", ctx, "id-1").Return(record, nil)
		mStore.On("Put", ctx, "exports/owner-1/id-1.xlsx", mock.Anything, putOpts).
			Return(storage.ObjectInfo{Key: "exports/owner-1/id-1.xlsx"}, nil)
		mStore.On("PresignGet", ctx, "exports/owner-1/id-1.xlsx", "q1.xlsx", 10*time.Minute).
			Return("https://minio.local/exports/owner-1/id-1.xlsx?sig", nil)

		res, err := svc.Export(ctx, "id-1", "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "exports/owner-1/id-1.xlsx", res.Key)
		assert.Equal(t, "https://minio.local/exports/owner-1/id-1.xlsx?sig", res.URL)
		assert.Equal(t, fixedNow.Add(10*time.Minute), res.ExpiresAt)
		mStore.AssertExpectations(t)
	})

	t.Run("storage error", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(mStore, mRepo, Options{})

		mRepo.On("FindByID", ctx, "id-1").Return(record, nil)
		mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("storage fail"))

		_, err := svc.Export(ctx, "id-1", "owner-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upload to storage: storage fail")
		mStore.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("presign error rolls back", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(mStore, mRepo, Options{})

		mRepo.On("FindByID", ctx, "id-1").Return(record, nil)
		mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, key string, _ io.Reader, _ storage.PutObjectOptions) storage.ObjectInfo {
				return storage.ObjectInfo{Key: key}
			}, nil)
		mStore.On("PresignGet", ctx, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("sign fail"))
		mStore.On("Delete", ctx, "exports/owner-1/id-1.xlsx").Return(nil)

		_, err := svc.Export(ctx, "id-1", "owner-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "presign failed: sign fail")
		mStore.AssertExpectations(t)
	})

	t.Run("foreign record is not exported", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(mStore, mRepo, Options{})

		mRepo.On("FindByID", ctx, "id-1").Return(record, nil)

		_, err := svc.Export(ctx, "id-1", "owner-2")
		assert.ErrorIs(t, err, ErrNotFound)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAnalysisService_Chart(t *testing.T) {
	ctx := context.Background()

	t.Run("renders png and releases renderer", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(nil, mRepo, Options{})
		mRepo.On("FindByID", ctx, "id-1").Return(&model.Analysis{
			ID: "id-1", OwnerID: "owner-1", FileName: "q1", Data: salesData(t),
			ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
		}, nil)

		var buf bytes.Buffer
		require.NoError(t, svc.Chart(ctx, "id-1", "owner-1", chart.Options{Width: 200, Height: 150}, &buf))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
		assert.Equal(t, 0, svc.tracker.Live())
	})

	t.Run("no plottable rows", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(nil, mRepo, Options{})
		mRepo.On("FindByID", ctx, "id-1").Return(&model.Analysis{
			ID: "id-1", OwnerID: "owner-1", Data: rows(t, `[{"a":1},{"b":2}]`),
			ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "a", Y: "b"},
		}, nil)

		err := svc.Chart(ctx, "id-1", "owner-1", chart.Options{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrNotChartable)
	})

	t.Run("skips non-finite cells", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(nil, mRepo, Options{})
		mRepo.On("FindByID", ctx, "id-1").Return(&model.Analysis{
			ID: "id-1", OwnerID: "owner-1", FileName: "q1",
			Data:      rows(t, `[{"Region":"North","Sales":100},{"Region":"South","Sales":"Inf"}]`),
			ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
		}, nil)

		var buf bytes.Buffer
		require.NoError(t, svc.Chart(ctx, "id-1", "owner-1", chart.Options{}, &buf))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
	})

	t.Run("render failure is not chartable", func(t *testing.T) {
		mRepo := new(repoMocks.MockAnalysisRepository)
		svc := newTestService(nil, mRepo, Options{})
		mRepo.On("FindByID", ctx, "id-1").Return(&model.Analysis{
			ID: "id-1", OwnerID: "owner-1", Data: salesData(t),
			ChartType: model.Chart2D, SelectedAxes: model.SelectedAxes{X: "Region", Y: "Sales"},
		}, nil)

		err := svc.Chart(ctx, "id-1", "owner-1", chart.Options{}, failingWriter{})
		assert.ErrorIs(t, err, ErrNotChartable)
		assert.Equal(t, 0, svc.tracker.Live())
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAuthorizeOwner(t *testing.T) {
	a := &model.Analysis{ID: "1", OwnerID: "owner-1"}
	assert.NoError(t, AuthorizeOwner(a, "owner-1"))
	assert.ErrorIs(t, AuthorizeOwner(a, "owner-2"), ErrForbidden)
	assert.ErrorIs(t, AuthorizeOwner(a, ""), ErrOwnerRequired)
	assert.ErrorIs(t, AuthorizeOwner(nil, "owner-1"), ErrNotFound)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "1 row, 1 column: n", summarize(rows(t, `[{"n":1}]`)))

	wide := rows(t, `[{"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7,"h":8,"i":9,"j":10}]`)
	assert.Equal(t, "1 row, 10 columns: a, b, c, d, e, f, g, h and 2 more", summarize(wide))
}
