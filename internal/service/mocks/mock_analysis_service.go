package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"sheetlens/internal/chart"
	"sheetlens/internal/model"
	"sheetlens/internal/service"
)

type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Save(ctx context.Context, ownerID string, in service.SaveInput) (*model.Analysis, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Analysis), args.Error(1)
}

func (m *MockAnalysisService) Recent(ctx context.Context, ownerID string, limit, offset int) (*service.RecentResult, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecentResult), args.Error(1)
}

func (m *MockAnalysisService) Get(ctx context.Context, id, ownerID string) (*model.Analysis, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Analysis), args.Error(1)
}

func (m *MockAnalysisService) Workbook(ctx context.Context, id, ownerID string) (*service.Workbook, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Workbook), args.Error(1)
}

func (m *MockAnalysisService) Export(ctx context.Context, id, ownerID string) (*service.ExportResult, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportResult), args.Error(1)
}

// Chart writes the first return value, when it is a []byte, to w.
func (m *MockAnalysisService) Chart(ctx context.Context, id, ownerID string, opts chart.Options, w io.Writer) error {
	args := m.Called(ctx, id, ownerID, opts, w)
	if b, ok := args.Get(0).([]byte); ok {
		if _, err := w.Write(b); err != nil {
			return err
		}
		return args.Error(1)
	}
	return args.Error(0)
}
