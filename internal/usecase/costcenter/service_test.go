package costcenter

import (
	"context"
	"errors"
	"testing"

	"github.com/sernascript/tollsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCatalogSource is a mock implementation of CatalogSource
type MockCatalogSource struct {
	mock.Mock
}

func (m *MockCatalogSource) GetCostCenters(ctx context.Context) ([]*domain.CostCenter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CostCenter), args.Error(1)
}

// MockCostCenterRepository is a mock implementation of CostCenterRepository
type MockCostCenterRepository struct {
	mock.Mock
}

func (m *MockCostCenterRepository) GetByName(ctx context.Context, name string) (*domain.CostCenter, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CostCenter), args.Error(1)
}

func (m *MockCostCenterRepository) ListActive(ctx context.Context) ([]*domain.CostCenter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CostCenter), args.Error(1)
}

func (m *MockCostCenterRepository) ReplaceAll(ctx context.Context, centers []*domain.CostCenter) error {
	args := m.Called(ctx, centers)
	return args.Error(0)
}

func TestSync_ReplacesCatalog(t *testing.T) {
	ctx := context.Background()
	source := new(MockCatalogSource)
	repo := new(MockCostCenterRepository)

	centers := []*domain.CostCenter{
		{ID: 1, Code: "CC-1", Name: "WOR123", Active: true},
		{ID: 2, Code: "CC-2", Name: "XYZ789", Active: true},
		{ID: 3, Code: "CC-3", Name: "OLD555", Active: false},
	}
	source.On("GetCostCenters", ctx).Return(centers, nil)
	repo.On("ReplaceAll", ctx, centers).Return(nil)

	result, err := NewService(source, repo).Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Active)
	repo.AssertExpectations(t)
}

func TestSync_EmptyCatalogKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	source := new(MockCatalogSource)
	repo := new(MockCostCenterRepository)

	source.On("GetCostCenters", ctx).Return([]*domain.CostCenter{}, nil)

	_, err := NewService(source, repo).Sync(ctx)
	require.Error(t, err)
	repo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

func TestSync_InvalidEntryAborts(t *testing.T) {
	ctx := context.Background()
	source := new(MockCatalogSource)
	repo := new(MockCostCenterRepository)

	centers := []*domain.CostCenter{
		{ID: 1, Code: "CC-1", Name: "WOR123", Active: true},
		{ID: 2, Code: "CC-2", Name: "", Active: true},
	}
	source.On("GetCostCenters", ctx).Return(centers, nil)

	_, err := NewService(source, repo).Sync(ctx)
	require.Error(t, err)
	repo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

func TestSync_FetchFailure(t *testing.T) {
	ctx := context.Background()
	source := new(MockCatalogSource)
	repo := new(MockCostCenterRepository)

	source.On("GetCostCenters", ctx).Return(nil, errors.New("connection refused"))

	_, err := NewService(source, repo).Sync(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch cost centers")
}
