package status

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sernascript/tollsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTollTransactionRepository is a mock implementation of
// domain.TollTransactionRepository for testing
type MockTollTransactionRepository struct {
	mock.Mock
}

func (m *MockTollTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TollTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TollTransaction), args.Error(1)
}

func (m *MockTollTransactionRepository) GetByCUFE(ctx context.Context, cufe string) (*domain.TollTransaction, error) {
	args := m.Called(ctx, cufe)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TollTransaction), args.Error(1)
}

func (m *MockTollTransactionRepository) Upsert(ctx context.Context, tx *domain.TollTransaction) (bool, error) {
	args := m.Called(ctx, tx)
	return args.Bool(0), args.Error(1)
}

func (m *MockTollTransactionRepository) ListPending(ctx context.Context, route domain.LedgerRoute) ([]*domain.TollTransaction, error) {
	args := m.Called(ctx, route)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TollTransaction), args.Error(1)
}

func (m *MockTollTransactionRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTollTransactionRepository) Release(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTollTransactionRepository) MarkAccounted(ctx context.Context, id uuid.UUID, externalRef string) error {
	args := m.Called(ctx, id, externalRef)
	return args.Error(0)
}

func (m *MockTollTransactionRepository) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockTollTransactionRepository) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusCounts), args.Error(1)
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

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	txRepo := new(MockTollTransactionRepository)
	ccRepo := new(MockCostCenterRepository)

	txRepo.On("CountByStatus", ctx).Return(&domain.StatusCounts{
		Pending:   12,
		Accounted: 340,
		Errored:   3,
	}, nil)
	ccRepo.On("ListActive", ctx).Return([]*domain.CostCenter{
		{ID: 1, Name: "WOR123", Active: true},
		{ID: 2, Name: "XYZ789", Active: true},
	}, nil)

	summary, err := NewService(txRepo, ccRepo).Summarize(ctx)
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Pending)
	assert.Equal(t, 340, summary.Accounted)
	assert.Equal(t, 3, summary.Errored)
	assert.Equal(t, 355, summary.Total)
	assert.Equal(t, 2, summary.CostCenters)
}

func TestSummarize_CountFailure(t *testing.T) {
	ctx := context.Background()
	txRepo := new(MockTollTransactionRepository)
	txRepo.On("CountByStatus", ctx).Return(nil, errors.New("connection refused"))

	_, err := NewService(txRepo, new(MockCostCenterRepository)).Summarize(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count transactions")
}
