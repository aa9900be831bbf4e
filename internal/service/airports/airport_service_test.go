package airports

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAirportRepository struct {
	mock.Mock
}

func (m *MockAirportRepository) Create(ctx context.Context, airport *domain.Airport) error {
	args := m.Called(ctx, airport)
	return args.Error(0)
}

func (m *MockAirportRepository) List(ctx context.Context) ([]domain.Airport, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Airport), args.Error(1)
}

func (m *MockAirportRepository) GetByCode(ctx context.Context, code string) (*domain.Airport, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Airport), args.Error(1)
}

func (m *MockAirportRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func TestAirportService_Create(t *testing.T) {
	ctx := context.Background()
	repo := &MockAirportRepository{}
	service := NewAirportService(repo)

	repo.On("Create", ctx, mock.MatchedBy(func(a *domain.Airport) bool {
		return a.Code == "SVO" && a.Name == "Sheremetyevo"
	})).Return(nil).Once()

	airport, err := service.Create(ctx, CreateAirportInput{Code: " svo", Name: "Sheremetyevo ", City: "Moscow", Country: "Russia"})
	require.NoError(t, err)
	assert.Equal(t, "SVO", airport.Code)
	repo.AssertExpectations(t)
}

func TestAirportService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	repo := &MockAirportRepository{}
	service := NewAirportService(repo)

	_, err := service.Create(ctx, CreateAirportInput{Code: "SV", Name: "x", City: "y", Country: "z"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.Create(ctx, CreateAirportInput{Code: "SV1", Name: "x", City: "y", Country: "z"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.Create(ctx, CreateAirportInput{Code: "SVO", City: "y", Country: "z"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAirportService_Create_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := &MockAirportRepository{}
	service := NewAirportService(repo)

	repo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicate).Once()

	_, err := service.Create(ctx, CreateAirportInput{Code: "LED", Name: "Pulkovo", City: "Saint Petersburg", Country: "Russia"})
	assert.ErrorIs(t, err, domain.ErrDuplicateAirportCode)
}

func TestAirportService_GetByCode(t *testing.T) {
	ctx := context.Background()
	repo := &MockAirportRepository{}
	service := NewAirportService(repo)

	repo.On("GetByCode", ctx, "KZN").Return(&domain.Airport{Code: "KZN"}, nil).Once()
	repo.On("GetByCode", ctx, "JFK").Return(nil, repository.ErrNotFound).Once()
	repo.On("GetByCode", ctx, "ERR").Return(nil, errors.New("db down")).Once()

	airport, err := service.GetByCode(ctx, "kzn")
	require.NoError(t, err)
	assert.Equal(t, "KZN", airport.Code)

	_, err = service.GetByCode(ctx, "JFK")
	assert.ErrorIs(t, err, domain.ErrAirportNotFound)

	_, err = service.GetByCode(ctx, "ERR")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAirportNotFound)
}

func TestAirportService_Exists(t *testing.T) {
	ctx := context.Background()
	repo := &MockAirportRepository{}
	service := NewAirportService(repo)

	repo.On("ExistsByCode", ctx, "SVO").Return(true, nil).Once()

	ok, err := service.Exists(ctx, "svo")
	require.NoError(t, err)
	assert.True(t, ok)
}
