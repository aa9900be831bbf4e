package airports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/validation"
)

type AirportUseCase interface {
	Create(ctx context.Context, input CreateAirportInput) (*domain.Airport, error)
	List(ctx context.Context) ([]domain.Airport, error)
	GetByCode(ctx context.Context, code string) (*domain.Airport, error)
	Exists(ctx context.Context, code string) (bool, error)
}

type CreateAirportInput struct {
	Code    string `json:"code" validate:"required,len=3,alpha"`
	Name    string `json:"name" validate:"required,max=128"`
	City    string `json:"city" validate:"required,max=128"`
	Country string `json:"country" validate:"required,max=64"`
}

type AirportService struct {
	repo repository.AirportRepository
}

func NewAirportService(repo repository.AirportRepository) *AirportService {
	return &AirportService{repo: repo}
}

func (s *AirportService) Create(ctx context.Context, input CreateAirportInput) (*domain.Airport, error) {
	input.Code = NormalizeCode(input.Code)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	airport := &domain.Airport{
		Code:    input.Code,
		Name:    strings.TrimSpace(input.Name),
		City:    strings.TrimSpace(input.City),
		Country: strings.TrimSpace(input.Country),
	}
	if err := s.repo.Create(ctx, airport); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("airport %s: %w", input.Code, domain.ErrDuplicateAirportCode)
		}
		return nil, fmt.Errorf("create airport: %w", err)
	}
	return airport, nil
}

func (s *AirportService) List(ctx context.Context) ([]domain.Airport, error) {
	return s.repo.List(ctx)
}

func (s *AirportService) GetByCode(ctx context.Context, code string) (*domain.Airport, error) {
	airport, err := s.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("airport %s: %w", code, domain.ErrAirportNotFound)
		}
		return nil, err
	}
	return airport, nil
}

func (s *AirportService) Exists(ctx context.Context, code string) (bool, error) {
	return s.repo.ExistsByCode(ctx, NormalizeCode(code))
}

// NormalizeCode upper-cases and trims an IATA code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var _ AirportUseCase = (*AirportService)(nil)
