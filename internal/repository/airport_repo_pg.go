package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGAirportRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewAirportRepository(db *pgxpool.Pool) AirportRepository {
	return &PGAirportRepository{db: db, sb: psql()}
}

func (r *PGAirportRepository) Create(ctx context.Context, a *domain.Airport) error {
	query, args, err := r.sb.Insert("airports").
		Columns("code", "name", "city", "country").
		Values(a.Code, a.Name, a.City, a.Country).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create airport sql: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&a.ID, &a.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create airport: %w", err)
	}
	return nil
}

func (r *PGAirportRepository) List(ctx context.Context) ([]domain.Airport, error) {
	query, args, err := r.sb.Select("id", "code", "name", "city", "country", "created_at").
		From("airports").OrderBy("code").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list airports sql: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list airports: %w", err)
	}
	defer rows.Close()

	airports := make([]domain.Airport, 0)
	for rows.Next() {
		var a domain.Airport
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.City, &a.Country, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan airport: %w", err)
		}
		airports = append(airports, a)
	}
	return airports, rows.Err()
}

func (r *PGAirportRepository) GetByCode(ctx context.Context, code string) (*domain.Airport, error) {
	query, args, err := r.sb.Select("id", "code", "name", "city", "country", "created_at").
		From("airports").Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get airport sql: %w", err)
	}

	var a domain.Airport
	if err := r.db.QueryRow(ctx, query, args...).Scan(&a.ID, &a.Code, &a.Name, &a.City, &a.Country, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get airport: %w", err)
	}
	return &a, nil
}

func (r *PGAirportRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM airports WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check airport exists: %w", err)
	}
	return exists, nil
}

var _ AirportRepository = (*PGAirportRepository)(nil)
