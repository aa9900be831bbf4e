package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/domain"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var flightColumns = []string{
	"id", "flight_number", "from_airport", "to_airport", "departure_time", "arrival_time",
	"aircraft_type", "total_seats", "available_seats", "price_cents", "status", "created_at", "updated_at",
}

type PGFlightRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db, sb: psql()}
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	query, args, err := r.sb.Insert("flights").
		Columns("flight_number", "from_airport", "to_airport", "departure_time", "arrival_time",
			"aircraft_type", "total_seats", "available_seats", "price_cents", "status").
		Values(f.FlightNumber, f.FromAirport, f.ToAirport, f.DepartureTime, f.ArrivalTime,
			f.AircraftType, f.TotalSeats, f.AvailableSeats, f.PriceCents, string(f.Status)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create flight sql: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create flight: %w", err)
	}
	return nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	query, args, err := r.sb.Select(flightColumns...).From("flights").OrderBy("departure_time").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list flights sql: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *PGFlightRepository) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	return r.getOne(ctx, sq.Eq{"flight_number": number})
}

func (r *PGFlightRepository) getOne(ctx context.Context, where sq.Eq) (*domain.Flight, error) {
	query, args, err := r.sb.Select(flightColumns...).From("flights").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get flight sql: %w", err)
	}
	return scanFlight(r.db.QueryRow(ctx, query, args...))
}

func (r *PGFlightRepository) UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error) {
	query, args, err := r.sb.Update("flights").
		Set("status", string(status)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(flightColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update flight status sql: %w", err)
	}
	return scanFlight(r.db.QueryRow(ctx, query, args...))
}

func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete("flights").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete flight sql: %w", err)
	}
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete flight: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompareAndSetAvailable is a single conditional write; the row is only touched if
// available_seats still equals expected.
func (r *PGFlightRepository) CompareAndSetAvailable(ctx context.Context, id int64, expected, next int) (CASResult, error) {
	query, args, err := casAvailableSQL(r.sb, id, expected, next)
	if err != nil {
		return CASConflict, fmt.Errorf("build cas sql: %w", err)
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return CASConflict, fmt.Errorf("cas available seats: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return CASApplied, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM flights WHERE id = $1)`, id).Scan(&exists); err != nil {
		return CASConflict, fmt.Errorf("check flight exists: %w", err)
	}
	if !exists {
		return CASConflict, ErrNotFound
	}
	return CASConflict, nil
}

func casAvailableSQL(sb sq.StatementBuilderType, id int64, expected, next int) (string, []interface{}, error) {
	return sb.Update("flights").
		Set("available_seats", next).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"available_seats": expected}).
		Where("? BETWEEN 0 AND total_seats", next).
		ToSql()
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime,
		&f.AircraftType, &f.TotalSeats, &f.AvailableSeats, &f.PriceCents, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan flight: %w", err)
	}
	return &f, nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
