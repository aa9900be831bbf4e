package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var bookingColumns = []string{
	"id", "reference", "flight_id", "passenger_name", "email", "phone",
	"seats", "total_cents", "status", "expires_at", "created_at", "updated_at",
}

type PGBookingRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db, sb: psql()}
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query, args, err := r.sb.Insert("bookings").
		Columns("reference", "flight_id", "passenger_name", "email", "phone", "seats", "total_cents", "status", "expires_at").
		Values(b.Reference, b.FlightID, b.PassengerName, b.Email, b.Phone, b.Seats, b.TotalCents, string(b.Status), b.ExpiresAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking sql: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *PGBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return r.getOne(ctx, sq.Eq{"reference": reference})
}

func (r *PGBookingRepository) getOne(ctx context.Context, where sq.Eq) (*domain.Booking, error) {
	query, args, err := r.sb.Select(bookingColumns...).From("bookings").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking sql: %w", err)
	}
	return scanBooking(r.db.QueryRow(ctx, query, args...))
}

func (r *PGBookingRepository) ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error) {
	return r.List(ctx, BookingFilter{FlightID: flightID})
}

func (r *PGBookingRepository) List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	return r.list(ctx, listBookingsQuery(r.sb, filter))
}

func listBookingsQuery(sb sq.StatementBuilderType, filter BookingFilter) sq.SelectBuilder {
	q := sb.Select(bookingColumns...).From("bookings")
	if filter.FlightID != 0 {
		q = q.Where(sq.Eq{"flight_id": filter.FlightID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	return q.OrderBy("id")
}

func (r *PGBookingRepository) TransitionStatus(ctx context.Context, id int64, from []domain.BookingStatus, to domain.BookingStatus) (*domain.Booking, error) {
	update := r.sb.Update("bookings").
		Set("status", string(to)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": statusStrings(from)})
	if to == domain.BookingStatusConfirmed {
		update = update.Set("expires_at", nil)
	}

	query, args, err := update.Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition booking sql: %w", err)
	}
	return r.conditional(ctx, id, query, args)
}

func (r *PGBookingRepository) UpdateSeats(ctx context.Context, id int64, expectedSeats, seats int, totalCents int64) (*domain.Booking, error) {
	query, args, err := r.sb.Update("bookings").
		Set("seats", seats).
		Set("total_cents", totalCents).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"seats": expectedSeats}).
		Where(sq.Eq{"status": statusStrings(domain.ActiveStatuses)}).
		Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update booking seats sql: %w", err)
	}
	return r.conditional(ctx, id, query, args)
}

func (r *PGBookingRepository) UpdateDetails(ctx context.Context, id int64, details domain.PassengerDetails) (*domain.Booking, error) {
	update := r.sb.Update("bookings").Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})
	if details.PassengerName != nil {
		update = update.Set("passenger_name", *details.PassengerName)
	}
	if details.Email != nil {
		update = update.Set("email", *details.Email)
	}
	if details.Phone != nil {
		update = update.Set("phone", *details.Phone)
	}

	query, args, err := update.Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update booking details sql: %w", err)
	}
	return scanBooking(r.db.QueryRow(ctx, query, args...))
}

func (r *PGBookingRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete("bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking sql: %w", err)
	}
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGBookingRepository) SumActiveSeats(ctx context.Context, flightID int64) (int, error) {
	query, args, err := r.sb.Select("COALESCE(SUM(seats), 0)").From("bookings").
		Where(sq.Eq{"flight_id": flightID}).
		Where(sq.Eq{"status": statusStrings(domain.ActiveStatuses)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum active seats sql: %w", err)
	}

	var sum int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum active seats: %w", err)
	}
	return sum, nil
}

func (r *PGBookingRepository) ListExpiredPending(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	return r.list(ctx, r.sb.Select(bookingColumns...).From("bookings").
		Where(sq.Eq{"status": string(domain.BookingStatusPending)}).
		Where(sq.LtOrEq{"expires_at": deadline}).
		OrderBy("expires_at"))
}

func (r *PGBookingRepository) ListActiveByFlightStatus(ctx context.Context, status domain.FlightStatus) ([]domain.Booking, error) {
	cols := make([]string, 0, len(bookingColumns))
	for _, c := range bookingColumns {
		cols = append(cols, "b."+c)
	}
	return r.list(ctx, r.sb.Select(cols...).From("bookings b").
		Join("flights f ON f.id = b.flight_id").
		Where(sq.Eq{"f.status": string(status)}).
		Where(sq.Eq{"b.status": statusStrings(domain.ActiveStatuses)}).
		OrderBy("b.id"))
}

// conditional runs an UPDATE ... RETURNING guarded by a precondition and tells a
// missing row apart from a precondition that no longer holds.
func (r *PGBookingRepository) conditional(ctx context.Context, id int64, query string, args []interface{}) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check booking exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStale
}

func (r *PGBookingRepository) list(ctx context.Context, q sq.SelectBuilder) ([]domain.Booking, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings sql: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Reference, &b.FlightID, &b.PassengerName, &b.Email, &b.Phone,
		&b.Seats, &b.TotalCents, &b.Status, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
