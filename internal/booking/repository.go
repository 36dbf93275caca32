package booking

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrDuplicateReference = errors.New("booking reference or ticket number already taken")
	ErrNotActive          = errors.New("booking is not active")
)

// likeEscaper makes user input literal inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const bookingColumns = `id, user_id, booking_reference, ticket_number, fare, status, qr_filename, created_at, used_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts an ACTIVE booking. A clash on any unique column returns ErrDuplicateReference
// without aborting the surrounding transaction.
func (r *repository) Create(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings (user_id, booking_reference, ticket_number, fare, status)
		VALUES ($1, $2, $3, $4, 'ACTIVE')
		ON CONFLICT DO NOTHING
		RETURNING ` + bookingColumns

	var booking Booking
	err := tx.QueryRowxContext(ctx, query, b.UserID, b.Reference, b.TicketNumber, b.Fare).StructScan(&booking)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	return &booking, nil
}

func (r *repository) SetQRCode(ctx context.Context, tx *sqlx.Tx, id int, filename string, png []byte) error {
	query := `
		UPDATE bookings
		SET qr_filename = $1, qr_png = $2
		WHERE id = $3
	`

	result, err := tx.ExecContext(ctx, query, filename, png, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketNotFound
	}

	return nil
}

// GetByReferenceForUpdate locks the booking row until tx ends.
func (r *repository) GetByReferenceForUpdate(ctx context.Context, tx *sqlx.Tx, reference string) (*BookingWithUser, error) {
	query := `
		SELECT b.id, b.user_id, b.booking_reference, b.ticket_number, b.fare, b.status,
		       b.qr_filename, b.created_at, b.used_at, u.username
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.booking_reference = $1
		FOR UPDATE OF b
	`

	var booking BookingWithUser
	err := tx.QueryRowxContext(ctx, query, reference).StructScan(&booking)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	return &booking, nil
}

func (r *repository) MarkUsed(ctx context.Context, tx *sqlx.Tx, id int) (time.Time, error) {
	query := `
		UPDATE bookings
		SET status = 'USED', used_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING used_at
	`

	var usedAt time.Time
	err := tx.QueryRowxContext(ctx, query, id).Scan(&usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotActive
		}
		return time.Time{}, err
	}

	return usedAt, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings, query, userID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) GetForUser(ctx context.Context, userID, id int) (*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `, qr_png
		FROM bookings
		WHERE id = $1 AND user_id = $2
	`

	var booking Booking
	err := r.db.GetContext(ctx, &booking, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	return &booking, nil
}

// ListAll returns bookings matching the filter, newest first.
func (r *repository) ListAll(ctx context.Context, filter ListFilter) ([]BookingWithUser, error) {
	query := `
		SELECT b.id, b.user_id, b.booking_reference, b.ticket_number, b.fare, b.status,
		       b.qr_filename, b.created_at, b.used_at, u.username
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE ($1::text = '' OR b.status = $1)
		  AND ($2::text = '' OR b.booking_reference ILIKE $2 OR b.ticket_number ILIKE $2 OR u.username ILIKE $2)
		ORDER BY b.created_at DESC, b.id DESC
	`

	var pattern string
	if filter.Query != "" {
		pattern = "%" + likeEscaper.Replace(filter.Query) + "%"
	}

	bookings := []BookingWithUser{}
	err := r.db.SelectContext(ctx, &bookings, query, string(filter.Status), pattern)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'ACTIVE') AS active,
			COUNT(*) FILTER (WHERE status = 'USED') AS used,
			COUNT(*) FILTER (WHERE status = 'EXPIRED') AS expired
		FROM bookings
	`

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, err
	}

	return &stats, nil
}

func (r *repository) Daily(ctx context.Context, from, to time.Time) ([]DailyStats, error) {
	query := `
		SELECT
			TO_CHAR(DATE(created_at), 'YYYY-MM-DD') AS day,
			COUNT(*) AS created,
			COUNT(*) FILTER (WHERE status = 'USED') AS used,
			COALESCE(SUM(fare), 0) AS revenue
		FROM bookings
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY DATE(created_at)
		ORDER BY DATE(created_at)
	`

	stats := []DailyStats{}
	if err := r.db.SelectContext(ctx, &stats, query, from, to); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *repository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE bookings
		SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
