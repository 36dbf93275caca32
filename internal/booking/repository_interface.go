package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error)
	SetQRCode(ctx context.Context, tx *sqlx.Tx, id int, filename string, png []byte) error
	GetByReferenceForUpdate(ctx context.Context, tx *sqlx.Tx, reference string) (*BookingWithUser, error)
	MarkUsed(ctx context.Context, tx *sqlx.Tx, id int) (time.Time, error)
	ListByUser(ctx context.Context, userID int) ([]Booking, error)
	GetForUser(ctx context.Context, userID, id int) (*Booking, error)
	ListAll(ctx context.Context, filter ListFilter) ([]BookingWithUser, error)
	Stats(ctx context.Context) (*Stats, error)
	Daily(ctx context.Context, from, to time.Time) ([]DailyStats, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
