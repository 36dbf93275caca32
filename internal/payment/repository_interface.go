package payment

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) (*Payment, error)
	GetByReferenceForUser(ctx context.Context, userID int, reference string) (*Payment, error)
	LockByReference(ctx context.Context, tx *sqlx.Tx, reference string) (*Payment, error)
	MarkSuccess(ctx context.Context, tx *sqlx.Tx, id int) error
	MarkFailed(ctx context.Context, id int) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]Payment, error)
}
