package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrDuplicateReference = errors.New("payment reference already taken")
)

const paymentColumns = `id, user_id, amount, reference, status, email, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Payment) (*Payment, error) {
	query := `
		INSERT INTO payments (user_id, amount, reference, status, email)
		VALUES ($1, $2, $3, 'PENDING', $4)
		ON CONFLICT (reference) DO NOTHING
		RETURNING ` + paymentColumns

	var out Payment
	err := r.db.GetContext(ctx, &out, query, p.UserID, p.Amount, p.Reference, p.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	return &out, nil
}

func (r *repository) GetByReferenceForUser(ctx context.Context, userID int, reference string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1 AND user_id = $2`

	var p Payment
	err := r.db.GetContext(ctx, &p, query, reference, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) LockByReference(ctx context.Context, tx *sqlx.Tx, reference string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1 FOR UPDATE`

	var p Payment
	err := tx.GetContext(ctx, &p, query, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) MarkSuccess(ctx context.Context, tx *sqlx.Tx, id int) error {
	query := `
		UPDATE payments
		SET status = 'SUCCESS', updated_at = NOW()
		WHERE id = $1 AND status <> 'SUCCESS'
	`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

// MarkFailed only moves PENDING payments. It reports whether a row changed.
func (r *repository) MarkFailed(ctx context.Context, id int) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	payments := []Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, userID); err != nil {
		return nil, err
	}

	return payments, nil
}
