package integration_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techfussion/bts/internal/db"
	"github.com/techfussion/bts/internal/wallet"
)

func TestWalletFundAndReconcile_Integration(t *testing.T) {
	conn := setupTestDB(t)
	ledger := newLedger(conn)
	ctx := context.Background()

	student := createStudent(t, conn, ledger, "walletuser")

	w, err := ledger.Balance(ctx, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", w.Balance.StringFixed(2))

	_, err = ledger.Fund(ctx, student.UserID, dec("500.00"))
	require.NoError(t, err)

	err = db.NewTransactor(conn).WithinTx(ctx, func(tx *sqlx.Tx) error {
		_, err := ledger.Debit(ctx, tx, student.UserID, dec("200.00"), "Bus Ticket Purchase")
		return err
	})
	require.NoError(t, err)

	w, err = ledger.Balance(ctx, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", w.Balance.StringFixed(2))

	rec, err := ledger.Reconcile(ctx, student.UserID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.Equal(t, "500.00", rec.Credits.StringFixed(2))
	assert.Equal(t, "200.00", rec.Debits.StringFixed(2))

	txs, err := ledger.Transactions(ctx, student.UserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, wallet.KindDebit, txs[0].Kind)
}

func TestWalletOverdraftRollsBack_Integration(t *testing.T) {
	conn := setupTestDB(t)
	ledger := newLedger(conn)
	ctx := context.Background()

	student := createStudent(t, conn, ledger, "pooruser")
	_, err := ledger.Fund(ctx, student.UserID, dec("100.00"))
	require.NoError(t, err)

	err = db.NewTransactor(conn).WithinTx(ctx, func(tx *sqlx.Tx) error {
		_, err := ledger.Debit(ctx, tx, student.UserID, dec("200.00"), "Bus Ticket Purchase")
		return err
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	w, err := ledger.Balance(ctx, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", w.Balance.StringFixed(2))

	txs, err := ledger.Transactions(ctx, student.UserID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
