package wallet

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walletColumns = []string{"id", "user_id", "balance", "created_at", "updated_at"}

func setupWalletMock(t *testing.T) (Repository, *sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, sqlxDB, mock, closer
}

func TestCreate_StartsAtZero(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets (user_id)")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(5, 10, "0.00", time.Now(), time.Now()))
	mock.ExpectCommit()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	w, err := repo.Create(ctx, tx, 10)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 5, w.ID)
	assert.True(t, w.Balance.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUserID_NotFound(t *testing.T) {
	repo, _, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	w, err := repo.GetByUserID(context.Background(), 99)
	assert.Nil(t, w)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestLockByUserID_UsesForUpdate(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM wallets\s+WHERE user_id = \$1\s+FOR UPDATE`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(7, 20, "2000.00", time.Now(), time.Now()))
	mock.ExpectRollback()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	w, err := repo.LockByUserID(context.Background(), tx, 20)
	require.NoError(t, err)
	assert.Equal(t, 7, w.ID)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(2000)))
}

func TestUpdateBalanceAndInsertTransaction(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	ctx := context.Background()
	newBalance := decimal.RequireFromString("1800.00")
	amount := decimal.RequireFromString("200.00")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE wallets\s+SET balance = \$1, updated_at = NOW\(\)\s+WHERE id = \$2`).
		WithArgs(newBalance, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallet_transactions (wallet_id, kind, amount, balance_after, description)")).
		WithArgs(7, KindDebit, amount, newBalance, "Bus Ticket Purchase").
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "kind", "amount", "balance_after", "description", "created_at"}).
			AddRow(1, 7, "DEBIT", "200.00", "1800.00", "Bus Ticket Purchase", time.Now()))
	mock.ExpectCommit()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	require.NoError(t, repo.UpdateBalance(ctx, tx, 7, newBalance))
	entry, err := repo.InsertTransaction(ctx, tx, &Transaction{
		WalletID:     7,
		Kind:         KindDebit,
		Amount:       amount,
		BalanceAfter: newBalance,
		Description:  "Bus Ticket Purchase",
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, KindDebit, entry.Kind)
	assert.True(t, entry.BalanceAfter.Equal(newBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactions_DefaultLimit(t *testing.T) {
	repo, _, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(`SELECT .* FROM wallet_transactions\s+WHERE wallet_id = \$1\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(7, 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "kind", "amount", "balance_after", "description", "created_at"}).
			AddRow(2, 7, "DEBIT", "200.00", "300.00", "Bus Ticket Purchase", time.Now()).
			AddRow(1, 7, "CREDIT", "500.00", "500.00", "Manual Wallet Funding", time.Now()))

	txs, err := repo.GetTransactions(context.Background(), 7, 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, KindDebit, txs[0].Kind)
	assert.Equal(t, KindCredit, txs[1].Kind)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		credits  string
		debits   string
		balanced bool
	}{
		{"balanced", "300.00", "500.00", "200.00", true},
		{"drifted", "350.00", "500.00", "200.00", false},
		{"empty ledger", "0.00", "0", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, mock, close := setupWalletMock(t)
			defer close()

			mock.ExpectQuery(`FROM wallets w\s+LEFT JOIN wallet_transactions t`).
				WithArgs(3).
				WillReturnRows(sqlmock.NewRows([]string{"wallet_id", "user_id", "balance", "credits", "debits"}).
					AddRow(9, 3, tt.balance, tt.credits, tt.debits))

			rec, err := repo.Reconcile(context.Background(), 3)
			require.NoError(t, err)
			assert.Equal(t, tt.balanced, rec.Balanced)
			assert.Equal(t, 9, rec.WalletID)
		})
	}
}
