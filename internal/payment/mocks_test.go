package payment

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/techfussion/bts/internal/wallet"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p *Payment) (*Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) GetByReferenceForUser(ctx context.Context, userID int, reference string) (*Payment, error) {
	args := m.Called(ctx, userID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) LockByReference(ctx context.Context, tx *sqlx.Tx, reference string) (*Payment, error) {
	args := m.Called(ctx, tx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) MarkSuccess(ctx context.Context, tx *sqlx.Tx, id int) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockRepository) MarkFailed(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID int) ([]Payment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initialize(ctx context.Context, email string, amountMinor int64, reference string) (*Authorization, error) {
	args := m.Called(ctx, email, amountMinor, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Authorization), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verification), args.Error(1)
}

// MockLedger implements wallet.Ledger. Only Credit is exercised by payments.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Open(ctx context.Context, tx *sqlx.Tx, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, tx, userID)
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockLedger) Credit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*wallet.Transaction, error) {
	args := m.Called(ctx, tx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *MockLedger) Debit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*wallet.Transaction, error) {
	args := m.Called(ctx, tx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *MockLedger) Fund(ctx context.Context, userID int, amount decimal.Decimal) (*wallet.Transaction, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *MockLedger) Balance(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockLedger) Transactions(ctx context.Context, userID int, limit, offset int) ([]wallet.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]wallet.Transaction), args.Error(1)
}

func (m *MockLedger) Reconcile(ctx context.Context, userID int) (*wallet.Reconciliation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Reconciliation), args.Error(1)
}

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fixedReferences struct {
	refs []string
}

func (g *fixedReferences) PaymentReference() string {
	ref := g.refs[0]
	if len(g.refs) > 1 {
		g.refs = g.refs[1:]
	}
	return ref
}

type recordingNotifier struct {
	receipts []string
}

func (n *recordingNotifier) SendPaymentReceipt(_ context.Context, to, _, reference, amount string) error {
	n.receipts = append(n.receipts, to+":"+reference+":"+amount)
	return nil
}
