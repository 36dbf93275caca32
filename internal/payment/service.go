package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/auth"
	"github.com/techfussion/bts/internal/db"
	"github.com/techfussion/bts/internal/events"
	"github.com/techfussion/bts/internal/logger"
	"github.com/techfussion/bts/internal/metrics"
	"github.com/techfussion/bts/internal/wallet"
)

const (
	maxReferenceAttempts = 5
	fallbackEmailDomain  = "buk.edu.ng"

	// bookkeepingTimeout bounds writes that must outlive the request context.
	bookkeepingTimeout = 5 * time.Second
)

var (
	ErrAmountTooLow  = errors.New("amount is below the minimum payment")
	ErrGateway       = errors.New("payment could not be initialized")
	ErrPaymentFailed = errors.New("payment verification failed")
)

type ReferenceGenerator interface {
	PaymentReference() string
}

// Notifier sends the payment receipt. Implemented by the email queue.
type Notifier interface {
	SendPaymentReceipt(ctx context.Context, to, username, reference, amount string) error
}

type Service interface {
	Initiate(ctx context.Context, caller auth.Caller, amount decimal.Decimal) (*InitiateResponse, error)
	Verify(ctx context.Context, caller auth.Caller, reference string) (*VerifyResult, error)
	ListForUser(ctx context.Context, userID int) ([]Payment, error)
}

type service struct {
	repo      Repository
	ledger    wallet.Ledger
	txr       db.Transactor
	gateway   Gateway
	gen       ReferenceGenerator
	notifier  Notifier
	publisher events.Publisher
	minAmount decimal.Decimal
}

func NewService(
	repo Repository,
	ledger wallet.Ledger,
	txr db.Transactor,
	gateway Gateway,
	gen ReferenceGenerator,
	notifier Notifier,
	publisher events.Publisher,
	minAmount decimal.Decimal,
) Service {
	return &service{
		repo:      repo,
		ledger:    ledger,
		txr:       txr,
		gateway:   gateway,
		gen:       gen,
		notifier:  notifier,
		publisher: publisher,
		minAmount: minAmount,
	}
}

func CreditDescription(reference string) string {
	return "Paystack Payment - Ref: " + reference
}

func contactEmail(caller auth.Caller) string {
	if caller.Email != "" {
		return caller.Email
	}
	return caller.Username + "@" + fallbackEmailDomain
}

// Initiate records a PENDING payment and asks the gateway for a checkout URL. No funds move.
func (s *service) Initiate(ctx context.Context, caller auth.Caller, amount decimal.Decimal) (*InitiateResponse, error) {
	if amount.LessThan(s.minAmount) {
		return nil, ErrAmountTooLow
	}
	if err := wallet.ValidateAmount(amount); err != nil {
		return nil, err
	}

	p, err := s.createPending(ctx, caller.UserID, amount, contactEmail(caller))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	authz, err := s.gateway.Initialize(ctx, p.Email, ToMinor(amount), p.Reference)
	metrics.RecordGatewayRequest("initialize", gatewayResult(err), time.Since(start).Seconds())
	if err != nil {
		bctx, cancel := detached(ctx)
		defer cancel()
		if _, markErr := s.repo.MarkFailed(bctx, p.ID); markErr != nil {
			logger.Error("Failed to mark payment as failed", "reference", p.Reference, "error", markErr)
		}
		metrics.RecordPayment(string(StatusFailed))
		s.publish(bctx, events.PaymentFailed, p)
		logger.Warn("Payment initialization failed", "reference", p.Reference, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	metrics.RecordPayment(string(StatusPending))
	logger.Info("Payment initialized", "user_id", caller.UserID, "reference", p.Reference, "amount", amount.StringFixed(2))

	return &InitiateResponse{
		AuthorizationURL: authz.AuthorizationURL,
		Reference:        p.Reference,
		Amount:           p.Amount,
	}, nil
}

func (s *service) createPending(ctx context.Context, userID int, amount decimal.Decimal, email string) (*Payment, error) {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		p, err := s.repo.Create(ctx, &Payment{
			UserID:    userID,
			Amount:    amount,
			Reference: s.gen.PaymentReference(),
			Email:     email,
		})
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return nil, fmt.Errorf("create payment: %w", err)
		}
		metrics.RecordReferenceCollision()
	}
	return nil, ErrDuplicateReference
}

// Verify asks the gateway about a payment and credits the wallet once on success.
// The gateway call happens outside any database transaction.
func (s *service) Verify(ctx context.Context, caller auth.Caller, reference string) (*VerifyResult, error) {
	p, err := s.repo.GetByReferenceForUser(ctx, caller.UserID, reference)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusSuccess {
		return &VerifyResult{Payment: p, AlreadyProcessed: true}, nil
	}

	start := time.Now()
	v, err := s.gateway.Verify(ctx, reference)
	metrics.RecordGatewayRequest("verify", gatewayResult(err), time.Since(start).Seconds())
	if err != nil {
		logger.Warn("Payment verification unavailable", "reference", reference, "error", err)
		if errors.Is(err, ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	if !v.Success {
		return nil, s.fail(ctx, p, "gateway status "+v.Status)
	}
	if v.AmountMinor != 0 && v.AmountMinor != ToMinor(p.Amount) {
		logger.Error("Gateway amount mismatch",
			"reference", reference,
			"expected_minor", ToMinor(p.Amount),
			"gateway_minor", v.AmountMinor,
		)
		return nil, s.fail(ctx, p, "amount mismatch")
	}

	return s.settle(ctx, caller, reference)
}

func (s *service) settle(ctx context.Context, caller auth.Caller, reference string) (*VerifyResult, error) {
	result := &VerifyResult{}

	err := s.txr.WithinTx(ctx, func(tx *sqlx.Tx) error {
		p, err := s.repo.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if p.Status == StatusSuccess {
			result.Payment = p
			result.AlreadyProcessed = true
			return nil
		}

		if err := s.repo.MarkSuccess(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("mark payment success: %w", err)
		}

		entry, err := s.ledger.Credit(ctx, tx, p.UserID, p.Amount, CreditDescription(reference))
		if err != nil {
			return err
		}

		p.Status = StatusSuccess
		result.Payment = p
		result.Balance = &entry.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyProcessed {
		return result, nil
	}

	p := result.Payment
	metrics.RecordPayment(string(StatusSuccess))
	metrics.RecordWalletMovement(string(wallet.KindCredit), "paystack")
	logger.Info("Payment verified", "user_id", p.UserID, "reference", reference, "amount", p.Amount.StringFixed(2))
	s.publish(ctx, events.PaymentSucceeded, p)

	if err := s.notifier.SendPaymentReceipt(ctx, p.Email, caller.Username, reference, p.Amount.StringFixed(2)); err != nil {
		logger.Warn("Failed to queue payment receipt", "reference", reference, "error", err)
	}

	return result, nil
}

func (s *service) fail(ctx context.Context, p *Payment, reason string) error {
	bctx, cancel := detached(ctx)
	defer cancel()

	changed, err := s.repo.MarkFailed(bctx, p.ID)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if changed {
		metrics.RecordPayment(string(StatusFailed))
		s.publish(bctx, events.PaymentFailed, p)
	}
	logger.Warn("Payment verification failed", "reference", p.Reference, "reason", reason)
	return ErrPaymentFailed
}

func (s *service) ListForUser(ctx context.Context, userID int) ([]Payment, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) publish(ctx context.Context, eventType string, p *Payment) {
	e := events.New(eventType, "user:"+strconv.Itoa(p.UserID), map[string]interface{}{
		"payment_id": p.ID,
		"user_id":    p.UserID,
		"reference":  p.Reference,
		"amount":     p.Amount.StringFixed(2),
	})
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Warn("Failed to publish payment event", "type", eventType, "error", err)
	}
}

// detached keeps the request values but not its cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func gatewayResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrGatewayUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}
