package payment

import (
	"context"
	"errors"
)

var (
	// ErrGatewayUnavailable is a transport failure. The payment is left as it was and the call may be retried.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the gateway answered and refused the request.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
)

type Gateway interface {
	Initialize(ctx context.Context, email string, amountMinor int64, reference string) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}
