package redemption

import (
	"context"
	"errors"
	"strings"

	"github.com/techfussion/bts/internal/booking"
)

const (
	MessageVerified    = "Ticket verified successfully!"
	MessageAlreadyUsed = "Ticket already used!"
	MessageExpired     = "Ticket has expired!"

	keyBooking = "BOOKING"
)

var ErrMalformedPayload = errors.New("malformed ticket payload")

// Redeemer is the booking operation the verifier delegates to.
type Redeemer interface {
	Redeem(ctx context.Context, reference string) (*booking.RedeemResult, error)
}

type Result struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Booking *booking.Snapshot `json:"booking"`
}

// ParsePayload splits KEY1:VAL1|KEY2:VAL2 into a map. Every segment needs exactly one
// colon and the BOOKING key must be present.
func ParsePayload(payload string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, segment := range strings.Split(payload, "|") {
		if strings.Count(segment, ":") != 1 {
			return nil, ErrMalformedPayload
		}
		key, value, _ := strings.Cut(segment, ":")
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if fields[keyBooking] == "" {
		return nil, ErrMalformedPayload
	}
	return fields, nil
}

type Verifier struct {
	redeemer Redeemer
}

func NewVerifier(redeemer Redeemer) *Verifier {
	return &Verifier{redeemer: redeemer}
}

// Verify parses a scanned payload and redeems the booking it names.
// booking.ErrTicketNotFound is returned as an error.
func (v *Verifier) Verify(ctx context.Context, payload string) (*Result, error) {
	fields, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	res, err := v.redeemer.Redeem(ctx, fields[keyBooking])
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case booking.OutcomeRedeemed:
		return &Result{Success: true, Message: MessageVerified, Booking: res.Snapshot}, nil
	case booking.OutcomeExpired:
		return &Result{Success: false, Message: MessageExpired}, nil
	default:
		return &Result{Success: false, Message: MessageAlreadyUsed}, nil
	}
}
