package booking

import (
	"strings"

	"github.com/google/uuid"
)

// Generator issues the human-shareable identifiers for bookings and payments.
type Generator interface {
	BookingReference() string
	TicketNumber() string
	PaymentReference() string
}

type uuidGenerator struct{}

func NewGenerator() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) BookingReference() string {
	return "BUK" + randomHex(8)
}

func (uuidGenerator) TicketNumber() string {
	return "TKT" + randomHex(10)
}

func (uuidGenerator) PaymentReference() string {
	return "PAY" + randomHex(16)
}

// randomHex returns n upper-case hex characters taken from a v4 uuid.
func randomHex(n int) string {
	id := uuid.New()
	s := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return s[:n]
}
