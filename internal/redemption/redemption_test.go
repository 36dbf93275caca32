package redemption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/techfussion/bts/internal/booking"
)

type MockRedeemer struct {
	mock.Mock
}

func (m *MockRedeemer) Redeem(ctx context.Context, reference string) (*booking.RedeemResult, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.RedeemResult), args.Error(1)
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "full payload",
			payload: "BOOKING:BUK1A2B3C4D|TICKET:TKT0123456789|USER:student1",
			want:    map[string]string{"BOOKING": "BUK1A2B3C4D", "TICKET": "TKT0123456789", "USER": "student1"},
		},
		{
			name:    "booking only with whitespace",
			payload: " BOOKING : BUK1A2B3C4D ",
			want:    map[string]string{"BOOKING": "BUK1A2B3C4D"},
		},
		{name: "garbage", payload: "garbage", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
		{name: "double colon", payload: "BOOKING:BUK:1", wantErr: true},
		{name: "missing booking key", payload: "TICKET:TKT0123456789|USER:student1", wantErr: true},
		{name: "empty booking value", payload: "BOOKING:|USER:student1", wantErr: true},
		{name: "trailing separator", payload: "BOOKING:BUK1A2B3C4D|", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerify_MalformedSkipsLookup(t *testing.T) {
	m := new(MockRedeemer)
	v := NewVerifier(m)

	_, err := v.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrMalformedPayload)
	m.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything)
}

func TestVerify_Outcomes(t *testing.T) {
	snapshot := &booking.Snapshot{
		Reference:    "BUK1A2B3C4D",
		TicketNumber: "TKT0123456789",
		User:         "student1",
		Fare:         "200.00",
		BookingDate:  "2024-03-01 08:15",
		Status:       booking.StatusUsed,
	}

	tests := []struct {
		name        string
		result      *booking.RedeemResult
		wantSuccess bool
		wantMessage string
		wantBooking bool
	}{
		{"redeemed", &booking.RedeemResult{Outcome: booking.OutcomeRedeemed, Snapshot: snapshot}, true, MessageVerified, true},
		{"already used", &booking.RedeemResult{Outcome: booking.OutcomeAlreadyUsed}, false, MessageAlreadyUsed, false},
		{"expired", &booking.RedeemResult{Outcome: booking.OutcomeExpired}, false, MessageExpired, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockRedeemer)
			m.On("Redeem", mock.Anything, "BUK1A2B3C4D").Return(tt.result, nil)

			res, err := NewVerifier(m).Verify(context.Background(), "BOOKING:BUK1A2B3C4D|TICKET:TKT0123456789|USER:student1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantMessage, res.Message)
			assert.Equal(t, tt.wantBooking, res.Booking != nil)
		})
	}
}

func TestVerify_NotFound(t *testing.T) {
	m := new(MockRedeemer)
	m.On("Redeem", mock.Anything, "BUK00000000").Return(nil, booking.ErrTicketNotFound)

	_, err := NewVerifier(m).Verify(context.Background(), "BOOKING:BUK00000000")
	assert.ErrorIs(t, err, booking.ErrTicketNotFound)
}
