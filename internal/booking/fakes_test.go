package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/events"
	"github.com/techfussion/bts/internal/wallet"
)

// memStore backs the fake repository and ledger. WithinTx holds the store lock for the
// whole unit of work and restores the previous state when fn fails.
type memStore struct {
	mu        sync.Mutex
	balances  map[int]decimal.Decimal
	entries   []wallet.Transaction
	bookings  []BookingWithUser
	usernames map[int]string
	nextID    int
}

func newMemStore() *memStore {
	return &memStore{
		balances:  map[int]decimal.Decimal{},
		usernames: map[int]string{},
	}
}

func (s *memStore) addUser(id int, username string, balance string) {
	s.usernames[id] = username
	s.balances[id] = decimal.RequireFromString(balance)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	balances := make(map[int]decimal.Decimal, len(s.balances))
	for k, v := range s.balances {
		balances[k] = v
	}
	entries := append([]wallet.Transaction(nil), s.entries...)
	bookings := append([]BookingWithUser(nil), s.bookings...)
	nextID := s.nextID

	if err := fn(nil); err != nil {
		s.balances = balances
		s.entries = entries
		s.bookings = bookings
		s.nextID = nextID
		return err
	}
	return nil
}

// memRepository implements Repository over memStore. Methods taking a tx assume the
// store lock is already held by WithinTx.
type memRepository struct {
	store *memStore
}

func (r *memRepository) Create(_ context.Context, _ *sqlx.Tx, b *Booking) (*Booking, error) {
	for _, existing := range r.store.bookings {
		if existing.Reference == b.Reference || existing.TicketNumber == b.TicketNumber {
			return nil, ErrDuplicateReference
		}
	}
	r.store.nextID++
	row := BookingWithUser{
		Booking: Booking{
			ID:           r.store.nextID,
			UserID:       b.UserID,
			Reference:    b.Reference,
			TicketNumber: b.TicketNumber,
			Fare:         b.Fare,
			Status:       StatusActive,
			CreatedAt:    time.Now(),
		},
		Username: r.store.usernames[b.UserID],
	}
	r.store.bookings = append(r.store.bookings, row)
	out := row.Booking
	return &out, nil
}

func (r *memRepository) SetQRCode(_ context.Context, _ *sqlx.Tx, id int, filename string, png []byte) error {
	for i := range r.store.bookings {
		if r.store.bookings[i].ID == id {
			r.store.bookings[i].QRFilename = filename
			r.store.bookings[i].QRCode = png
			return nil
		}
	}
	return ErrTicketNotFound
}

func (r *memRepository) GetByReferenceForUpdate(_ context.Context, _ *sqlx.Tx, reference string) (*BookingWithUser, error) {
	for _, b := range r.store.bookings {
		if b.Reference == reference {
			out := b
			return &out, nil
		}
	}
	return nil, ErrTicketNotFound
}

func (r *memRepository) MarkUsed(_ context.Context, _ *sqlx.Tx, id int) (time.Time, error) {
	for i := range r.store.bookings {
		b := &r.store.bookings[i]
		if b.ID == id {
			if b.Status != StatusActive {
				return time.Time{}, ErrNotActive
			}
			now := time.Now()
			b.Status = StatusUsed
			b.UsedAt = &now
			return now, nil
		}
	}
	return time.Time{}, ErrNotActive
}

func (r *memRepository) ListByUser(_ context.Context, userID int) ([]Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []Booking{}
	for i := len(r.store.bookings) - 1; i >= 0; i-- {
		if r.store.bookings[i].UserID == userID {
			out = append(out, r.store.bookings[i].Booking)
		}
	}
	return out, nil
}

func (r *memRepository) GetForUser(_ context.Context, userID, id int) (*Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, b := range r.store.bookings {
		if b.ID == id && b.UserID == userID {
			out := b.Booking
			return &out, nil
		}
	}
	return nil, ErrTicketNotFound
}

func (r *memRepository) ListAll(_ context.Context, filter ListFilter) ([]BookingWithUser, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	q := strings.ToLower(filter.Query)
	out := []BookingWithUser{}
	for _, b := range r.store.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(b.Reference), q) &&
			!strings.Contains(strings.ToLower(b.TicketNumber), q) &&
			!strings.Contains(strings.ToLower(b.Username), q) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *memRepository) Stats(_ context.Context) (*Stats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stats := &Stats{}
	for _, b := range r.store.bookings {
		stats.Total++
		switch b.Status {
		case StatusActive:
			stats.Active++
		case StatusUsed:
			stats.Used++
		case StatusExpired:
			stats.Expired++
		}
	}
	return stats, nil
}

func (r *memRepository) Daily(_ context.Context, from, to time.Time) ([]DailyStats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []DailyStats{}
	index := map[string]int{}
	for _, b := range r.store.bookings {
		if b.CreatedAt.Before(from) || !b.CreatedAt.Before(to) {
			continue
		}
		day := b.CreatedAt.Format(dayLayout)
		i, ok := index[day]
		if !ok {
			i = len(out)
			index[day] = i
			out = append(out, DailyStats{Day: day})
		}
		out[i].Created++
		if b.Status == StatusUsed {
			out[i].Used++
		}
		out[i].Revenue = out[i].Revenue.Add(b.Fare)
	}
	return out, nil
}

func (r *memRepository) ExpireBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for i := range r.store.bookings {
		b := &r.store.bookings[i]
		if b.Status == StatusActive && b.CreatedAt.Before(cutoff) {
			b.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

// fakeLedger debits and credits memStore balances inside the caller's unit of work.
type fakeLedger struct {
	store *memStore
}

func (l *fakeLedger) Open(_ context.Context, _ *sqlx.Tx, userID int) (*wallet.Wallet, error) {
	l.store.balances[userID] = decimal.Zero
	return &wallet.Wallet{ID: userID, UserID: userID}, nil
}

func (l *fakeLedger) move(userID int, kind wallet.Kind, amount decimal.Decimal, description string) (*wallet.Transaction, error) {
	if err := wallet.ValidateAmount(amount); err != nil {
		return nil, err
	}
	balance, ok := l.store.balances[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if kind == wallet.KindDebit {
		if amount.GreaterThan(balance) {
			return nil, wallet.ErrInsufficientFunds
		}
		balance = balance.Sub(amount)
	} else {
		balance = balance.Add(amount)
	}
	l.store.balances[userID] = balance
	entry := wallet.Transaction{
		ID:           len(l.store.entries) + 1,
		WalletID:     userID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balance,
		Description:  description,
	}
	l.store.entries = append(l.store.entries, entry)
	return &entry, nil
}

func (l *fakeLedger) Credit(_ context.Context, _ *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*wallet.Transaction, error) {
	return l.move(userID, wallet.KindCredit, amount, description)
}

func (l *fakeLedger) Debit(_ context.Context, _ *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*wallet.Transaction, error) {
	return l.move(userID, wallet.KindDebit, amount, description)
}

func (l *fakeLedger) Fund(ctx context.Context, userID int, amount decimal.Decimal) (*wallet.Transaction, error) {
	var entry *wallet.Transaction
	err := l.store.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = l.move(userID, wallet.KindCredit, amount, wallet.ManualFundingDescription)
		return err
	})
	return entry, err
}

func (l *fakeLedger) Balance(_ context.Context, userID int) (*wallet.Wallet, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return &wallet.Wallet{ID: userID, UserID: userID, Balance: l.store.balances[userID]}, nil
}

func (l *fakeLedger) Transactions(_ context.Context, userID int, _, _ int) ([]wallet.Transaction, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	var out []wallet.Transaction
	for _, e := range l.store.entries {
		if e.WalletID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedger) Reconcile(context.Context, int) (*wallet.Reconciliation, error) {
	return nil, errors.New("not implemented")
}

// sequenceGenerator replays fixed identifiers before falling back to random ones.
type sequenceGenerator struct {
	refs    []string
	tickets []string
	random  Generator
}

func (g *sequenceGenerator) BookingReference() string {
	if len(g.refs) == 0 {
		return g.random.BookingReference()
	}
	ref := g.refs[0]
	g.refs = g.refs[1:]
	return ref
}

func (g *sequenceGenerator) TicketNumber() string {
	if len(g.tickets) == 0 {
		return g.random.TicketNumber()
	}
	t := g.tickets[0]
	g.tickets = g.tickets[1:]
	return t
}

func (g *sequenceGenerator) PaymentReference() string {
	return g.random.PaymentReference()
}

type stubEncoder struct {
	err      error
	payloads []string
}

func (e *stubEncoder) Encode(payload string) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.payloads = append(e.payloads, payload)
	return []byte("png:" + payload), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) SendTicketConfirmation(_ context.Context, to, _, reference, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to+":"+reference)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store     *memStore
	ledger    *fakeLedger
	encoder   *stubEncoder
	notifier  *recordingNotifier
	publisher *recordingPublisher
	svc       Service
}

func newFixture(gen Generator) *fixture {
	store := newMemStore()
	f := &fixture{
		store:     store,
		ledger:    &fakeLedger{store: store},
		encoder:   &stubEncoder{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	if gen == nil {
		gen = NewGenerator()
	}
	f.svc = NewService(&memRepository{store: store}, f.ledger, store, gen, f.encoder, f.notifier, f.publisher)
	return f
}
