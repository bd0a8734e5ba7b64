// Package payment defines the card-charging capability used by the
// booking transaction and a simulated processor that stands in for a
// real gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/screening-reservation/internal/model"
)

var (
	// ErrDeclined is returned when the processor refuses a charge.
	ErrDeclined = errors.New("payment declined")
	// ErrUnknownTransaction is returned when refunding an unknown charge.
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// Card holds the card details submitted with a booking.
type Card struct {
	Number      string `json:"card_number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

// Last4 returns the last four digits of the card number, or an empty
// string when the number is too short.
func (c Card) Last4() string {
	n := cleanNumber(c.Number)
	if len(n) < 4 {
		return ""
	}
	return n[len(n)-4:]
}

// Receipt is returned for an approved charge.
type Receipt struct {
	TransactionID string
	Amount        model.Cents
	CardLast4     string
	Message       string
}

// Processor charges cards.  Implementations must return an error
// wrapping ErrDeclined for refusals; any other error is treated as a
// processor failure.
type Processor interface {
	Charge(ctx context.Context, card Card, amount model.Cents) (Receipt, error)
}

// Refunder is implemented by processors that can reverse a charge.
type Refunder interface {
	Refund(ctx context.Context, transactionID string) error
}

// Refunds are only issued right after a charge, when the reservation
// could not be stored, so charges are remembered for a bounded window.
const (
	refundWindow = time.Hour
	maxCharges   = 10000
)

type charge struct {
	amount model.Cents
	at     time.Time
}

// Simulated approves well-formed, unexpired Visa cards (16 digits
// starting with 4) and declines everything else.
type Simulated struct {
	// Latency delays every charge to mimic a remote gateway.
	Latency time.Duration
	now     func() time.Time
	window  time.Duration
	limit   int

	mu      sync.Mutex
	charges map[string]charge
	order   []string // transaction ids, oldest first
}

// NewSimulated returns a simulated processor with the given latency.
func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{
		Latency: latency,
		now:     time.Now,
		window:  refundWindow,
		limit:   maxCharges,
		charges: make(map[string]charge),
	}
}

// Charge validates the card and records the charge.
func (p *Simulated) Charge(ctx context.Context, card Card, amount model.Cents) (Receipt, error) {
	if p.Latency > 0 {
		t := time.NewTimer(p.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-t.C:
		}
	}
	now := p.now().UTC()
	number := cleanNumber(card.Number)
	if len(number) != 16 || !allDigits(number) {
		return Receipt{}, fmt.Errorf("%w: card number must be 16 digits", ErrDeclined)
	}
	if number[0] != '4' {
		return Receipt{}, fmt.Errorf("%w: only Visa cards are accepted", ErrDeclined)
	}
	if card.ExpiryMonth != 0 || card.ExpiryYear != 0 {
		if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
			return Receipt{}, fmt.Errorf("%w: invalid expiry month", ErrDeclined)
		}
		// cards are valid through the last day of the expiry month
		expires := time.Date(card.ExpiryYear, time.Month(card.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
		if !now.Before(expires) {
			return Receipt{}, fmt.Errorf("%w: card expired", ErrDeclined)
		}
	}
	if amount < 0 {
		return Receipt{}, fmt.Errorf("%w: negative amount", ErrDeclined)
	}
	txn := "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	p.mu.Lock()
	p.prune(now)
	p.charges[txn] = charge{amount: amount, at: now}
	p.order = append(p.order, txn)
	p.mu.Unlock()
	return Receipt{
		TransactionID: txn,
		Amount:        amount,
		CardLast4:     number[12:],
		Message:       "Payment processed successfully (simulated)",
	}, nil
}

// prune forgets charges older than the refund window and the oldest
// ones beyond the limit.  Callers hold p.mu.
func (p *Simulated) prune(now time.Time) {
	cutoff := now.Add(-p.window)
	i := 0
	for ; i < len(p.order); i++ {
		c, ok := p.charges[p.order[i]]
		if ok && c.at.After(cutoff) && len(p.charges) < p.limit {
			break
		}
		delete(p.charges, p.order[i])
	}
	p.order = p.order[i:]
}

// Refund forgets a recorded charge.
func (p *Simulated) Refund(ctx context.Context, transactionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.charges[transactionID]; !ok {
		return ErrUnknownTransaction
	}
	delete(p.charges, transactionID)
	return nil
}

// Charged reports whether transactionID is a recorded, unrefunded charge.
func (p *Simulated) Charged(transactionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.charges[transactionID]
	return ok
}

func cleanNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
