package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultSubmitTimeout = 15 * time.Second

// Session is one checkout terminal: a cart plus the checkout state machine.
// Every method either fully applies or leaves cart and state untouched.
type Session struct {
	mu      sync.Mutex
	cart    *Cart
	state   State
	payment sales.PaymentMethod
	sale    *sales.Sale

	// reused while a failed snapshot is retried unchanged, so a timed-out
	// submission that did commit is not charged twice
	pendingKey string
	pendingSig string

	catalog       *catalog.Cache
	ledger        Ledger
	actor         Actor
	submitTimeout time.Duration
	newKey        func() string
	log           *zap.Logger
}

type Option func(*Session)

func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.submitTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = logx.OrNop(l) }
}

// WithKeyFunc replaces the idempotency key generator.
func WithKeyFunc(f func() string) Option {
	return func(s *Session) { s.newKey = f }
}

func NewSession(ledger Ledger, cat *catalog.Cache, actor Actor, opts ...Option) *Session {
	s := &Session{
		cart:          NewCart(),
		state:         StateIdle,
		catalog:       cat,
		ledger:        ledger,
		actor:         actor,
		submitTimeout: DefaultSubmitTimeout,
		newKey:        uuid.NewString,
		log:           zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PaymentMethod() sales.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

// LastSale is the sale retained after a successful checkout.
func (s *Session) LastSale() *sales.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sale
}

func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines()
}

func (s *Session) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

func (s *Session) Quantity(itemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Quantity(itemID)
}

// ---- cart mutations ----

func (s *Session) AddItem(item catalog.Item) error {
	return s.mutate(func(c *Cart) error { return c.AddItem(item) })
}

// AddItemByID adds an item from the catalog cache's current results.
func (s *Session) AddItemByID(itemID string) error {
	item, ok := s.catalog.Lookup(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return s.AddItem(item)
}

func (s *Session) RemoveItem(itemID string) error {
	return s.mutate(func(c *Cart) error {
		c.RemoveItem(itemID)
		return nil
	})
}

func (s *Session) ChangeQuantity(itemID string, delta int) error {
	return s.mutate(func(c *Cart) error { return c.ChangeQuantity(itemID, delta) })
}

func (s *Session) ClearCart() error {
	return s.mutate(func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// SyncStock reconciles cart lines with the catalog cache's current results.
func (s *Session) SyncStock() ([]Adjustment, error) {
	var adj []Adjustment
	err := s.mutate(func(c *Cart) error {
		adj = c.Reconcile(s.catalog.Items())
		return nil
	})
	return adj, err
}

func (s *Session) mutate(fn func(*Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSubmitting:
		return ErrSubmissionInProgress
	case StateSucceeded:
		return ErrSaleComplete
	}
	if err := fn(s.cart); err != nil {
		return err
	}
	s.followCartLocked()
	return nil
}

// followCartLocked keeps Idle <-> Reviewing in step with the cart.
func (s *Session) followCartLocked() {
	empty := s.cart.IsEmpty()
	switch {
	case empty && (s.state == StateReviewing || s.state == StateAwaitingPayment):
		s.setStateLocked(StateIdle)
	case !empty && s.state == StateIdle:
		s.setStateLocked(StateReviewing)
	}
}

// ---- checkout ----

// InitiateCheckout moves Reviewing -> AwaitingPayment with cash preselected.
func (s *Session) InitiateCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAwaitingPayment:
		return nil
	case StateSubmitting:
		return ErrSubmissionInProgress
	case StateSucceeded:
		return ErrSaleComplete
	}
	if s.cart.IsEmpty() {
		return ErrEmptyCart
	}
	s.payment = sales.PaymentCash
	return s.transitionLocked(StateAwaitingPayment)
}

func (s *Session) SelectPayment(m sales.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingPayment {
		return fmt.Errorf("%w: select payment in %s", ErrIllegalTransition, s.state)
	}
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, m)
	}
	s.payment = m
	return nil
}

// CancelPayment abandons payment and goes back to reviewing the cart.
// Nothing was sent to the ledger, so this is always safe.
func (s *Session) CancelPayment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle, StateReviewing:
		return nil
	case StateSubmitting:
		return ErrSubmissionInProgress
	}
	return s.transitionLocked(StateReviewing)
}

// Confirm submits the cart to the ledger exactly once. On rejection or
// timeout the cart is preserved and the session returns to AwaitingPayment.
func (s *Session) Confirm(ctx context.Context) (*sales.Sale, error) {
	s.mu.Lock()
	switch {
	case s.state == StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case s.state != StateAwaitingPayment:
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: confirm in %s", ErrIllegalTransition, st)
	}
	pending := sales.PendingSale{
		ActorID:       string(s.actor),
		PaymentMethod: s.payment,
		Items:         s.cart.pendingLines(),
	}
	sig := signature(pending)
	if s.pendingKey == "" || s.pendingSig != sig {
		s.pendingKey, s.pendingSig = s.newKey(), sig
	}
	pending.IdempotencyKey = s.pendingKey
	s.setStateLocked(StateSubmitting)
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	sale, err := s.ledger.CreateSale(cctx, pending)
	timedOut := err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded))
	cancel()
	if err == nil && sale == nil {
		err = errors.New("ledger returned no sale")
	}

	s.mu.Lock()
	if err != nil {
		s.setStateLocked(StateAwaitingPayment)
		s.mu.Unlock()
		serr := s.submissionError(err, timedOut)
		s.log.Warn("sale submission failed",
			zap.String("idempotency_key", pending.IdempotencyKey),
			zap.Int("lines", len(pending.Items)),
			zap.String("reason", serr.Reason),
			zap.Error(err))
		return nil, serr
	}
	s.cart.Clear()
	s.catalog.Invalidate()
	s.sale = sale
	s.pendingKey, s.pendingSig = "", ""
	s.setStateLocked(StateSucceeded)
	s.mu.Unlock()

	s.log.Info("sale completed",
		zap.String("sale_id", sale.ID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("payment_method", string(sale.PaymentMethod)))

	if err := s.catalog.Refresh(ctx); err != nil {
		s.log.Warn("catalog refresh after sale failed", zap.Error(err))
	}
	return sale, nil
}

func (s *Session) submissionError(err error, timedOut bool) *SubmissionError {
	var rej *sales.RejectionError
	switch {
	case timedOut:
		return &SubmissionError{
			Reason: fmt.Sprintf("ledger did not answer within %s", s.submitTimeout),
			Err:    ErrTimeout,
			Cause:  err,
		}
	case errors.As(err, &rej):
		return &SubmissionError{Reason: rej.Error(), Err: ErrSubmissionRejected, Cause: err}
	}
	return &SubmissionError{Reason: "sale submission failed", Err: ErrSubmissionRejected, Cause: err}
}

// Ticket fetches the receipt of the retained sale. Safe to call repeatedly.
func (s *Session) Ticket(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	sale, st := s.sale, s.state
	s.mu.Unlock()
	if st != StateSucceeded || sale == nil {
		return nil, ErrNoSale
	}
	doc, err := s.ledger.FetchTicket(ctx, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch ticket %s: %w", sale.ID, err)
	}
	return doc, nil
}

// NewSale leaves the sale-complete view and starts over with an empty cart.
func (s *Session) NewSale() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		return nil
	case StateSucceeded:
		s.sale = nil
		s.payment = ""
		return s.transitionLocked(StateIdle)
	case StateSubmitting:
		return ErrSubmissionInProgress
	}
	return fmt.Errorf("%w: new sale in %s", ErrIllegalTransition, s.state)
}

func (s *Session) transitionLocked(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	s.setStateLocked(to)
	return nil
}

func (s *Session) setStateLocked(to State) {
	if s.state != to {
		s.log.Debug("checkout transition", zap.Stringer("from", s.state), zap.Stringer("to", to))
	}
	s.state = to
}

// signature identifies a pending snapshot: same lines, same payment.
func signature(p sales.PendingSale) string {
	var b strings.Builder
	b.WriteString(string(p.PaymentMethod))
	for _, it := range p.Items {
		fmt.Fprintf(&b, "|%s:%d@%s", it.ItemID, it.Quantity, it.UnitPrice.String())
	}
	return b.String()
}
