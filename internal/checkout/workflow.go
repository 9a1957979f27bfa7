package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartStore is the part of the cart the workflow reads and corrects.
type CartStore interface {
	Snapshot() domain.CartSnapshot
	Revision() uint64
	Clear()
	ApplyIssues(issues []domain.ValidationIssue) int
}

type Validator interface {
	Validate(ctx context.Context, snapshot domain.CartSnapshot) (*domain.ValidationResult, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error)
}

// Outcome is the observable state of the current checkout attempt.
type Outcome struct {
	State    domain.CheckoutState      `json:"state"`
	Revision uint64                    `json:"revision"`
	Category domain.IssueCategory      `json:"category,omitempty"`
	Message  string                    `json:"message,omitempty"`
	Issues   []domain.ValidationIssue  `json:"issues,omitempty"`
	Order    *domain.OrderConfirmation `json:"order,omitempty"`
}

// Workflow gates order placement on a successful validation of the exact cart
// revision being submitted. A result computed for an older revision is discarded.
type Workflow struct {
	store     CartStore
	validator Validator
	orders    OrderPlacer
	log       *zap.Logger

	validations singleflight.Group
	submissions singleflight.Group

	mu             sync.Mutex
	state          domain.CheckoutState
	revision       uint64
	outcome        Outcome
	idempotencyKey string
}

func NewWorkflow(store CartStore, validator Validator, orders OrderPlacer, log *zap.Logger) *Workflow {
	return &Workflow{
		store:     store,
		validator: validator,
		orders:    orders,
		log:       log,
		state:     domain.CheckoutStateIdle,
	}
}

// RequestCheckout validates the current cart. Concurrent calls for the same revision
// share one round-trip. A blocked outcome is returned without error.
func (w *Workflow) RequestCheckout(ctx context.Context) (Outcome, error) {
	snap := w.store.Snapshot()

	w.mu.Lock()
	w.resolveLocked(snap.Revision)
	if snap.IsEmpty() {
		w.mu.Unlock()
		return Outcome{}, ErrEmptyCart
	}

	switch w.state {
	case domain.CheckoutStateReadyToSubmit:
		out := w.outcomeLocked()
		w.mu.Unlock()
		return out, nil
	case domain.CheckoutStateBlocked:
		if w.outcome.Category == domain.IssueCategoryLine {
			out := w.outcomeLocked()
			w.mu.Unlock()
			return out, ErrAcknowledgementRequired
		}
	case domain.CheckoutStateSubmitting, domain.CheckoutStateCompleted:
		from := w.state
		w.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: checkout requested while %s", ErrIllegalTransition, from)
	}

	if w.state != domain.CheckoutStateValidating {
		if err := w.transitionLocked(domain.CheckoutStateValidating, snap.Revision); err != nil {
			w.mu.Unlock()
			return Outcome{}, err
		}
	}
	w.mu.Unlock()

	v, err, shared := w.validations.Do(strconv.FormatUint(snap.Revision, 10), func() (any, error) {
		return w.validate(ctx, snap)
	})
	if shared {
		logger.FromContext(ctx, w.log).Debug("joined in-flight validation", zap.Uint64("revision", snap.Revision))
	}
	if err != nil {
		return Outcome{}, err
	}
	return cloneOutcome(v.(Outcome)), nil
}

func (w *Workflow) validate(ctx context.Context, snap domain.CartSnapshot) (Outcome, error) {
	log := logger.FromContext(ctx, w.log).With(zap.Uint64("revision", snap.Revision))

	// A caller that saw VALIDATING may arrive after the shared call already settled.
	w.mu.Lock()
	if w.revision != snap.Revision || w.state != domain.CheckoutStateValidating {
		settled := w.revision == snap.Revision &&
			(w.state == domain.CheckoutStateReadyToSubmit || w.state == domain.CheckoutStateBlocked)
		out := w.outcomeLocked()
		w.mu.Unlock()
		if settled {
			return out, nil
		}
		return Outcome{}, ErrStaleValidation
	}
	w.mu.Unlock()

	result, err := w.validator.Validate(ctx, snap)

	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.store.Revision()
	if current != snap.Revision || w.revision != snap.Revision || w.state != domain.CheckoutStateValidating {
		if w.revision == snap.Revision && w.state == domain.CheckoutStateValidating {
			w.resetLocked(current)
		}
		log.Info("discarding stale validation result", zap.Uint64("current_revision", current))
		return Outcome{}, ErrStaleValidation
	}

	if errors.Is(err, context.Canceled) {
		w.resetLocked(current)
		return Outcome{}, err
	}

	out := Outcome{Revision: snap.Revision}
	switch {
	case err != nil:
		out.State = domain.CheckoutStateBlocked
		out.Category = domain.IssueCategoryTransport
		out.Message = validation.TransportMessage
		log.Warn("checkout blocked by transport failure", zap.Error(err))
	case !result.OK():
		out.State = domain.CheckoutStateBlocked
		out.Category = domain.IssueCategoryLine
		out.Issues = result.Issues
		out.Message = result.Primary().Message
		log.Info("checkout blocked by line issues",
			zap.Int("issues", len(result.Issues)),
			zap.Int64("product_id", result.Primary().ProductID),
			zap.String("status", result.Primary().Status.String()))
	default:
		out.State = domain.CheckoutStateReadyToSubmit
		w.idempotencyKey = uuid.NewString()
	}

	if err := w.transitionLocked(out.State, snap.Revision); err != nil {
		return Outcome{}, err
	}
	w.outcome = out
	return out, nil
}

// Acknowledge dismisses a blocked outcome. The next checkout request validates again.
func (w *Workflow) Acknowledge() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resolveLocked(w.store.Revision())
	switch w.state {
	case domain.CheckoutStateIdle:
		return nil
	case domain.CheckoutStateBlocked:
		w.resetLocked(w.revision)
		return nil
	}
	return fmt.Errorf("%w: acknowledge while %s", ErrIllegalTransition, w.state)
}

// ApplyCorrections adopts the server truth of a line-blocked outcome into the cart
// and returns the number of lines changed.
func (w *Workflow) ApplyCorrections() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resolveLocked(w.store.Revision())
	if w.state != domain.CheckoutStateBlocked || w.outcome.Category != domain.IssueCategoryLine {
		return 0, fmt.Errorf("%w: no line issues to correct while %s", ErrIllegalTransition, w.state)
	}

	changed := w.store.ApplyIssues(w.outcome.Issues)
	w.resetLocked(w.store.Revision())
	return changed, nil
}

// PlaceOrder submits the validated cart. On success the cart is cleared. A backend
// rejection forces re-validation; any other failure may be retried with the same key.
func (w *Workflow) PlaceOrder(ctx context.Context, details domain.OrderDetails) (*domain.OrderConfirmation, error) {
	snap := w.store.Snapshot()

	w.mu.Lock()
	w.resolveLocked(snap.Revision)
	switch {
	case w.state == domain.CheckoutStateSubmitting && w.revision == snap.Revision:
	case w.state == domain.CheckoutStateReadyToSubmit:
		if err := w.transitionLocked(domain.CheckoutStateSubmitting, snap.Revision); err != nil {
			w.mu.Unlock()
			return nil, err
		}
	default:
		state := w.state
		w.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, state)
	}
	key := w.idempotencyKey
	w.mu.Unlock()

	v, err, _ := w.submissions.Do(key, func() (any, error) {
		return w.submit(ctx, key, snap, details)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.OrderConfirmation), nil
}

func (w *Workflow) submit(ctx context.Context, key string, snap domain.CartSnapshot, details domain.OrderDetails) (*domain.OrderConfirmation, error) {
	log := logger.FromContext(ctx, w.log).With(zap.String("idempotency_key", key))

	w.mu.Lock()
	if w.state != domain.CheckoutStateSubmitting || w.idempotencyKey != key {
		order, state := w.outcome.Order, w.state
		w.mu.Unlock()
		if state == domain.CheckoutStateCompleted && order != nil {
			return order, nil
		}
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, state)
	}
	w.mu.Unlock()

	conf, err := w.orders.PlaceOrder(ctx, domain.NewOrderRequest(key, snap, details))

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusConflict || se.StatusCode == http.StatusUnprocessableEntity) {
			log.Warn("order rejected, validation required", zap.Int("status", se.StatusCode))
			w.resetLocked(w.store.Revision())
			return nil, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		log.Error("order placement failed", zap.Error(err))
		w.reopenLocked(log)
		return nil, fmt.Errorf("place order: %w", err)
	}

	w.store.Clear()
	if err := w.transitionLocked(domain.CheckoutStateCompleted, w.store.Revision()); err != nil {
		return nil, err
	}
	w.outcome = Outcome{State: domain.CheckoutStateCompleted, Revision: w.revision, Order: conf}
	log.Info("order placed", zap.String("order_id", conf.OrderID))
	return conf, nil
}

// reopenLocked hands a failed submission back to READY_TO_SUBMIT so it can be retried
// with the same key. If that move is not allowed the attempt is dropped to IDLE.
func (w *Workflow) reopenLocked(log *zap.Logger) {
	if err := w.transitionLocked(domain.CheckoutStateReadyToSubmit, w.revision); err != nil {
		log.Error("cannot reopen checkout after failed submission", zap.Error(err))
		w.resetLocked(w.store.Revision())
	}
}

// State returns the checkout state for the current cart revision.
func (w *Workflow) State() domain.CheckoutState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resolveLocked(w.store.Revision())
	return w.state
}

// Current returns the full outcome for the current cart revision.
func (w *Workflow) Current() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resolveLocked(w.store.Revision())
	return w.outcomeLocked()
}

// resolveLocked drops any outcome computed for another revision. A prior successful
// validation never carries over a cart mutation. An in-flight submission is kept.
func (w *Workflow) resolveLocked(rev uint64) {
	if w.revision == rev || w.state == domain.CheckoutStateSubmitting {
		return
	}
	if w.state == domain.CheckoutStateIdle {
		w.revision = rev
		return
	}
	w.resetLocked(rev)
}

func (w *Workflow) resetLocked(rev uint64) {
	w.state = domain.CheckoutStateIdle
	w.revision = rev
	w.outcome = Outcome{}
	w.idempotencyKey = ""
}

func (w *Workflow) transitionLocked(to domain.CheckoutState, rev uint64) error {
	if !domain.CanTransitionTo(w.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, w.state, to)
	}
	w.state = to
	w.revision = rev
	return nil
}

func (w *Workflow) outcomeLocked() Outcome {
	out := cloneOutcome(w.outcome)
	out.State = w.state
	out.Revision = w.revision
	return out
}

func cloneOutcome(o Outcome) Outcome {
	if o.Issues != nil {
		o.Issues = append([]domain.ValidationIssue(nil), o.Issues...)
	}
	return o
}
