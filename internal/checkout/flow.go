package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/cartstore"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/metrics"
	"github.com/nikolayk812/marketplace-checkout/internal/payment"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/sirupsen/logrus"
)

const (
	reasonEmptyCart        = "cart is empty"
	reasonAddress          = "shipping address is not resolved"
	reasonNoQuotes         = "no seller can ship to the address"
	reasonNoIntent         = "payment intent is missing"
	reasonPaymentPending   = "payment is not confirmed"
	reasonNotReviewed      = "order was not reviewed"
	selectShippingMessage  = "select a shipping method"
	cannotShipMessage      = "seller cannot ship to this address"
	paymentStartFailureMsg = "payment could not be started"
)

// Navigation is the result of entering a step. Step is where the session ended up; when a
// guard failed, Guard explains the redirect.
type Navigation struct {
	Requested domain.Step
	Step      domain.Step
	Guard     *domain.GuardFailure
}

func (n Navigation) Redirected() bool {
	return n.Guard != nil
}

// Flow drives one checkout session through cart -> shipping -> review -> confirmation.
// Guards run on every entry against a fresh server snapshot. Operations are serialized.
type Flow struct {
	store    *cartstore.Store
	quotes   port.QuoteAPI
	payments *payment.Coordinator
	log      logrus.FieldLogger
	metrics  *metrics.CheckoutMetrics

	op sync.Mutex

	mu      sync.Mutex
	session domain.CheckoutSession
}

func NewFlow(store *cartstore.Store, quotes port.QuoteAPI, payments *payment.Coordinator, log logrus.FieldLogger, m *metrics.CheckoutMetrics) *Flow {
	id := uuid.New()

	return &Flow{
		store:    store,
		quotes:   quotes,
		payments: payments,
		log:      log.WithField("session_id", id),
		metrics:  m,
		session: domain.CheckoutSession{
			ID:   id,
			Step: domain.StepCart,
		},
	}
}

func (f *Flow) Session() domain.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.session
	if s.Errors != nil {
		s.Errors = make(domain.ValidationErrors, len(f.session.Errors))
		for k, v := range f.session.Errors {
			s.Errors[k] = v
		}
	}
	return s
}

func (f *Flow) Step() domain.Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.Step
}

func (f *Flow) Enter(ctx context.Context, step domain.Step) Navigation {
	f.op.Lock()
	defer f.op.Unlock()

	return f.enter(ctx, step)
}

func (f *Flow) enter(ctx context.Context, step domain.Step) Navigation {
	switch step {
	case domain.StepCart:
		f.load(ctx)
		return f.arrive(step)

	case domain.StepShipping:
		cart := f.load(ctx)
		if cart.IsEmpty() {
			return f.redirect(step, domain.StepCart, reasonEmptyCart)
		}
		return f.arrive(step)

	case domain.StepReview:
		return f.enterReview(ctx, step)

	case domain.StepConfirmation:
		session := f.Session()
		if session.Step == domain.StepConfirmation {
			return f.arrive(step)
		}
		// only a session that passed the review guards may stay on review
		if session.Step != domain.StepReview {
			return f.enterReview(ctx, step)
		}
		cart := f.load(ctx)
		if cart.IsEmpty() {
			return f.redirect(step, domain.StepCart, reasonEmptyCart)
		}
		if !session.Intent.Ready() {
			return f.redirect(step, domain.StepReview, reasonNoIntent)
		}
		return f.redirect(step, domain.StepReview, reasonPaymentPending)
	}

	return f.redirect(step, domain.StepCart, fmt.Sprintf("unknown step %s", step))
}

// enterReview checks, in order: non-empty cart, resolved address, at least one seller with
// a shipping method. It then makes sure a payment intent exists for the current total.
// When confirmation was requested the session lands on review through a redirect.
func (f *Flow) enterReview(ctx context.Context, requested domain.Step) Navigation {
	cart := f.load(ctx)
	if cart.IsEmpty() {
		return f.redirect(requested, domain.StepCart, reasonEmptyCart)
	}
	if !cart.Address.IsResolved() {
		return f.redirect(requested, domain.StepShipping, reasonAddress)
	}

	quotes := f.requestQuotes(ctx, cart)
	shippable, err := f.store.ApplyQuotes(quotes)
	if err != nil {
		f.log.WithError(err).Warn("apply shipping quotes")
	}
	if shippable == 0 {
		return f.redirect(requested, domain.StepShipping, reasonNoQuotes)
	}

	total, err := f.store.Total()
	if err != nil {
		f.log.WithError(err).Warn("read cart total")
		return f.redirect(requested, domain.StepCart, reasonEmptyCart)
	}
	f.ensureIntent(ctx, total, cart.Address)

	if requested != domain.StepReview {
		if !f.Session().Intent.Ready() {
			return f.redirect(requested, domain.StepReview, reasonNoIntent)
		}
		return f.redirect(requested, domain.StepReview, reasonPaymentPending)
	}
	return f.arrive(requested)
}

// SubmitAddress validates the address, persists it to the remote order and moves on to
// review. Invalid fields keep the session on shipping.
func (f *Flow) SubmitAddress(ctx context.Context, addr domain.ShippingAddress) (Navigation, error) {
	f.op.Lock()
	defer f.op.Unlock()

	step := f.Step()
	if step != domain.StepShipping && step != domain.StepReview {
		return Navigation{Requested: domain.StepReview, Step: step}, fmt.Errorf("submit address on %s: %w", step, domain.ErrIllegalTransition)
	}

	if addr.Country == "" {
		addr.Country = domain.Country
	}
	if errs := addr.Validate(); errs != nil {
		f.setErrors(errs)
		return Navigation{Requested: domain.StepReview, Step: step}, errs
	}
	f.setErrors(nil)

	// a failed save shows up as a missing address on the next snapshot
	if err := f.store.SaveAddress(ctx, addr); err != nil {
		f.log.WithError(err).Warn("persist shipping address")
	}

	return f.enterReview(ctx, domain.StepReview), nil
}

// SelectShipping chooses one of a seller's quoted methods. A key outside the quote clears
// that seller's selection.
func (f *Flow) SelectShipping(sellerID string, key domain.MethodKey) error {
	f.op.Lock()
	defer f.op.Unlock()

	if step := f.Step(); step != domain.StepReview {
		return fmt.Errorf("select shipping on %s: %w", step, domain.ErrIllegalTransition)
	}

	err := f.store.SetSelectedShippingMethod(sellerID, key)
	if errors.Is(err, domain.ErrInvalidSelection) {
		if clearErr := f.store.ClearShippingMethod(sellerID); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
	}
	return err
}

// Confirm submits the order and confirms the payment. The session moves to confirmation only
// when the payment succeeded; otherwise it stays on review with cart and address untouched.
func (f *Flow) Confirm(ctx context.Context) (Navigation, error) {
	f.op.Lock()
	defer f.op.Unlock()

	requested := domain.StepConfirmation
	session := f.Session()

	if session.Step != domain.StepReview {
		if session.Step == domain.StepConfirmation {
			return Navigation{Requested: requested, Step: session.Step}, nil
		}
		return f.redirect(requested, session.Step, reasonNotReviewed), nil
	}
	if !session.Intent.Ready() {
		return f.redirect(requested, domain.StepReview, reasonNoIntent), nil
	}

	cart, err := f.store.Snapshot()
	if err != nil {
		return f.stay(requested), fmt.Errorf("store.Snapshot: %w", err)
	}

	if errs, unshippable := shippingErrors(cart); errs != nil {
		f.setErrors(errs)
		if len(unshippable) > 0 {
			return f.redirect(requested, domain.StepCart, fmt.Sprintf("%s: %s", cannotShipMessage, strings.Join(unshippable, ", "))), nil
		}
		return f.stay(requested), errs
	}
	f.setErrors(nil)

	intent := session.Intent
	if total := cart.Total(); !intent.Amount.Equal(total) {
		intent, err = f.payments.CreateIntent(ctx, total, cart.Address)
		if err != nil {
			f.log.WithError(err).Warn("refresh payment intent")
			return f.stay(requested), &domain.PaymentError{Outcome: domain.OutcomeUnexpectedError, Message: payment.UnexpectedErrorMessage}
		}
		f.setIntent(intent)
	}

	if _, err := f.store.SubmitOrder(ctx); err != nil {
		f.log.WithError(err).Warn("submit order")
		return f.stay(requested), &domain.PaymentError{Outcome: domain.OutcomeUnexpectedError, Message: payment.UnexpectedErrorMessage}
	}

	confirmed, err := f.payments.Confirm(ctx, intent)
	f.setIntent(confirmed)
	f.metrics.PaymentOutcomes.WithLabelValues(string(confirmed.Outcome)).Inc()
	if err != nil {
		return f.stay(requested), err
	}

	f.log.WithFields(logrus.Fields{
		"intent_id": confirmed.ID,
		"total":     confirmed.Amount.String(),
	}).Info("checkout confirmed")

	return f.arrive(requested), nil
}

func (f *Flow) load(ctx context.Context) domain.Cart {
	cart, err := f.store.Load(ctx)
	if err != nil {
		f.log.WithError(err).Warn("load cart snapshot")
		return domain.Cart{}
	}
	return cart
}

// requestQuotes sends one request covering every seller. A failed request counts as no quotes.
func (f *Flow) requestQuotes(ctx context.Context, cart domain.Cart) map[string][]domain.ShippingMethod {
	start := time.Now()
	quotes, err := f.quotes.Quote(ctx, cart.Address, cart.Groups)
	f.metrics.QuoteLatencyMS.Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		f.log.WithError(err).Warn("request shipping quotes")
		return nil
	}
	return quotes
}

// ensureIntent keeps a pending intent created for the same total and otherwise asks for a new one.
func (f *Flow) ensureIntent(ctx context.Context, total domain.Money, addr domain.ShippingAddress) {
	current := f.Session().Intent
	if current.Ready() && current.Outcome != domain.OutcomeSucceeded && current.Amount.Equal(total) {
		return
	}

	intent, err := f.payments.CreateIntent(ctx, total, addr)
	if err != nil {
		f.log.WithError(err).Warn("create payment intent")
		f.setIntent(domain.PaymentIntent{})
		f.setErrors(domain.ValidationErrors{"payment": paymentStartFailureMsg})
		return
	}

	f.setIntent(intent)
}

// shippingErrors reports sellers without a selection. Sellers the quote could not cover are
// also returned by ID; their items have to leave the cart before the order can go through.
func shippingErrors(cart domain.Cart) (domain.ValidationErrors, []string) {
	errs := domain.ValidationErrors{}
	var unshippable []string
	for _, group := range cart.Groups {
		if group.Selected != nil {
			continue
		}
		if group.Quoted && len(group.Quote) == 0 {
			errs["shipping."+group.Seller.ID] = cannotShipMessage
			unshippable = append(unshippable, group.Seller.ID)
			continue
		}
		errs["shipping."+group.Seller.ID] = selectShippingMessage
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, unshippable
}

func (f *Flow) arrive(step domain.Step) Navigation {
	f.mu.Lock()
	prev := f.session.Step
	f.session.Step = step
	f.mu.Unlock()

	if prev != step {
		f.log.WithFields(logrus.Fields{"from": prev, "to": step}).Info("checkout step changed")
	}

	return Navigation{Requested: step, Step: step}
}

func (f *Flow) redirect(requested, target domain.Step, reason string) Navigation {
	f.mu.Lock()
	f.session.Step = target
	f.mu.Unlock()

	f.log.WithFields(logrus.Fields{
		"requested": requested,
		"target":    target,
		"reason":    reason,
	}).Debug("checkout guard redirect")
	f.metrics.Redirects.WithLabelValues(requested.String(), target.String()).Inc()

	return Navigation{
		Requested: requested,
		Step:      target,
		Guard:     &domain.GuardFailure{Requested: requested, Target: target, Reason: reason},
	}
}

func (f *Flow) stay(requested domain.Step) Navigation {
	return Navigation{Requested: requested, Step: f.Step()}
}

func (f *Flow) setIntent(intent domain.PaymentIntent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Intent = intent
}

func (f *Flow) setErrors(errs domain.ValidationErrors) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Errors = errs
}
