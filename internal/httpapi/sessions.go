package httpapi

import (
	"sync"
	"time"

	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/cartstore"
	"github.com/nikolayk812/marketplace-checkout/internal/checkout"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/metrics"
	"github.com/nikolayk812/marketplace-checkout/internal/payment"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/currency"
)

// Session is everything one buyer's checkout needs: the owned cart, the step machine and
// the postal code field.
type Session struct {
	Store  *cartstore.Store
	Flow   *checkout.Flow
	Postal *address.PostalCodeInput

	lastSeen time.Time
}

func (s *Session) close() {
	s.Postal.Stop()
	s.Store.Close()
}

type SessionDeps struct {
	Carts       port.CartAPI
	Quotes      port.QuoteAPI
	Payments    *payment.Coordinator
	Resolver    *address.Resolver
	Currency    currency.Unit
	QuietPeriod time.Duration
	Log         logrus.FieldLogger
	Metrics     *metrics.CheckoutMetrics
}

// Sessions keeps one Session per bearer token.
type Sessions struct {
	deps SessionDeps
	now  func() time.Time

	mu      sync.Mutex
	byToken map[string]*Session
}

func NewSessions(deps SessionDeps) *Sessions {
	if deps.QuietPeriod <= 0 {
		deps.QuietPeriod = address.DefaultQuietPeriod
	}
	return &Sessions{
		deps:    deps,
		now:     time.Now,
		byToken: map[string]*Session{},
	}
}

func (s *Sessions) Get(token string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byToken[token]
	if !ok {
		session = s.open(token)
		s.byToken[token] = session
	}
	session.lastSeen = s.now()

	return session
}

func (s *Sessions) open(token string) *Session {
	log := s.deps.Log.WithField("token_suffix", tokenSuffix(token))

	store := cartstore.New(s.deps.Carts, token, domain.NewCart("", s.deps.Currency), log, s.deps.Metrics)

	return &Session{
		Store:  store,
		Flow:   checkout.NewFlow(store, s.deps.Quotes, s.deps.Payments, log, s.deps.Metrics),
		Postal: address.NewPostalCodeInput(s.deps.Resolver, s.deps.QuietPeriod, address.Resolution{}),
	}
}

func (s *Sessions) End(token string) bool {
	s.mu.Lock()
	session, ok := s.byToken[token]
	delete(s.byToken, token)
	s.mu.Unlock()

	if ok {
		session.close()
	}
	return ok
}

// EvictIdle ends sessions not used for longer than idle and returns how many were ended.
func (s *Sessions) EvictIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*Session
	for token, session := range s.byToken {
		if session.lastSeen.Before(cutoff) {
			stale = append(stale, session)
			delete(s.byToken, token)
		}
	}
	s.mu.Unlock()

	for _, session := range stale {
		session.close()
	}
	return len(stale)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

func (s *Sessions) Close() {
	s.mu.Lock()
	sessions := s.byToken
	s.byToken = map[string]*Session{}
	s.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
}

func tokenSuffix(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[len(token)-4:]
}
