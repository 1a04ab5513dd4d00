package address

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
)

// PostalCodeInput debounces postal code keystrokes and keeps the latest Resolution.
// A result computed for an input that has since been superseded is dropped.
type PostalCodeInput struct {
	resolver  *Resolver
	debouncer *Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	current Resolution
}

func NewPostalCodeInput(resolver *Resolver, quiet time.Duration, initial Resolution) *PostalCodeInput {
	ctx, cancel := context.WithCancel(context.Background())

	return &PostalCodeInput{
		resolver:  resolver,
		debouncer: NewDebouncer(quiet),
		ctx:       ctx,
		cancel:    cancel,
		current:   initial,
	}
}

// Type records the field's current value. The lookup runs once the quiet period passes
// without another keystroke; short or empty codes leave the resolution unchanged.
func (in *PostalCodeInput) Type(code string) {
	code = strings.TrimSpace(code)
	gen := in.bump()

	in.debouncer.Call(func() {
		if len(code) < MinPostalCodeLength {
			return
		}

		in.mu.Lock()
		prior := in.current.State
		in.mu.Unlock()

		res := in.resolver.Resolve(in.ctx, Partial{PostalCode: code, State: prior})
		in.store(gen, res)
	})
}

func (in *PostalCodeInput) SelectState(ctx context.Context, state domain.State) Resolution {
	gen := in.bump()
	res := in.resolver.SelectState(ctx, in.Resolution(), state)
	in.store(gen, res)
	return res
}

func (in *PostalCodeInput) SelectCity(ctx context.Context, cityID string) (Resolution, error) {
	gen := in.bump()
	res, err := in.resolver.SelectCity(ctx, in.Resolution(), cityID)
	if err != nil {
		return res, err
	}
	in.store(gen, res)
	return res, nil
}

func (in *PostalCodeInput) SelectNeighborhood(name string) (Resolution, error) {
	gen := in.bump()
	res, err := in.resolver.SelectNeighborhood(in.Resolution(), name)
	if err != nil {
		return res, err
	}
	in.store(gen, res)
	return res, nil
}

func (in *PostalCodeInput) Resolution() Resolution {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

// Stop cancels in-flight lookups and waits for a running resolution to return.
func (in *PostalCodeInput) Stop() {
	in.cancel()
	in.debouncer.Stop()
}

func (in *PostalCodeInput) bump() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.gen++
	return in.gen
}

func (in *PostalCodeInput) store(gen uint64, res Resolution) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if gen != in.gen {
		return
	}
	in.current = res
}
