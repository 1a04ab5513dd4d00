package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidSelection  = errors.New("shipping method is not in the current quote")
	ErrSellerNotFound    = errors.New("seller not found in cart")
	ErrLineNotFound      = errors.New("line item not found in cart")
	ErrCurrencyMismatch  = errors.New("currency does not match cart currency")
	ErrIllegalTransition = errors.New("illegal checkout step transition")
)

// ValidationErrors maps a field name to a message that is shown next to the field.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// GuardFailure is an unmet checkout precondition. It is reported as a redirect, not an error.
type GuardFailure struct {
	Requested Step
	Target    Step
	Reason    string
}

func (g *GuardFailure) Error() string {
	return fmt.Sprintf("guard %s: %s, redirect to %s", g.Requested, g.Reason, g.Target)
}

type PaymentError struct {
	Outcome Outcome
	Message string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s: %s", e.Outcome, e.Message)
}
