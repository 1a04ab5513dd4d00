package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/payment"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

type fakeAuthority struct {
	handle     port.IntentHandle
	createErr  error
	result     port.ConfirmResult
	confirmErr error

	amount   domain.Money
	metadata map[string]string
	keys     []string
	confirms int
}

func (f *fakeAuthority) CreateIntent(_ context.Context, amount domain.Money, metadata map[string]string, key string) (port.IntentHandle, error) {
	f.amount = amount
	f.metadata = metadata
	f.keys = append(f.keys, key)
	return f.handle, f.createErr
}

func (f *fakeAuthority) Confirm(context.Context, string) (port.ConfirmResult, error) {
	f.confirms++
	return f.result, f.confirmErr
}

func mxn(amount int64) domain.Money {
	return domain.NewMoney(decimal.NewFromInt(amount), currency.MXN)
}

func newCoordinator(a *fakeAuthority) *payment.Coordinator {
	log, _ := test.NewNullLogger()
	return payment.NewCoordinator(a, log)
}

func TestCoordinator_CreateIntent(t *testing.T) {
	tests := []struct {
		name      string
		authority *fakeAuthority
		total     domain.Money
		wantError string
		wantIs    error
	}{
		{
			name:      "intent created: ok",
			authority: &fakeAuthority{handle: port.IntentHandle{ID: "pi_1", ClientSecret: "pi_1_secret"}},
			total:     mxn(180),
		},
		{
			name:      "zero total: error",
			authority: &fakeAuthority{},
			total:     mxn(0),
			wantError: "total 0.00 MXN is not positive",
		},
		{
			name:      "authority failure: error",
			authority: &fakeAuthority{createErr: errors.New("503")},
			total:     mxn(180),
			wantError: "authority.CreateIntent: 503",
		},
		{
			name:      "missing secret: error",
			authority: &fakeAuthority{handle: port.IntentHandle{ID: "pi_2"}},
			total:     mxn(180),
			wantIs:    payment.ErrMissingClientSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoordinator(tt.authority)
			addr := domain.ShippingAddress{Name: "Ana", LastName: "López", PostalCode: "06600", StateName: "Ciudad de México"}

			intent, err := c.CreateIntent(t.Context(), tt.total, addr)
			switch {
			case tt.wantError != "":
				require.EqualError(t, err, tt.wantError)
				return
			case tt.wantIs != nil:
				require.ErrorIs(t, err, tt.wantIs)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, "pi_1", intent.ID)
			assert.True(t, intent.Ready())
			assert.Equal(t, domain.OutcomePending, intent.Outcome)
			assert.True(t, tt.authority.amount.Equal(tt.total))
			assert.Equal(t, "06600", tt.authority.metadata["postal_code"])
			assert.Equal(t, "Ana López", tt.authority.metadata["name"])
			require.Len(t, tt.authority.keys, 1)
			assert.NotEmpty(t, tt.authority.keys[0])
		})
	}
}

func TestCoordinator_Confirm(t *testing.T) {
	tests := []struct {
		name        string
		result      port.ConfirmResult
		err         error
		wantOutcome domain.Outcome
		wantMessage string
	}{
		{
			name:        "succeeded",
			wantOutcome: domain.OutcomeSucceeded,
		},
		{
			name:        "card error keeps authority message",
			result:      port.ConfirmResult{Type: "card_error", Code: "card_declined", Message: "Your card was declined."},
			wantOutcome: domain.OutcomeCardError,
			wantMessage: "Your card was declined.",
		},
		{
			name:        "validation error keeps authority message",
			result:      port.ConfirmResult{Type: "validation_error", Message: "Your card's expiration year is invalid."},
			wantOutcome: domain.OutcomeValidationError,
			wantMessage: "Your card's expiration year is invalid.",
		},
		{
			name:        "api error is unexpected",
			result:      port.ConfirmResult{Type: "api_error", Message: "internal"},
			wantOutcome: domain.OutcomeUnexpectedError,
			wantMessage: payment.UnexpectedErrorMessage,
		},
		{
			name:        "transport failure is unexpected",
			err:         errors.New("connection reset"),
			wantOutcome: domain.OutcomeUnexpectedError,
			wantMessage: payment.UnexpectedErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authority := &fakeAuthority{result: tt.result, confirmErr: tt.err}
			c := newCoordinator(authority)

			intent, err := c.Confirm(t.Context(), domain.PaymentIntent{ID: "pi_1", ClientSecret: "secret", Outcome: domain.OutcomePending})

			assert.Equal(t, 1, authority.confirms, "confirmation is never retried")
			assert.Equal(t, tt.wantOutcome, intent.Outcome)
			assert.Equal(t, tt.wantMessage, intent.Message)

			if tt.wantOutcome == domain.OutcomeSucceeded {
				require.NoError(t, err)
				return
			}

			var payErr *domain.PaymentError
			require.ErrorAs(t, err, &payErr)
			assert.Equal(t, tt.wantOutcome, payErr.Outcome)
			assert.Equal(t, tt.wantMessage, payErr.Message)
		})
	}
}

func TestCoordinator_ConfirmWithoutSecret(t *testing.T) {
	authority := &fakeAuthority{}
	c := newCoordinator(authority)

	_, err := c.Confirm(t.Context(), domain.PaymentIntent{ID: "pi_1"})
	require.ErrorIs(t, err, payment.ErrMissingClientSecret)
	assert.Zero(t, authority.confirms)
}
