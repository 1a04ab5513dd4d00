package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/sirupsen/logrus"
)

const UnexpectedErrorMessage = "An unexpected error occurred."

var ErrMissingClientSecret = errors.New("payment intent has no client secret")

type Coordinator struct {
	authority port.PaymentAuthority
	log       logrus.FieldLogger
}

func NewCoordinator(authority port.PaymentAuthority, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		authority: authority,
		log:       log,
	}
}

func (c *Coordinator) CreateIntent(ctx context.Context, total domain.Money, addr domain.ShippingAddress) (domain.PaymentIntent, error) {
	if total.Amount.Sign() <= 0 {
		return domain.PaymentIntent{}, fmt.Errorf("total %s is not positive", total)
	}

	handle, err := c.authority.CreateIntent(ctx, total, intentMetadata(addr), uuid.NewString())
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("authority.CreateIntent: %w", err)
	}
	if handle.ClientSecret == "" {
		return domain.PaymentIntent{}, fmt.Errorf("intent[%s]: %w", handle.ID, ErrMissingClientSecret)
	}

	return domain.PaymentIntent{
		ID:           handle.ID,
		ClientSecret: handle.ClientSecret,
		Amount:       total,
		Outcome:      domain.OutcomePending,
	}, nil
}

// Confirm makes a single confirmation attempt and returns the intent with its outcome.
// Failures are returned as *domain.PaymentError with a message fit for the buyer.
func (c *Coordinator) Confirm(ctx context.Context, intent domain.PaymentIntent) (domain.PaymentIntent, error) {
	if intent.ClientSecret == "" {
		return intent, fmt.Errorf("intent[%s]: %w", intent.ID, ErrMissingClientSecret)
	}

	result, err := c.authority.Confirm(ctx, intent.ClientSecret)
	if err != nil {
		c.log.WithError(err).WithField("intent_id", intent.ID).Warn("payment confirmation failed")
		return fail(intent, domain.OutcomeUnexpectedError, UnexpectedErrorMessage)
	}

	outcome, message := Classify(result)
	if outcome != domain.OutcomeSucceeded {
		c.log.WithFields(logrus.Fields{
			"intent_id": intent.ID,
			"outcome":   outcome,
			"code":      result.Code,
		}).Info("payment declined")
		return fail(intent, outcome, message)
	}

	intent.Outcome = domain.OutcomeSucceeded
	intent.Message = ""
	return intent, nil
}

// Classify maps the authority's answer to an outcome. Card and validation errors keep the
// authority's message; every other error becomes the generic one.
func Classify(result port.ConfirmResult) (domain.Outcome, string) {
	switch result.Type {
	case "":
		return domain.OutcomeSucceeded, ""
	case string(domain.OutcomeCardError), string(domain.OutcomeValidationError):
		if result.Message == "" {
			return domain.Outcome(result.Type), UnexpectedErrorMessage
		}
		return domain.Outcome(result.Type), result.Message
	default:
		return domain.OutcomeUnexpectedError, UnexpectedErrorMessage
	}
}

func fail(intent domain.PaymentIntent, outcome domain.Outcome, message string) (domain.PaymentIntent, error) {
	intent.Outcome = outcome
	intent.Message = message
	return intent, &domain.PaymentError{Outcome: outcome, Message: message}
}

func intentMetadata(addr domain.ShippingAddress) map[string]string {
	return map[string]string{
		"name":         addr.Name + " " + addr.LastName,
		"email":        addr.Email,
		"phone":        addr.Phone,
		"street":       addr.Street + " " + addr.ExteriorNumber,
		"postal_code":  addr.PostalCode,
		"neighborhood": addr.Neighborhood,
		"city":         addr.CityName,
		"state":        addr.StateName,
		"country":      addr.Country,
	}
}
