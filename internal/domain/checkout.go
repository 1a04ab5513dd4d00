package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type Step int

const (
	StepCart Step = iota
	StepShipping
	StepReview
	StepConfirmation
)

var stepNames = map[Step]string{
	StepCart:         "cart",
	StepShipping:     "shipping",
	StepReview:       "review",
	StepConfirmation: "confirmation",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

func ParseStep(s string) (Step, error) {
	for step, name := range stepNames {
		if name == s {
			return step, nil
		}
	}
	return 0, fmt.Errorf("unknown checkout step %q", s)
}

type Outcome string

const (
	OutcomePending         Outcome = "pending"
	OutcomeSucceeded       Outcome = "succeeded"
	OutcomeCardError       Outcome = "card_error"
	OutcomeValidationError Outcome = "validation_error"
	OutcomeUnexpectedError Outcome = "unexpected_error"
)

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       Money
	Outcome      Outcome
	Message      string
}

func (p PaymentIntent) Ready() bool {
	return p.ID != "" && p.ClientSecret != ""
}

type CheckoutSession struct {
	ID     uuid.UUID
	Step   Step
	Intent PaymentIntent
	Errors ValidationErrors
}
