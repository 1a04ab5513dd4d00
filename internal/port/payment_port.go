package port

import (
	"context"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
)

type IntentHandle struct {
	ID           string
	ClientSecret string
}

// ConfirmResult carries the authority's error, if any. An empty Type means success.
type ConfirmResult struct {
	Type    string
	Code    string
	Message string
}

type PaymentAuthority interface {
	CreateIntent(ctx context.Context, amount domain.Money, metadata map[string]string, idempotencyKey string) (IntentHandle, error)
	Confirm(ctx context.Context, clientSecret string) (ConfirmResult, error)
}
