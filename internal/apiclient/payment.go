package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
)

var _ port.PaymentAuthority = (*Client)(nil)

type createIntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type createIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type confirmRequest struct {
	ClientSecret string `json:"client_secret"`
}

type authorityError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type confirmResponse struct {
	Status string          `json:"status"`
	Error  *authorityError `json:"error,omitempty"`
}

// CreateIntent sends the amount in minor units; the key makes retries of the same request safe.
func (c *Client) CreateIntent(ctx context.Context, amount domain.Money, metadata map[string]string, idempotencyKey string) (port.IntentHandle, error) {
	var resp createIntentResponse
	err := c.doJSON(ctx, request{
		method:  http.MethodPost,
		path:    "/payments/intents",
		headers: map[string]string{"Idempotency-Key": idempotencyKey},
		body: createIntentRequest{
			Amount:   amount.MinorUnits(),
			Currency: strings.ToLower(amount.Currency.String()),
			Metadata: metadata,
		},
	}, &resp)
	if err != nil {
		return port.IntentHandle{}, err
	}

	return port.IntentHandle{ID: resp.ID, ClientSecret: resp.ClientSecret}, nil
}

// Confirm reports a declined payment as a result, not an error. Errors are reserved for
// answers that carry no authority error at all.
func (c *Client) Confirm(ctx context.Context, clientSecret string) (port.ConfirmResult, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payments/confirm",
		body:   confirmRequest{ClientSecret: clientSecret},
	})

	var statusErr *StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return port.ConfirmResult{}, err
	}

	var resp confirmResponse
	if len(body) > 0 {
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			if err != nil {
				return port.ConfirmResult{}, err
			}
			return port.ConfirmResult{}, fmt.Errorf("json.Unmarshal: %w", jsonErr)
		}
	}

	if resp.Error != nil {
		return port.ConfirmResult{
			Type:    resp.Error.Type,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}, nil
	}
	if err != nil {
		return port.ConfirmResult{}, err
	}
	if resp.Status != "" && resp.Status != string(domain.OutcomeSucceeded) {
		return port.ConfirmResult{Type: "api_error", Code: resp.Status}, nil
	}

	return port.ConfirmResult{}, nil
}
