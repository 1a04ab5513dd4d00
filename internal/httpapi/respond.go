package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nikolayk812/marketplace-checkout/internal/cartstore"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, log logrus.FieldLogger, status int, code, message string) {
	respondJSON(w, log, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondErr maps a domain error onto a status code. Anything unknown is a 500 and is logged.
func respondErr(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		validationErrs domain.ValidationErrors
		paymentErr     *domain.PaymentError
	)

	switch {
	case errors.As(err, &validationErrs):
		respondJSON(w, log, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation failed",
			Code:   "validation_failed",
			Fields: validationErrs,
		})
	case errors.As(err, &paymentErr):
		respondError(w, log, http.StatusPaymentRequired, string(paymentErr.Outcome), paymentErr.Message)
	case errors.Is(err, domain.ErrInvalidSelection):
		respondError(w, log, http.StatusConflict, "invalid_selection", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, log, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrSellerNotFound), errors.Is(err, domain.ErrLineNotFound):
		respondError(w, log, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrCurrencyMismatch):
		respondError(w, log, http.StatusBadRequest, "currency_mismatch", err.Error())
	case errors.Is(err, cartstore.ErrClosed):
		respondError(w, log, http.StatusGone, "session_closed", err.Error())
	default:
		log.WithError(err).Error("request failed")
		respondError(w, log, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
