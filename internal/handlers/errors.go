package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pocketbase/pocketbase/apis"

	"ticket-ledger/internal/status"
)

var validate = validator.New()

// toAPIError turns a service error into the response the client sees.
func toAPIError(err error) error {
	switch status.CategoryOf(err) {
	case status.CategoryNotFound:
		return apis.NewNotFoundError(err.Error(), nil)
	case status.CategoryForbidden:
		return apis.NewForbiddenError(err.Error(), nil)
	case status.CategoryConflict:
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case status.CategoryBadRequest:
		return apis.NewBadRequestError(err.Error(), nil)
	case status.CategoryUpstream:
		if errors.Is(err, status.ErrFailedPayment) {
			return apis.NewApiError(http.StatusPaymentRequired, err.Error(), nil)
		}
		return apis.NewApiError(http.StatusBadGateway, "Payment provider unavailable, please retry", nil)
	}

	slog.Error("Request failed", "error", err)
	return apis.NewInternalServerError("Something went wrong while processing your request.", nil)
}

// validationError reports which fields failed validation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apis.NewBadRequestError("Invalid request body", nil)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apis.NewBadRequestError("Invalid request body", fields)
}
