package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure. Reason is set for rejected uploads.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func writeValidationErrors(w http.ResponseWriter, r *http.Request, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var msg string
	for _, fe := range ve {
		msg += fe.Field() + ": " + fe.Tag() + "; "
	}
	writeError(w, r, http.StatusBadRequest, "invalid_request", msg)
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *simplemedia.ValidationError
	switch {
	case errors.As(err, &verr):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ErrorResponse{Error: ErrorBody{
			Code:    "upload_rejected",
			Message: verr.Detail,
			Reason:  string(verr.Reason),
		}})
	case errors.Is(err, simplemedia.ErrUnknownOwnerType):
		writeError(w, r, http.StatusBadRequest, "unknown_owner_type", err.Error())
	case errors.Is(err, simplemedia.ErrMediaNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "media not found")
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
	}
}
