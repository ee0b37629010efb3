package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/pkg/ctxutil"
)

// maxBodyBytes bounds request bodies. A full save snapshot is the largest.
const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps err onto a status code. Player-facing domain errors keep
// their message; anything unexpected is logged and hidden behind a
// generic 500.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "unexpected error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", ctxutil.RequestIDFromCtx(r.Context())),
		)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, ErrorResponse) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadyExists):
		status, code = http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"}
	}

	resp := ErrorResponse{Code: code, Error: publicMessage(err)}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Errors
	}
	return status, resp
}

// publicMessage strips the "svc.Op: " wrapping from known errors.
func publicMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Msg
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		if len(ve.Errors) == 1 {
			return ve.Errors[0].Field + ": " + ve.Errors[0].Message
		}
		return "validation failed"
	}
	for _, sentinel := range []error{
		domain.ErrValidation, domain.ErrUnauthorized, domain.ErrForbidden,
		domain.ErrNotFound, domain.ErrAlreadyExists, domain.ErrConflict,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// decodeJSON reads a single JSON object into dst. Unknown fields are
// rejected so client typos surface as 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "required")
		}
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return domain.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}
