package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

const (
	retryAfterHeader = "Retry-After"
	// lock waits are bounded by lock_timeout, so a second is enough
	concurrencyRetryAfter = "1"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// callerMessageCodes echo the error's own message instead of the generic one.
var callerMessageCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:    true,
	pkgerrors.CodeForbidden:     true,
	pkgerrors.CodeUnauthorized:  true,
	pkgerrors.CodeNotFound:      true,
	pkgerrors.CodeConflict:      true,
	pkgerrors.CodeStateConflict: true,
	pkgerrors.CodeConcurrency:   true,
	pkgerrors.CodeIdempotency:   true,
	pkgerrors.CodeRateLimit:     true,
}

// WriteError renders err as an ErrorEnvelope. Untyped errors become
// INTERNAL_ERROR with the cause hidden. Engine rejections always carry their
// details so callers can tell whether and how to retry.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := APIError{Code: string(typed.Code()), Message: meta.PublicMessage, Retryable: meta.Retryable}
	if m := typed.Message(); m != "" && callerMessageCodes[typed.Code()] {
		apiErr.Message = m
	}
	if details := typed.Details(); details != nil && (meta.DetailsAllowed || isRejection(details)) {
		apiErr.Details = details
	}

	if logg != nil {
		fields := pkgerrors.Dump(err).Fields()
		fields["status"] = meta.HTTPStatus
		if reason := pkgerrors.ReasonOf(typed); reason != "" {
			fields["reason"] = string(reason)
		}
		logCtx := logg.WithFields(ctx, fields)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(logCtx, "request.error", err)
		} else {
			logg.Warn(logCtx, "request.rejected")
		}
	}

	if typed.Code() == pkgerrors.CodeConcurrency && w.Header().Get(retryAfterHeader) == "" {
		w.Header().Set(retryAfterHeader, concurrencyRetryAfter)
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: apiErr})
}

// isRejection reports whether details is an engine rejection.
func isRejection(details any) bool {
	switch d := details.(type) {
	case pkgerrors.Rejection:
		return true
	case *pkgerrors.Rejection:
		return d != nil
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"response.encode_failed","err":%q}`, err.Error())
	}
}
