package reconciliation

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	internalreconciliation "github.com/angelmondragon/stockroom-backend/internal/reconciliation"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// ListFlags pages through drift flags, optionally filtered by ?status.
func ListFlags(svc internalreconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *enums.ReconciliationFlagStatus
		if raw := validators.QueryString(r, "status", 16); raw != "" {
			parsed := enums.ReconciliationFlagStatus(strings.ToLower(raw))
			if !parsed.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "status must be open or resolved"))
				return
			}
			status = &parsed
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListFlags(r.Context(), status, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ResolveFlag marks a flag reviewed. The body is optional.
func ResolveFlag(svc internalreconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flagID, err := validators.ParseUUIDParam(r, "flagId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := middleware.ActorUserID(r.Context())
		if actor == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var input internalreconciliation.ResolveInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		input.FlagID = flagID
		input.ActorUserID = *actor

		flag, err := svc.ResolveFlag(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, flag)
	}
}
