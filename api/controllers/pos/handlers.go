package pos

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	internalpos "github.com/angelmondragon/stockroom-backend/internal/pos"
	"github.com/angelmondragon/stockroom-backend/internal/sessions"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// OpenSession starts a register session; a location has at most one open.
func OpenSession(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input sessions.OpenInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.AuthorizeLocation(r, input.LocationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.OpenedBy = actor

		session, err := svc.Open(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func CloseSession(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Close(r.Context(), sessions.CloseInput{SessionID: sessionID, VendorID: scope, ActorUserID: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func GetSession(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Get(r.Context(), sessionID, scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func ListSessions(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := sessions.ListFilters{VendorID: scope}
		if scope == nil {
			if filters.VendorID, err = validators.ParseQueryUUID(r, "vendor_id"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if filters.LocationID, err = validators.ParseQueryUUID(r, "location_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := validators.QueryString(r, "status", 16); raw != "" {
			status := enums.POSSessionStatus(strings.ToLower(raw))
			filters.Status = &status
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), filters, pagination.Params{
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

// IncrementCounter adds amount to one of the session's named counters.
func IncrementCounter(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input sessions.CounterInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if scope != nil {
			if _, err := svc.Get(r.Context(), sessionID, scope); err != nil {
				responses.WriteError(r.Context(), logg, w, closedOr(err))
				return
			}
		}
		session, err := svc.IncrementCounter(r.Context(), sessionID, input.CounterName, input.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// RecordSale writes the sale's stock movements and session totals together.
func RecordSale(svc internalpos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internalpos.SaleInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.SessionID = sessionID
		input.ActorUserID = middleware.ActorUserID(r.Context())

		result, err := svc.RecordSale(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Refund restocks returned items and takes the amount off the session total.
func Refund(svc internalpos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpos.RefundInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorUserID = middleware.ActorUserID(r.Context())

		result, err := svc.Refund(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func requireActor(r *http.Request) (uuid.UUID, error) {
	actor := middleware.ActorUserID(r.Context())
	if actor == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return *actor, nil
}

// closedOr reports a session hidden from the caller the same way as a
// closed one, so counters never leak which sessions exist.
func closedOr(err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
		return pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonSessionNotFoundOrClosed, "session not found or closed")
	}
	return err
}
