package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/service/subscription"
)

// Handlers holds the HTTP handlers for the subscription endpoints.
type Handlers struct {
	svc *subscription.Service
}

// NewHandlers creates the handler set.
func NewHandlers(svc *subscription.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Subscribe registers a new subscriber from a form submission.
// Responses carry only a status code: 200 on success, 400 on invalid
// input, 500 on persistence or dispatch failure.
//
//	POST /subscriptions  (application/x-www-form-urlencoded: name, email)
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.svc.Subscribe(r.Context(), r.PostFormValue("name"), r.PostFormValue("email"))
	if err != nil {
		logger.Warn("subscribe failed",
			"request_id", middleware.GetReqID(r.Context()), "error", err.Error())
		w.WriteHeader(statusForError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Confirm activates the subscription owning the supplied token.
// 200 on success (repeat confirms included), 400 for a missing or
// malformed token, 401 for an unknown one.
//
//	GET /subscriptions/confirm?subscription_token=...
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("subscription_token")
	if token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.Confirm(r.Context(), token); err != nil {
		logger.Warn("confirm failed",
			"request_id", middleware.GetReqID(r.Context()), "error", err.Error())
		w.WriteHeader(statusForError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Resend issues a fresh confirmation email for a pending subscriber.
// 400 covers invalid, unknown, and already-confirmed addresses alike, so
// the endpoint cannot be used to probe who is subscribed.
//
//	POST /subscriptions/resend  (application/x-www-form-urlencoded: email)
func (h *Handlers) Resend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.Resend(r.Context(), r.PostFormValue("email")); err != nil {
		logger.Warn("resend failed",
			"request_id", middleware.GetReqID(r.Context()), "error", err.Error())
		w.WriteHeader(statusForError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// statusForError maps orchestrator error kinds to status codes. Bodies stay
// empty; the detail goes to the log, not to the caller.
func statusForError(err error) int {
	var svcErr *subscription.Error
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError
	}
	switch svcErr.Kind {
	case subscription.ErrKindValidation:
		return http.StatusBadRequest
	case subscription.ErrKindNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
