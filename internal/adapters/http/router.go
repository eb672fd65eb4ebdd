package http

import (
	"context"
	"net/http"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/go-chi/chi/v5"
)

// Handler is the HTTP adapter for the submission tracking use-cases.
type Handler struct {
	service         *application.Service
	verifier        ports.TokenVerifier
	trustRoleHeader bool
	readiness       func(context.Context) error
}

type HandlerOptions struct {
	Verifier        ports.TokenVerifier
	TrustRoleHeader bool
	Readiness       func(context.Context) error
}

func NewHandler(service *application.Service, opts HandlerOptions) *Handler {
	return &Handler{
		service:         service,
		verifier:        opts.Verifier,
		trustRoleHeader: opts.TrustRoleHeader,
		readiness:       opts.Readiness,
	}
}

// NewRouter registers the public routes. metrics may be nil.
func NewRouter(handler *Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)

		r.Post("/tasks", handler.createTask)
		r.Get("/tasks/{task_id}", handler.getTask)
		r.Post("/tasks/{task_id}/close", handler.closeTask)
		r.Post("/tasks/{task_id}/submissions", handler.submitPost)

		r.Get("/submissions/{submission_id}", handler.getSubmission)
		r.Put("/submissions/{submission_id}/link", handler.updateLink)
		r.Post("/submissions/{submission_id}/approve", handler.approve)
		r.Post("/submissions/{submission_id}/revision", handler.requestRevision)
		r.Post("/submissions/{submission_id}/resubmit", handler.resubmit)
		r.Post("/submissions/{submission_id}/reject", handler.reject)
		r.Post("/submissions/{submission_id}/complete", handler.completeFlat)
		r.Get("/submissions/{submission_id}/ledger", handler.listLedger)

		r.Put("/accounts/instagram", handler.linkInstagram)
		r.Get("/balances/{account_id}", handler.balance)

		r.Post("/admin/tracking/cycles", handler.triggerCycle)
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "not_ready", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "dependencies unavailable", requestIDFromContext(r.Context()))
			return
		}
	}
	writeSuccess(w, http.StatusOK, "ready", nil)
}
