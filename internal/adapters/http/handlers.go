package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code := mapDomainError(err)
	logHTTPOperationError(r.Context(), operation, status, code, err)
	message := err.Error()
	if status >= 500 {
		message = http.StatusText(status)
	}
	writeError(w, status, code, message, requestIDFromContext(r.Context()))
}

// decodeBody decodes a JSON body into dst. An empty body is accepted when
// optional is true.
func decodeBody(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid json body", domain.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateTaskRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.fail(w, r, "create_task", err)
		return
	}
	in, err := toCreateTaskInput(req)
	if err != nil {
		h.fail(w, r, "create_task", err)
		return
	}
	task, err := h.service.CreateTask(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, "create_task", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "task created", toTaskResponse(task))
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.GetTask(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "task_id"))
	if err != nil {
		h.fail(w, r, "get_task", err)
		return
	}
	writeSuccess(w, http.StatusOK, "task", toTaskResponse(task))
}

func (h *Handler) closeTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.CloseTask(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "task_id"))
	if err != nil {
		h.fail(w, r, "close_task", err)
		return
	}
	writeSuccess(w, http.StatusOK, "task closed", toTaskResponse(task))
}

func (h *Handler) submitPost(w http.ResponseWriter, r *http.Request) {
	var req contracts.SubmitPostRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.fail(w, r, "submit_post", err)
		return
	}
	sub, err := h.service.SubmitPost(r.Context(), actorFromContext(r.Context()), application.SubmitPostInput{
		TaskID:        chi.URLParam(r, "task_id"),
		InfluencerID:  req.InfluencerID,
		PostReference: req.PostReference,
	})
	if err != nil {
		h.fail(w, r, "submit_post", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "submission received", toSubmissionResponse(sub))
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.GetSubmissionStatus(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"))
	if err != nil {
		h.fail(w, r, "get_submission_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission", toSubmissionResponse(sub))
}

func (h *Handler) updateLink(w http.ResponseWriter, r *http.Request) {
	var req contracts.UpdateLinkRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.fail(w, r, "update_post_link", err)
		return
	}
	sub, err := h.service.UpdatePostLink(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"), req.PostReference)
	if err != nil {
		h.fail(w, r, "update_post_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, "post link updated", toSubmissionResponse(sub))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.ApproveSubmission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"))
	if err != nil {
		h.fail(w, r, "approve_submission", err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission approved", toSubmissionResponse(sub))
}

func (h *Handler) requestRevision(w http.ResponseWriter, r *http.Request) {
	var req contracts.ReviewRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.fail(w, r, "request_revision", err)
		return
	}
	sub, err := h.service.RequestRevision(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"), req.Note)
	if err != nil {
		h.fail(w, r, "request_revision", err)
		return
	}
	writeSuccess(w, http.StatusOK, "revision requested", toSubmissionResponse(sub))
}

func (h *Handler) resubmit(w http.ResponseWriter, r *http.Request) {
	var req contracts.ResubmitRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.fail(w, r, "resubmit_post", err)
		return
	}
	sub, err := h.service.ResubmitPost(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"), req.PostReference)
	if err != nil {
		h.fail(w, r, "resubmit_post", err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission resubmitted", toSubmissionResponse(sub))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req contracts.ReviewRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.fail(w, r, "reject_submission", err)
		return
	}
	sub, err := h.service.RejectSubmission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"), req.Note)
	if err != nil {
		h.fail(w, r, "reject_submission", err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission rejected", toSubmissionResponse(sub))
}

func (h *Handler) completeFlat(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.CompleteFlatSubmission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"))
	if err != nil {
		h.fail(w, r, "complete_flat_submission", err)
		return
	}
	writeSuccess(w, http.StatusOK, "submission completed", toSubmissionResponse(sub))
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListLedgerEntries(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "submission_id"))
	if err != nil {
		h.fail(w, r, "list_ledger_entries", err)
		return
	}
	out := make([]contracts.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLedgerEntryResponse(e))
	}
	writeSuccess(w, http.StatusOK, "ledger entries", out)
}

func (h *Handler) linkInstagram(w http.ResponseWriter, r *http.Request) {
	var req contracts.LinkAccountRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.fail(w, r, "link_instagram_account", err)
		return
	}
	acct, err := h.service.LinkInstagramAccount(r.Context(), actorFromContext(r.Context()), strings.TrimSpace(r.URL.Query().Get("influencer_id")), req.AccessToken)
	if err != nil {
		h.fail(w, r, "link_instagram_account", err)
		return
	}
	writeSuccess(w, http.StatusOK, "account linked", contracts.LinkedAccountResponse{
		InfluencerID: acct.InfluencerID,
		Platform:     acct.Platform,
		AccountID:    acct.AccountID,
		LinkedAt:     formatTime(acct.LinkedAt),
	})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.service.GetBalance(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "account_id"))
	if err != nil {
		h.fail(w, r, "get_balance", err)
		return
	}
	writeSuccess(w, http.StatusOK, "balance", contracts.BalanceResponse{
		AccountID: bal.AccountID,
		Currency:  bal.Currency,
		Credited:  bal.Credited.StringFixed(2),
		Debited:   bal.Debited.StringFixed(2),
		Net:       bal.Net.StringFixed(2),
	})
}

func (h *Handler) triggerCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.TriggerTrackingCycle(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "trigger_tracking_cycle", err)
		return
	}
	writeSuccess(w, http.StatusOK, "tracking cycle finished", contracts.CycleReportResponse{
		CycleID:           report.CycleID,
		Scanned:           report.Scanned,
		Tracked:           report.Tracked,
		Completed:         report.Completed,
		DeadlineCompleted: report.DeadlineCompleted,
		FetchFailures:     report.FetchFailures,
		LedgerFailures:    report.LedgerFailures,
		LockSkipped:       report.LockSkipped,
		Credited:          report.Credited.StringFixed(2),
		StartedAt:         formatTime(report.StartedAt),
		FinishedAt:        formatTime(report.FinishedAt),
	})
}

func toCreateTaskInput(req contracts.CreateTaskRequest) (application.CreateTaskInput, error) {
	budget := decimal.Zero
	if strings.TrimSpace(req.Budget) != "" {
		v, err := decimal.NewFromString(strings.TrimSpace(req.Budget))
		if err != nil {
			return application.CreateTaskInput{}, fmt.Errorf("%w: budget is not a decimal", domain.ErrInvalidInput)
		}
		budget = v
	}
	in := application.CreateTaskInput{
		Title:              req.Title,
		Description:        req.Description,
		Budget:             budget,
		Currency:           req.Currency,
		MetricDeadlineDays: req.MetricDeadlineDays,
		MaxInfluencers:     req.MaxInfluencers,
	}
	if len(req.TargetMetrics) > 0 {
		in.TargetMetrics = make(map[domain.Metric]int64, len(req.TargetMetrics))
		for k, v := range req.TargetMetrics {
			in.TargetMetrics[domain.Metric(strings.ToLower(strings.TrimSpace(k)))] = v
		}
	}
	for _, t := range req.PricingTiers {
		price, err := decimal.NewFromString(strings.TrimSpace(t.Price))
		if err != nil {
			return application.CreateTaskInput{}, fmt.Errorf("%w: tier price is not a decimal", domain.ErrInvalidInput)
		}
		in.PricingTiers = append(in.PricingTiers, domain.PricingTier{
			Metric:       domain.Metric(strings.ToLower(strings.TrimSpace(t.Metric))),
			MinimumDelta: t.MinimumDelta,
			Price:        price,
		})
	}
	if strings.TrimSpace(req.WorkDeadline) != "" {
		deadline, err := time.Parse(time.RFC3339, strings.TrimSpace(req.WorkDeadline))
		if err != nil {
			return application.CreateTaskInput{}, fmt.Errorf("%w: work_deadline must be RFC3339", domain.ErrInvalidInput)
		}
		deadline = deadline.UTC()
		in.WorkDeadline = &deadline
	}
	return in, nil
}
