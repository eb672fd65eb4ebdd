package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/memory"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/security"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func newTestServer(t *testing.T, readiness func(context.Context) error) *httptest.Server {
	t.Helper()
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Tasks:       repos.Tasks,
		Submissions: repos.Submissions,
		Ledger:      repos.Ledger,
		Accounts:    repos.Accounts,
		Idempotency: repos.Idempotency,
		EventDedup:  repos.EventDedup,
		Outbox:      repos.Outbox,
		Locker:      memory.NewLocker(),
	})
	handler := NewHandler(svc, HandlerOptions{
		Verifier:  security.DevTokenVerifier{},
		Readiness: readiness,
	})
	srv := httptest.NewServer(NewRouter(handler, http.NotFoundHandler()))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-Id", "req-test")
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	var env envelope
	_ = json.NewDecoder(res.Body).Decode(&env)
	return res.StatusCode, env
}

func TestRouterRequiresBearerToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	code, env := call(t, srv, http.MethodGet, "/v1/tasks/task-1", "", nil)
	if code != http.StatusUnauthorized || env.Error.Code != "unauthorized" {
		t.Fatalf("code = %d, error = %+v", code, env.Error)
	}
	if env.Error.RequestID != "req-test" {
		t.Fatalf("request id not echoed: %+v", env.Error)
	}
}

func TestRouterSubmissionLifecycle(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	code, env := call(t, srv, http.MethodPost, "/v1/tasks", "client-1:client", map[string]any{
		"title":  "Reel campaign",
		"budget": "170",
		"pricing_tiers": []map[string]any{
			{"metric": "views", "minimum_delta": 500, "price": "50"},
			{"metric": "views", "minimum_delta": 1000, "price": "120"},
		},
		"metric_deadline_days": 14,
	})
	if code != http.StatusCreated {
		t.Fatalf("create task code = %d, error = %+v", code, env.Error)
	}
	var task struct {
		TaskID      string `json:"task_id"`
		PaymentMode string `json:"payment_mode"`
	}
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.PaymentMode != "tiered" {
		t.Fatalf("payment mode = %q", task.PaymentMode)
	}

	body := map[string]any{"post_reference": "https://instagram.com/p/ABC123/"}
	code, env = call(t, srv, http.MethodPost, "/v1/tasks/"+task.TaskID+"/submissions", "inf-1:influencer", body)
	if code != http.StatusCreated {
		t.Fatalf("submit code = %d, error = %+v", code, env.Error)
	}
	var sub struct {
		SubmissionID string `json:"submission_id"`
		Status       string `json:"status"`
		PostURL      string `json:"post_url"`
	}
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	if sub.Status != "pending" || sub.PostURL != "https://www.instagram.com/p/ABC123/" {
		t.Fatalf("submission = %+v", sub)
	}

	code, env = call(t, srv, http.MethodPost, "/v1/tasks/"+task.TaskID+"/submissions", "inf-1:influencer", body)
	if code != http.StatusConflict || env.Error.Code != "duplicate_active_submission" {
		t.Fatalf("duplicate submit code = %d, error = %+v", code, env.Error)
	}

	code, env = call(t, srv, http.MethodPost, "/v1/submissions/"+sub.SubmissionID+"/approve", "inf-1:influencer", nil)
	if code != http.StatusForbidden {
		t.Fatalf("influencer approve code = %d, error = %+v", code, env.Error)
	}
	code, env = call(t, srv, http.MethodPost, "/v1/submissions/"+sub.SubmissionID+"/approve", "client-1:client", nil)
	if code != http.StatusOK {
		t.Fatalf("approve code = %d, error = %+v", code, env.Error)
	}

	code, _ = call(t, srv, http.MethodPost, "/v1/admin/tracking/cycles", "client-1:client", nil)
	if code != http.StatusForbidden {
		t.Fatalf("non-admin cycle trigger code = %d", code)
	}
	code, env = call(t, srv, http.MethodPost, "/v1/admin/tracking/cycles", "ops:admin", nil)
	if code != http.StatusOK {
		t.Fatalf("cycle code = %d, error = %+v", code, env.Error)
	}
	var report struct {
		Scanned       int    `json:"scanned"`
		FetchFailures int    `json:"fetch_failures"`
		Credited      string `json:"credited"`
	}
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Scanned != 1 || report.FetchFailures != 1 || report.Credited != "0.00" {
		t.Fatalf("report = %+v", report)
	}

	code, env = call(t, srv, http.MethodGet, "/v1/submissions/"+sub.SubmissionID, "client-1:client", nil)
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	if sub.Status != "in_progress" {
		t.Fatalf("status after cycle = %q", sub.Status)
	}

	code, env = call(t, srv, http.MethodGet, "/v1/balances/inf-1", "inf-1:influencer", nil)
	if code != http.StatusOK {
		t.Fatalf("balance code = %d, error = %+v", code, env.Error)
	}
	code, _ = call(t, srv, http.MethodGet, "/v1/balances/inf-1", "inf-2:influencer", nil)
	if code != http.StatusForbidden {
		t.Fatalf("foreign balance code = %d", code)
	}
}

func TestRouterRejectsMalformedInput(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	code, env := call(t, srv, http.MethodPost, "/v1/tasks", "client-1:client", map[string]any{"title": "x", "budget": "ten"})
	if code != http.StatusBadRequest || env.Error.Code != "invalid_input" {
		t.Fatalf("bad budget code = %d, error = %+v", code, env.Error)
	}
	code, env = call(t, srv, http.MethodPost, "/v1/tasks/task-missing/submissions", "inf-1:influencer", map[string]any{"post_reference": "https://example.com/p/x"})
	if code != http.StatusBadRequest {
		t.Fatalf("malformed reference code = %d, error = %+v", code, env.Error)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	if code, _ := call(t, srv, http.MethodGet, "/healthz", "", nil); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	if code, env := call(t, srv, http.MethodGet, "/readyz", "", nil); code != http.StatusServiceUnavailable || env.Error.Code != "not_ready" {
		t.Fatalf("readyz = %d %+v", code, env.Error)
	}
}

func TestMapDomainErrorFallsBackToInternal(t *testing.T) {
	t.Parallel()
	if code, c := mapDomainError(errors.New("boom")); code != http.StatusInternalServerError || c != "internal_error" {
		t.Fatalf("got %d %s", code, c)
	}
}
