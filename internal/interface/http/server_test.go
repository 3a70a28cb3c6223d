package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-bookx/exchange-hub/internal/application/command"
	"github.com/campus-bookx/exchange-hub/internal/application/query"
	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/interface/http/handlers"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

type stubRunner struct {
	res    *command.RunMatchingResult
	err    error
	gotCmd command.RunMatchingCommand
	ctxErr error
}

func (s *stubRunner) Handle(ctx context.Context, cmd command.RunMatchingCommand) (*command.RunMatchingResult, error) {
	s.gotCmd = cmd
	s.ctxErr = ctx.Err()
	return s.res, s.err
}

type stubRuns struct{ got query.ListMatchingRunsQuery }

func (s *stubRuns) Handle(_ context.Context, q query.ListMatchingRunsQuery) (*query.ListMatchingRunsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.got = q
	return &query.ListMatchingRunsResult{Runs: []*exchange.MatchingRun{{ID: "r1"}}, Count: 1}, nil
}

type stubSlots struct{ got query.ListSlotsQuery }

func (s *stubSlots) Handle(_ context.Context, q query.ListSlotsQuery) (*query.ListSlotsResult, error) {
	s.got = q
	return &query.ListSlotsResult{Date: timeutil.FormatDate(q.Date), Slots: []query.SlotDTO{}}, nil
}

type testServer struct {
	runner *stubRunner
	runs   *stubRuns
	slots  *stubSlots
	health *handlers.CompositeHealthChecker
	h      http.Handler
}

func newTestServer(t *testing.T, keys ...string) *testServer {
	t.Helper()
	var hashes []string
	for _, k := range keys {
		h, err := bcrypt.GenerateFromPassword([]byte(k), bcrypt.MinCost)
		require.NoError(t, err)
		hashes = append(hashes, string(h))
	}
	auth, err := handlers.NewAPIKeyAuth(hashes)
	require.NoError(t, err)

	ts := &testServer{
		runner: &stubRunner{},
		runs:   &stubRuns{},
		slots:  &stubSlots{},
		health: handlers.NewCompositeHealthChecker("test"),
	}
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{
		RunMatching:   ts.runner,
		ListRuns:      ts.runs,
		ListSlots:     ts.slots,
		HealthChecker: ts.health,
		APIKeys:       auth,
		Logger:        logger.Discard(),
	})
	ts.h = srv.Handler()
	return ts
}

func (ts *testServer) do(method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader("{}"))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRunMatchingSuccess(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.res = &command.RunMatchingResult{
		RunID:          "run-1",
		Message:        "Successfully matched 2 pairs",
		MatchesCreated: 2,
		Term:           exchange.Term{Semester: "Odd", AcademicYear: "2025-26"},
		ExchangeDate:   timeutil.Date(2025, time.January, 13),
	}

	rec := ts.do(http.MethodPost, "/run-matching-engine", map[string]string{"X-Request-ID": "req-9"})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Successfully matched 2 pairs", body["message"])
	assert.Equal(t, float64(2), body["matches_created"])
	assert.Equal(t, "Odd", body["semester"])
	assert.Equal(t, "2025-01-13", body["exchange_date"])
	assert.Equal(t, exchange.TriggerHTTP, ts.runner.gotCmd.Trigger)
	assert.Equal(t, "req-9", ts.runner.gotCmd.CorrelationID)
	assert.Equal(t, "req-9", rec.Header().Get("X-Request-ID"))
}

func TestRunMatchingZeroPairsIsSuccess(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.res = &command.RunMatchingResult{Message: "No pairs possible: 1 slot 1 and 0 slot 2 students eligible"}

	rec := ts.do(http.MethodPost, "/run-matching-engine", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["matches_created"])
}

func TestRunMatchingErrors(t *testing.T) {
	ts := newTestServer(t)

	ts.runner.err = shared.ErrRunInProgress
	rec := ts.do(http.MethodPost, "/run-matching-engine", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.runner.err = shared.WrapError("exchange", "Commit", shared.ErrCommitFailed, "commit 2 matches", errors.New("deadlock"))
	rec = ts.do(http.MethodPost, "/run-matching-engine", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "deadlock")
}

func TestRunMatchingDetachedFromClient(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.res = &command.RunMatchingResult{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/run-matching-engine", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)

	assert.NoError(t, ts.runner.ctxErr)
}

func TestRunMatchingMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/run-matching-engine", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, "secret")
	rec := ts.do(http.MethodOptions, "/run-matching-engine", map[string]string{"Origin": "https://campus.example"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "apikey")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "x-client-info")
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, "secret")
	ts.runner.res = &command.RunMatchingResult{}

	rec := ts.do(http.MethodPost, "/run-matching-engine", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/run-matching-engine", map[string]string{"apikey": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/run-matching-engine", map[string]string{"apikey": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/run-matching-engine", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/matching-runs?limit=5", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.runs.got.Limit)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])

	rec = ts.do(http.MethodGet, "/matching-runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/matching-runs?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSlots(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/exchange-slots?date=2025-01-13", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-01-13", timeutil.FormatDate(ts.slots.got.Date))

	rec = ts.do(http.MethodGet, "/exchange-slots?date=13-01-2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/exchange-slots", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.slots.got.Date.IsZero())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.health.AddCheck("store", func(context.Context) error { return nil })

	rec := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.health.AddCheck("redis", func(context.Context) error { return errors.New("refused") })
	rec = ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.Close()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}
