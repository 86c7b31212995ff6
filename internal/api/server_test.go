package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/directive"
	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/policy"
	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/report"
	"github.com/MikeSquared-Agency/decoy/internal/session"
	"github.com/MikeSquared-Agency/decoy/internal/store"
)

const phishingOpener = "Your bank account will be blocked today. Verify immediately and share OTP."

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubReporter struct {
	err   error
	calls int
}

func (r *stubReporter) Deliver(context.Context, report.Payload) error {
	r.calls++
	return r.err
}

func newTestServer(t *testing.T, opts Options) (*Server, *store.Memory, *stubReporter) {
	t.Helper()
	lib := patterns.Default()
	tpl, err := directive.DefaultTemplates()
	require.NoError(t, err)
	b := directive.NewBuilder(tpl, lib)
	eng := processor.Engine{
		Library:    lib,
		Extractor:  extractor.New(lib, discardLogger()),
		Classifier: classifier.New(lib, nil, classifier.DefaultConfig(), discardLogger()),
		Machine:    session.NewMachine(lib, session.DefaultConfig()),
		Builder:    b,
		Responder:  directive.NewResponder(b, nil, time.Second, discardLogger()),
		Policy:     policy.New(policy.DefaultConfig()),
	}
	st := store.NewMemory()
	rep := &stubReporter{}
	proc := processor.New(eng, st, rep, nil, discardLogger())
	return NewServer(opts, proc, st, discardLogger()), st, rep
}

func do(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func messageBody(t *testing.T, id, text string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"sessionId": id,
		"message":   map[string]any{"sender": "scammer", "text": text, "timestamp": 1770005528731},
		"metadata":  map[string]any{"channel": "SMS", "language": "English", "locale": "IN"},
	}))
	return buf.String()
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{APIKey: "secret"})

	w := do(t, srv, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})

	w := do(t, srv, "GET", "/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{APIKey: "secret"})

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"x-api-key": "nope"}, http.StatusUnauthorized},
		{"x-api-key", map[string]string{"x-api-key": "secret"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "GET", "/api/v1/stats", "", tt.headers)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		w := do(t, srv, "GET", "/api/v1/stats", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, srv, "GET", "/api/v1/stats", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])

	// a different client has its own bucket
	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	req.RemoteAddr = "10.0.0.9:4242"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostMessage(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})

	w := do(t, srv, "POST", "/api/v1/messages", messageBody(t, "s1", phishingOpener), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.NotEmpty(t, body["reply"])
	assert.Equal(t, "s1", body["sessionId"])
	assert.Equal(t, true, body["scamDetected"])
	assert.Equal(t, "anxious", body["stage"])

	s, err := st.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, s.Turns, 2)
	assert.Equal(t, "SMS", s.Channel)
}

func TestPostMessage_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"sessionId":`, http.StatusBadRequest},
		{"missing text", `{"sessionId":"s1","message":{"sender":"scammer","text":""}}`, http.StatusBadRequest},
		{"missing session", messageBody(t, "", "hello"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/v1/messages", tt.body, nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "MALFORMED_INPUT", decode(t, w)["code"])
		})
	}
}

func TestAnalyze(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})

	w := do(t, srv, "POST", "/api/v1/analyze", `{"message":{"sender":"scammer","text":"`+phishingOpener+`"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["scamDetected"])
	assert.Equal(t, "phishing", body["scamType"])

	list, err := st.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSessionEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})
	for _, text := range []string{phishingOpener, "Send money to scammer.fraud@fakebank"} {
		w := do(t, srv, "POST", "/api/v1/messages", messageBody(t, "s1", text), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	t.Run("session", func(t *testing.T) {
		w := do(t, srv, "GET", "/api/v1/sessions/s1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "s1", body["session_id"])
		assert.Equal(t, "confirmed", body["verdict"])
	})

	t.Run("intelligence", func(t *testing.T) {
		w := do(t, srv, "GET", "/api/v1/sessions/s1/intelligence", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body intelligenceResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, []string{"scammer.fraud@fakebank"}, body.Intelligence.PaymentHandles)
		assert.Equal(t, 1, body.Count)
		assert.NotNil(t, body.Demands)
	})

	t.Run("summary", func(t *testing.T) {
		w := do(t, srv, "GET", "/api/v1/sessions/s1/summary", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body summaryResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.True(t, body.ScamDetected)
		assert.Equal(t, "phishing", body.ScamType)
		assert.Equal(t, 4, body.TotalMessages)
		assert.Equal(t, 2, body.InboundTurns)
		assert.Equal(t, session.ReportNone, body.ReportStatus)
		assert.NotEmpty(t, body.AgentNotes)
	})

	t.Run("history", func(t *testing.T) {
		w := do(t, srv, "GET", "/api/v1/sessions/s1/history", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, float64(4), body["messageCount"])
	})

	t.Run("list", func(t *testing.T) {
		w := do(t, srv, "GET", "/api/v1/sessions?limit=5", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["count"])

		w = do(t, srv, "GET", "/api/v1/sessions?limit=x", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		w := do(t, srv, "GET", "/api/v1/stats", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var st store.Stats
		require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
		assert.Equal(t, 1, st.Sessions)
		assert.Equal(t, 1, st.Confirmed)
	})

	t.Run("unknown session", func(t *testing.T) {
		for _, path := range []string{"/api/v1/sessions/nope", "/api/v1/sessions/nope/summary"} {
			w := do(t, srv, "GET", path, "", nil)
			assert.Equal(t, http.StatusNotFound, w.Code, path)
		}
	})
}

func TestTriggerReport(t *testing.T) {
	srv, st, rep := newTestServer(t, Options{})
	w := do(t, srv, "POST", "/api/v1/messages", messageBody(t, "s1", "Send money to scammer.fraud@fakebank"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, "POST", "/api/v1/sessions/s1/report", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, 1, rep.calls)

	s, err := st.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, session.ReportSent, s.ReportStatus)

	rep.err = report.ErrDeliveryFailed
	w = do(t, srv, "POST", "/api/v1/sessions/s1/report", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, srv, "POST", "/api/v1/sessions/nope/report", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
