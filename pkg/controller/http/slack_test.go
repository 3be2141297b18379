package http_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/gyges/pkg/controller/http"
)

func TestVerifySlackSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"type":"event_callback","event_id":"Ev1"}`)
	sig := sign(testSigningSecret, ts, body)

	t.Run("valid signature", func(t *testing.T) {
		gt.NoError(t, httpctrl.VerifySlackSignature(testSigningSecret, ts, sig, body, now))
	})

	t.Run("edge of the window", func(t *testing.T) {
		gt.NoError(t, httpctrl.VerifySlackSignature(testSigningSecret, ts, sig, body, now.Add(5*time.Minute)))
		gt.NoError(t, httpctrl.VerifySlackSignature(testSigningSecret, ts, sig, body, now.Add(-5*time.Minute)))
	})

	tests := []struct {
		name      string
		secret    string
		timestamp string
		signature string
		body      []byte
		now       time.Time
	}{
		{name: "missing timestamp", signature: sig, body: body, now: now},
		{name: "missing signature", timestamp: ts, body: body, now: now},
		{name: "malformed timestamp", timestamp: "abc", signature: sig, body: body, now: now},
		{name: "stale timestamp", timestamp: ts, signature: sig, body: body, now: now.Add(5*time.Minute + time.Second)},
		{name: "future timestamp", timestamp: ts, signature: sig, body: body, now: now.Add(-5*time.Minute - time.Second)},
		{name: "wrong secret", secret: "other", timestamp: ts, signature: sig, body: body, now: now},
		{name: "mutated body", timestamp: ts, signature: sig, body: []byte(`{"type":"event_callback","event_id":"Ev2"}`), now: now},
		{name: "mutated timestamp", timestamp: strconv.FormatInt(now.Unix()+1, 10), signature: sig, body: body, now: now},
		{name: "mutated signature", timestamp: ts, signature: sig[:len(sig)-1] + flip(sig[len(sig)-1]), body: body, now: now},
		{name: "short signature", timestamp: ts, signature: sig[:10], body: body, now: now},
		{name: "re-serialized body", timestamp: ts, signature: sig, body: []byte(`{"event_id":"Ev1","type":"event_callback"}`), now: now},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			secret := tc.secret
			if secret == "" {
				secret = testSigningSecret
			}
			err := httpctrl.VerifySlackSignature(secret, tc.timestamp, tc.signature, tc.body, tc.now)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, httpctrl.ErrUnauthenticated))
		})
	}
}

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}

func TestSlackSignatureMiddleware(t *testing.T) {
	var (
		called  bool
		payload string
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		raw, ok := httpctrl.SlackPayloadFromContext(r.Context())
		gt.True(t, ok)
		payload = string(raw)
		w.WriteHeader(http.StatusOK)
	})
	handler := httpctrl.SlackSignatureMiddleware(testSigningSecret)(next)

	t.Run("json body", func(t *testing.T) {
		called = false
		body := []byte(`{"type":"url_verification","challenge":"c"}`)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, "/", "application/json", body))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.True(t, called)
		gt.Value(t, payload).Equal(string(body))
	})

	t.Run("form body", func(t *testing.T) {
		called = false
		body := []byte(`payload=%7B%22type%22%3A%22block_actions%22%7D`)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, "/", "application/x-www-form-urlencoded", body))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.True(t, called)
		gt.Value(t, payload).Equal(`{"type":"block_actions"}`)
	})

	t.Run("form body without payload", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, "/", "application/x-www-form-urlencoded", []byte(`foo=bar`)))

		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.False(t, called)
	})

	t.Run("invalid signature never reaches the handler", func(t *testing.T) {
		called = false
		req := signedRequest(t, "/", "application/json", []byte(`{}`))
		req.Header.Set("X-Slack-Signature", "v0=deadbeef")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
		gt.False(t, called)
	})

	t.Run("stale request with injected clock", func(t *testing.T) {
		called = false
		late := httpctrl.SlackSignatureMiddleware(testSigningSecret, httpctrl.WithSignatureClock(func() time.Time {
			return time.Now().Add(10 * time.Minute)
		}))(next)
		rec := httptest.NewRecorder()
		late.ServeHTTP(rec, signedRequest(t, "/", "application/json", []byte(`{}`)))

		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
		gt.False(t, called)
	})
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	body, err := io.ReadAll(rec.Body)
	gt.NoError(t, err)
	gt.Value(t, string(body)).Equal("ok")
}

func TestServer_SlackEvents(t *testing.T) {
	t.Run("url verification echoes the challenge", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(signedRequest(t, "/hooks/slack/events", "application/json",
			[]byte(`{"type":"url_verification","token":"x","challenge":"challenge-123"}`)))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, rec.Body.String()).Equal("challenge-123")
	})

	t.Run("unsigned request is rejected", func(t *testing.T) {
		ts := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/events", strings.NewReader(`{"type":"url_verification","challenge":"c"}`))
		rec := ts.do(req)
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("mention is answered once for duplicate deliveries", func(t *testing.T) {
		ts := newTestServer(t)
		body := []byte(`{
			"type": "event_callback",
			"team_id": "T001",
			"event_id": "Ev0001",
			"event": {
				"type": "app_mention",
				"user": "U_OWNER",
				"text": "<@UBOT> any incidents?",
				"ts": "1700000000.000100",
				"channel": "C001"
			}
		}`)

		for range 2 {
			rec := ts.do(signedRequest(t, "/hooks/slack/events", "application/json", body))
			gt.Value(t, rec.Code).Equal(http.StatusOK)
		}
		waitAsync(t)

		gt.Array(t, ts.slack.Replies()).Length(1)
		gt.Value(t, ts.llm.Sessions()).Equal(1)
		updates := ts.slack.Updates()
		gt.Array(t, updates).Length(1)
		gt.Value(t, updates[0].Text).Equal("No active incidents.")
	})
}
