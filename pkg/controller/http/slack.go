package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/async"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/secmon-lab/gyges/pkg/utils/safe"
	"github.com/slack-go/slack/slackevents"
)

type contextKey string

const slackPayloadKey contextKey = "slack_payload"

// SignatureTolerance is the accepted clock skew between Slack and us, in both
// directions
const SignatureTolerance = 5 * time.Minute

// ErrUnauthenticated is returned for every failed request verification
var ErrUnauthenticated = goerr.New("unauthenticated slack request")

// VerifySlackSignature checks the v0 request signature of body against the
// signing secret. It must be given the raw bytes as received.
func VerifySlackSignature(signingSecret, timestamp, signature string, body []byte, now time.Time) error {
	if timestamp == "" {
		return goerr.Wrap(ErrUnauthenticated, "missing timestamp")
	}
	if signature == "" {
		return goerr.Wrap(ErrUnauthenticated, "missing signature")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(ErrUnauthenticated, "invalid timestamp", goerr.V("timestamp", timestamp))
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew > SignatureTolerance || skew < -SignatureTolerance {
		return goerr.Wrap(ErrUnauthenticated, "timestamp out of range",
			goerr.V("timestamp", timestamp),
			goerr.V("now", now.Unix()),
		)
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if len(expected) != len(signature) {
		return goerr.Wrap(ErrUnauthenticated, "signature length mismatch")
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return goerr.Wrap(ErrUnauthenticated, "signature mismatch")
	}

	return nil
}

// decodeSlackPayload extracts the JSON document from a verified body. Form
// bodies carry it in the payload field.
func decodeSlackPayload(contentType string, body []byte) (json.RawMessage, error) {
	raw := body
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse form body")
		}
		payload := values.Get("payload")
		if payload == "" {
			return nil, goerr.New("missing payload field")
		}
		raw = []byte(payload)
	}

	if !json.Valid(raw) {
		return nil, goerr.New("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// SlackPayloadFromContext returns the verified JSON payload set by
// SlackSignatureMiddleware
func SlackPayloadFromContext(ctx context.Context) (json.RawMessage, bool) {
	v, ok := ctx.Value(slackPayloadKey).(json.RawMessage)
	return v, ok
}

type signatureConfig struct {
	now func() time.Time
}

type SignatureOption func(*signatureConfig)

// WithSignatureClock replaces time.Now for the timestamp window check
func WithSignatureClock(now func() time.Time) SignatureOption {
	return func(c *signatureConfig) {
		c.now = now
	}
}

// SlackSignatureMiddleware rejects requests that do not carry a valid Slack
// signature. Verified payloads are available via SlackPayloadFromContext.
func SlackSignatureMiddleware(signingSecret string, opts ...SignatureOption) func(http.Handler) http.Handler {
	cfg := &signatureConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")
			if err := VerifySlackSignature(signingSecret, timestamp, signature, body, cfg.now()); err != nil {
				logging.From(ctx).Warn("slack signature verification failed", "error", err.Error(), "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			payload, err := decodeSlackPayload(r.Header.Get("Content-Type"), body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode slack payload"), http.StatusBadRequest)
				return
			}

			ctx = context.WithValue(ctx, slackPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SlackEventHandler handles Slack Events API requests
type SlackEventHandler struct {
	slackUC *usecase.SlackUseCase
}

func NewSlackEventHandler(slackUC *usecase.SlackUseCase) *SlackEventHandler {
	return &SlackEventHandler{slackUC: slackUC}
}

func (h *SlackEventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, ok := SlackPayloadFromContext(ctx)
	if !ok {
		errutil.HandleHTTP(ctx, w, goerr.New("no verified slack payload"), http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(payload, slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(payload, &challenge); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, []byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		// Slack retries unless acknowledged within 3 seconds
		w.WriteHeader(http.StatusOK)

		async.Dispatch(ctx, func(ctx context.Context) error {
			logging.From(ctx).Info("processing slack callback event",
				"type", event.InnerEvent.Type,
				"team_id", event.TeamID,
			)
			if err := h.slackUC.HandleSlackEvent(ctx, &event); err != nil {
				return goerr.Wrap(err, "failed to handle slack event")
			}
			return nil
		})

	default:
		logging.From(ctx).Warn("unknown slack event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}
