package slack_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/service/slack"
	slackapi "github.com/slack-go/slack"
)

// fakeAPI records form posts per Slack method and answers with canned JSON
type fakeAPI struct {
	mu       sync.Mutex
	requests map[string][]url.Values
	replies  map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, slack.Service) {
	t.Helper()

	api := &fakeAPI{
		requests: make(map[string][]url.Values),
		replies: map[string]string{
			"chat.postMessage":      `{"ok":true,"channel":"C001","ts":"1700000000.000300"}`,
			"chat.update":           `{"ok":true,"channel":"C001","ts":"1700000000.000300","text":"x"}`,
			"chat.postEphemeral":    `{"ok":true,"message_ts":"1700000000.000400"}`,
			"conversations.replies": `{"ok":true,"messages":[{"type":"message","user":"U1","text":"create a report","ts":"1.1"},{"type":"message","bot_id":"B1","user":"U_BOT","text":"done","ts":"1.2"}],"has_more":false}`,
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.NoError(t, r.ParseForm())
		method := r.URL.Path[1:]

		api.mu.Lock()
		api.requests[method] = append(api.requests[method], r.PostForm)
		reply, ok := api.replies[method]
		api.mu.Unlock()

		if !ok {
			reply = `{"ok":false,"error":"unknown_method"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	svc, err := slack.New("xoxb-test", slack.WithAPIURL(srv.URL+"/"))
	gt.NoError(t, err).Required()
	return api, svc
}

func (f *fakeAPI) last(method string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[method]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates service when token is provided", func(t *testing.T) {
		svc, err := slack.New("test-token")
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})

	t.Run("factory rejects empty token", func(t *testing.T) {
		_, err := slack.NewFactory()("")
		gt.Value(t, err).NotNil()
	})
}

func TestClient_PostThreadReply(t *testing.T) {
	api, svc := newFakeAPI(t)

	ts, err := svc.PostThreadReply(context.Background(), "C001", "1700000000.000100", ":hourglass_flowing_sand: Thinking...")
	gt.NoError(t, err).Required()
	gt.Value(t, ts).Equal("1700000000.000300")

	req := api.last("chat.postMessage")
	gt.Value(t, req.Get("channel")).Equal("C001")
	gt.Value(t, req.Get("thread_ts")).Equal("1700000000.000100")
	gt.Value(t, req.Get("text")).Equal(":hourglass_flowing_sand: Thinking...")
}

func TestClient_UpdateMessage(t *testing.T) {
	t.Run("clears blocks when none given", func(t *testing.T) {
		api, svc := newFakeAPI(t)

		gt.NoError(t, svc.UpdateMessage(context.Background(), "C001", "1700000000.000300", nil, ":no_entry_sign: Cancelled.")).Required()

		req := api.last("chat.update")
		gt.Value(t, req.Get("ts")).Equal("1700000000.000300")
		gt.Value(t, req.Get("text")).Equal(":no_entry_sign: Cancelled.")
		gt.Value(t, req.Get("blocks")).Equal("[]")
	})

	t.Run("sends blocks", func(t *testing.T) {
		api, svc := newFakeAPI(t)

		blocks := []slackapi.Block{slackapi.NewDividerBlock()}
		gt.NoError(t, svc.UpdateMessage(context.Background(), "C001", "1700000000.000300", blocks, "summary")).Required()

		req := api.last("chat.update")
		gt.String(t, req.Get("blocks")).Contains(`"divider"`)
	})
}

func TestClient_PostEphemeral(t *testing.T) {
	api, svc := newFakeAPI(t)

	gt.NoError(t, svc.PostEphemeral(context.Background(), "C001", "U_OTHER", "only you")).Required()

	req := api.last("chat.postEphemeral")
	gt.Value(t, req.Get("user")).Equal("U_OTHER")
	gt.Value(t, req.Get("text")).Equal("only you")
}

func TestClient_GetThreadMessages(t *testing.T) {
	api, svc := newFakeAPI(t)

	msgs, err := svc.GetThreadMessages(context.Background(), "C001", "1.1", 100)
	gt.NoError(t, err).Required()
	gt.Array(t, msgs).Length(2)
	gt.Value(t, msgs[0].Text).Equal("create a report")
	gt.Bool(t, msgs[0].FromBot()).False()
	gt.Bool(t, msgs[1].FromBot()).True()

	req := api.last("conversations.replies")
	gt.Value(t, req.Get("limit")).Equal("100")
	gt.Value(t, req.Get("ts")).Equal("1.1")
}

func TestClient_APIError(t *testing.T) {
	api, svc := newFakeAPI(t)
	api.replies["chat.update"] = `{"ok":false,"error":"message_not_found"}`

	err := svc.UpdateMessage(context.Background(), "C001", "1.1", nil, "x")
	gt.Value(t, err).NotNil()
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	channelID := os.Getenv("TEST_SLACK_CHANNEL_ID")
	if token == "" || channelID == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN or TEST_SLACK_CHANNEL_ID is not set")
	}

	ctx := context.Background()
	svc, err := slack.New(token)
	gt.NoError(t, err).Required()

	ts, err := svc.PostThreadReply(ctx, channelID, "", "gyges integration test")
	gt.NoError(t, err).Required()
	gt.NoError(t, svc.UpdateMessage(ctx, channelID, ts, nil, "gyges integration test (updated)"))
}
