package http_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/gyges/pkg/controller/http"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/repository/memory"
	"github.com/secmon-lab/gyges/pkg/service/slack"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/async"
	goslack "github.com/slack-go/slack"
)

const (
	testSigningSecret = "test-signing-secret"
	testTeamID        = "T001"
	testUserID        = "U_OWNER"
	testChannelID     = "C001"
)

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(t *testing.T, path, contentType string, body []byte) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sign(testSigningSecret, ts, body))
	return req
}

type recordedUpdate struct {
	TS     string
	Text   string
	Blocks []goslack.Block
}

type fakeSlack struct {
	mu      sync.Mutex
	replies []string
	updates []recordedUpdate
}

func (f *fakeSlack) PostThreadReply(ctx context.Context, channelID, threadTS, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return "1700000000.thinking", nil
}

func (f *fakeSlack) UpdateMessage(ctx context.Context, channelID, ts string, blocks []goslack.Block, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{TS: ts, Text: text, Blocks: blocks})
	return nil
}

func (f *fakeSlack) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	return nil
}

func (f *fakeSlack) GetThreadMessages(ctx context.Context, channelID, threadTS string, limit int) ([]slack.Message, error) {
	return nil, nil
}

func (f *fakeSlack) Replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.replies...)
}

func (f *fakeSlack) Updates() []recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedUpdate{}, f.updates...)
}

type fakeSession struct {
	reply string
}

func (s *fakeSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return &gollem.Response{Texts: []string{s.reply}}, nil
}

func (s *fakeSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *fakeSession) History() (*gollem.History, error) { return nil, nil }

func (s *fakeSession) AppendHistory(*gollem.History) error { return nil }

func (s *fakeSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type fakeLLM struct {
	mu       sync.Mutex
	sessions int
}

func (c *fakeLLM) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions++
	return &fakeSession{reply: "No active incidents."}, nil
}

func (c *fakeLLM) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

func (c *fakeLLM) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

type testServer struct {
	repo   *memory.Memory
	uc     *usecase.UseCases
	slack  *fakeSlack
	llm    *fakeLLM
	server *httpctrl.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.Workspace().Put(ctx, &model.Workspace{
		ID:     7,
		Name:   "Acme",
		Slug:   "acme",
		Limits: model.Limits{StatusSubscribers: true},
	})).Required()
	gt.NoError(t, repo.Integration().Put(ctx, &model.SlackIntegration{
		TeamID:      testTeamID,
		WorkspaceID: 7,
		BotToken:    "xoxb-test",
		BotUserID:   "UBOT",
	})).Required()
	gt.NoError(t, repo.StatusPage().Put(ctx, &model.StatusPage{
		ID:          1,
		WorkspaceID: 7,
		Title:       "Acme Status",
		Slug:        "acme",
		Components:  []model.PageComponent{{ID: "comp-1", Name: "API"}},
	})).Required()

	ts := &testServer{repo: repo, slack: &fakeSlack{}, llm: &fakeLLM{}}
	factory := func(token string) (slack.Service, error) {
		return ts.slack, nil
	}
	ts.uc = usecase.New(repo, ts.llm, factory, usecase.WithPublicStatusDomain("status.example.com"))
	ts.server = httpctrl.New(httpctrl.WithSlack(ts.uc, testSigningSecret))
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func waitAsync(t *testing.T) {
	t.Helper()
	gt.Bool(t, async.Wait(5*time.Second)).True()
}
