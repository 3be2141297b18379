package usecase_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/repository/memory"
	"github.com/secmon-lab/gyges/pkg/service/slack"
	goslack "github.com/slack-go/slack"
)

const (
	testTeamID      = "T001"
	testWorkspaceID = int64(7)
	testBotToken    = "xoxb-test"
	testBotUserID   = "UBOT"
	testUserID      = "U_OWNER"
	testChannelID   = "C001"
)

// ----- mock slack service -----

type updatedMessage struct {
	ChannelID string
	TS        string
	Text      string
	Blocks    []goslack.Block
}

type ephemeralMessage struct {
	ChannelID string
	UserID    string
	Text      string
}

type postedReply struct {
	ChannelID string
	ThreadTS  string
	Text      string
}

type mockSlackService struct {
	mu         sync.Mutex
	replies    []postedReply
	updates    []updatedMessage
	ephemerals []ephemeralMessage

	postThreadReplyFn   func(ctx context.Context, channelID, threadTS, text string) (string, error)
	updateMessageFn     func(ctx context.Context, channelID, ts string, blocks []goslack.Block, text string) error
	getThreadMessagesFn func(ctx context.Context, channelID, threadTS string, limit int) ([]slack.Message, error)
}

var _ slack.Service = &mockSlackService{}

func (m *mockSlackService) PostThreadReply(ctx context.Context, channelID, threadTS, text string) (string, error) {
	m.mu.Lock()
	m.replies = append(m.replies, postedReply{ChannelID: channelID, ThreadTS: threadTS, Text: text})
	m.mu.Unlock()
	if m.postThreadReplyFn != nil {
		return m.postThreadReplyFn(ctx, channelID, threadTS, text)
	}
	return "1700000000.thinking", nil
}

func (m *mockSlackService) UpdateMessage(ctx context.Context, channelID, ts string, blocks []goslack.Block, text string) error {
	m.mu.Lock()
	m.updates = append(m.updates, updatedMessage{ChannelID: channelID, TS: ts, Text: text, Blocks: blocks})
	m.mu.Unlock()
	if m.updateMessageFn != nil {
		return m.updateMessageFn(ctx, channelID, ts, blocks, text)
	}
	return nil
}

func (m *mockSlackService) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ephemerals = append(m.ephemerals, ephemeralMessage{ChannelID: channelID, UserID: userID, Text: text})
	return nil
}

func (m *mockSlackService) GetThreadMessages(ctx context.Context, channelID, threadTS string, limit int) ([]slack.Message, error) {
	if m.getThreadMessagesFn != nil {
		return m.getThreadMessagesFn(ctx, channelID, threadTS, limit)
	}
	return nil, nil
}

func (m *mockSlackService) Updates() []updatedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]updatedMessage{}, m.updates...)
}

func (m *mockSlackService) LastUpdate() updatedMessage {
	updates := m.Updates()
	if len(updates) == 0 {
		return updatedMessage{}
	}
	return updates[len(updates)-1]
}

func (m *mockSlackService) Ephemerals() []ephemeralMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ephemeralMessage{}, m.ephemerals...)
}

// factoryFor returns a slack.Factory that hands out svc and records tokens
func factoryFor(svc slack.Service, tokens *[]string) slack.Factory {
	var mu sync.Mutex
	return func(token string) (slack.Service, error) {
		if tokens != nil {
			mu.Lock()
			*tokens = append(*tokens, token)
			mu.Unlock()
		}
		return svc, nil
	}
}

// ----- mock LLM -----

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	mu                sync.Mutex
	calls             [][]gollem.Input
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, input)
	s.mu.Unlock()
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"This is a test response."}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

func (s *mockLLMSession) Calls() [][]gollem.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]gollem.Input{}, s.calls...)
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	sessions     int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.sessions++
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

// scriptedLLM returns a client whose session answers with responses in
// order and repeats the last one once the script runs out.
func scriptedLLM(responses ...*gollem.Response) (*mockLLMClient, *mockLLMSession) {
	var mu sync.Mutex
	step := 0
	session := &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			resp := responses[min(step, len(responses)-1)]
			step++
			return resp, nil
		},
	}
	client := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return session, nil
		},
	}
	return client, session
}

func callTool(id, name string, args map[string]any) *gollem.Response {
	return &gollem.Response{
		FunctionCalls: []*gollem.FunctionCall{{ID: id, Name: name, Arguments: args}},
	}
}

func textResponse(text string) *gollem.Response {
	return &gollem.Response{Texts: []string{text}}
}

// ----- fixtures -----

// setupRepo returns a repository with one installed workspace and one page
func setupRepo(t *testing.T, limits model.Limits) *memory.Memory {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.Workspace().Put(ctx, &model.Workspace{
		ID:     testWorkspaceID,
		Name:   "Acme",
		Slug:   "acme",
		Limits: limits,
	})).Required()
	gt.NoError(t, repo.Integration().Put(ctx, &model.SlackIntegration{
		TeamID:      testTeamID,
		WorkspaceID: testWorkspaceID,
		BotToken:    testBotToken,
		BotUserID:   testBotUserID,
		InstalledAt: time.Now(),
	})).Required()
	gt.NoError(t, repo.StatusPage().Put(ctx, &model.StatusPage{
		ID:          1,
		WorkspaceID: testWorkspaceID,
		Title:       "Acme Status",
		Slug:        "acme",
		Components: []model.PageComponent{
			{ID: "comp-1", Name: "API"},
			{ID: "comp-2", Name: "Dashboard"},
		},
	})).Required()
	gt.NoError(t, repo.StatusPage().Put(ctx, &model.StatusPage{
		ID:           2,
		WorkspaceID:  testWorkspaceID,
		Title:        "Internal",
		Slug:         "internal",
		CustomDomain: "status.acme.com",
		Components:   []model.PageComponent{{ID: "comp-9", Name: "VPN"}},
	})).Required()

	return repo
}

func createReport(t *testing.T, repo *memory.Memory, title string, status types.ReportStatus) *model.StatusReport {
	t.Helper()
	report, err := repo.StatusReport().Create(context.Background(),
		&model.StatusReport{WorkspaceID: testWorkspaceID, PageID: 1, Title: title, PageComponentIDs: []string{"comp-1"}},
		&model.StatusReportUpdate{Status: status, Message: "first", Date: time.Now()},
	)
	gt.NoError(t, err).Required()
	return report
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
