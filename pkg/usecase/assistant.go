package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/gyges/pkg/agent/tool"
	"github.com/secmon-lab/gyges/pkg/agent/tool/status"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/service/slack"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

//go:embed prompt/assistant_system.md
var assistantSystemPromptTmpl string

var assistantSystemPrompt = template.Must(template.New("assistant_system").Parse(assistantSystemPromptTmpl))

const (
	// DefaultMaxSteps bounds the number of model calls per request
	DefaultMaxSteps = 5

	unreadableMessageReply = "I couldn't read your message. Please try again."
)

type conversationRole string

const (
	roleUser      conversationRole = "user"
	roleAssistant conversationRole = "assistant"
)

type conversationTurn struct {
	Role conversationRole
	Text string
}

type assistantPromptData struct {
	WorkspaceName string
	Conversation  []conversationTurn
}

// Proposal is a mutating action the model asked for, with the tool that produced it
type Proposal struct {
	ToolName string
	Action   model.Action
}

// AssistantReply is the outcome of one assistant run
type AssistantReply struct {
	Text      string
	Proposals []Proposal
}

// Confirmation returns the first proposal, the one shown to the user
func (r *AssistantReply) Confirmation() *Proposal {
	if r == nil || len(r.Proposals) == 0 {
		return nil
	}
	return &r.Proposals[0]
}

// AssistantUseCase turns a Slack conversation into a reply and at most one
// confirmation-worthy proposal by running the status tools through an LLM.
type AssistantUseCase struct {
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	maxSteps  int
}

type AssistantOption func(*AssistantUseCase)

func WithMaxSteps(n int) AssistantOption {
	return func(uc *AssistantUseCase) {
		if n > 0 {
			uc.maxSteps = n
		}
	}
}

func NewAssistantUseCase(repo interfaces.Repository, llmClient gollem.LLMClient, opts ...AssistantOption) *AssistantUseCase {
	uc := &AssistantUseCase{
		repo:      repo,
		llmClient: llmClient,
		maxSteps:  DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Propose runs the model over the thread. Mutating tools only produce
// proposals; nothing is written to the repository here.
func (uc *AssistantUseCase) Propose(ctx context.Context, ws *model.Workspace, thread []slack.Message, botUserID, fallbackText string) (*AssistantReply, error) {
	logger := logging.From(ctx)

	turns := buildConversation(thread, botUserID)
	if len(turns) == 0 && strings.TrimSpace(fallbackText) != "" {
		turns = []conversationTurn{{Role: roleUser, Text: fallbackText}}
	}
	if len(turns) == 0 {
		return &AssistantReply{Text: unreadableMessageReply}, nil
	}

	history, latest := splitLatestUserTurn(turns)
	workspaceName := ws.Name
	if workspaceName == "" {
		workspaceName = "Unknown"
	}
	systemPrompt, err := renderAssistantSystemPrompt(assistantPromptData{
		WorkspaceName: workspaceName,
		Conversation:  history,
	})
	if err != nil {
		return nil, err
	}

	invokers := status.New(uc.repo, ws.ID)
	byName := make(map[string]tool.Invoker, len(invokers))
	for _, inv := range invokers {
		byName[inv.Spec().Name] = inv
	}

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(systemPrompt),
		gollem.WithSessionTools(status.Tools(invokers)...),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session", goerr.V("workspace_id", ws.ID))
	}

	reply := &AssistantReply{}
	input := []gollem.Input{gollem.Text(latest)}
	for step := 0; step < uc.maxSteps && len(input) > 0; step++ {
		resp, err := session.GenerateContent(ctx, input...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate content",
				goerr.V("workspace_id", ws.ID),
				goerr.V("step", step),
			)
		}

		if text := strings.TrimSpace(strings.Join(resp.Texts, "\n")); text != "" {
			reply.Text = text
		}

		input = nil
		for _, call := range resp.FunctionCalls {
			input = append(input, uc.invoke(ctx, byName, call, reply))
		}

		if step == uc.maxSteps-1 && len(input) > 0 {
			logger.Warn("assistant step limit reached", "max_steps", uc.maxSteps, "workspace_id", ws.ID)
		}
	}

	return reply, nil
}

func (uc *AssistantUseCase) invoke(ctx context.Context, byName map[string]tool.Invoker, call *gollem.FunctionCall, reply *AssistantReply) gollem.FunctionResponse {
	logger := logging.From(ctx)
	out := gollem.FunctionResponse{ID: call.ID, Name: call.Name}

	inv, ok := byName[call.Name]
	if !ok {
		out.Error = goerr.New("unknown tool", goerr.V("name", call.Name))
		return out
	}

	result, err := inv.Invoke(ctx, call.Arguments)
	if err != nil {
		logger.Info("tool call failed", "tool", call.Name, "error", err.Error())
		out.Error = err
		return out
	}

	if nc, ok := result.(tool.NeedsConfirmation); ok {
		reply.Proposals = append(reply.Proposals, Proposal{ToolName: call.Name, Action: nc.Action})
	}
	out.Data = result.Data()
	return out
}

// buildConversation maps thread messages to role-tagged turns. Empty messages
// are skipped and leading assistant turns are dropped so the conversation
// always opens with the user.
func buildConversation(thread []slack.Message, botUserID string) []conversationTurn {
	var turns []conversationTurn
	for _, msg := range thread {
		if msg.Text == "" {
			continue
		}
		role := roleUser
		if msg.FromBot() || (botUserID != "" && msg.UserID == botUserID) {
			role = roleAssistant
		}
		turns = append(turns, conversationTurn{Role: role, Text: msg.Text})
	}

	for len(turns) > 0 && turns[0].Role != roleUser {
		turns = turns[1:]
	}
	return turns
}

// splitLatestUserTurn returns the turns before the last user turn and that
// turn's text. Assistant turns after it are dropped.
func splitLatestUserTurn(turns []conversationTurn) ([]conversationTurn, string) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == roleUser {
			return turns[:i], turns[i].Text
		}
	}
	return nil, ""
}

func renderAssistantSystemPrompt(data assistantPromptData) (string, error) {
	var buf bytes.Buffer
	if err := assistantSystemPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render assistant system prompt")
	}
	return buf.String(), nil
}
