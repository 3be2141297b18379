package usecase

import (
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/service/audit"
	"github.com/secmon-lab/gyges/pkg/service/confirmation"
	"github.com/secmon-lab/gyges/pkg/service/dedup"
	"github.com/secmon-lab/gyges/pkg/service/notify"
	"github.com/secmon-lab/gyges/pkg/service/slack"
)

type UseCases struct {
	repo         interfaces.Repository
	llmClient    gollem.LLMClient
	slackFactory slack.Factory
	dedup        dedup.Deduplicator
	notifier     notify.Notifier
	recorder     audit.Recorder
	statusDomain string
	maxSteps     int

	Store       *confirmation.Store
	Assistant   *AssistantUseCase
	Executor    *ExecutorUseCase
	Slack       *SlackUseCase
	Interaction *InteractionUseCase
}

type Option func(*UseCases)

// WithDeduplicator replaces the process-local event id cache
func WithDeduplicator(d dedup.Deduplicator) Option {
	return func(uc *UseCases) {
		uc.dedup = d
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

func WithAudit(r audit.Recorder) Option {
	return func(uc *UseCases) {
		uc.recorder = r
	}
}

// WithPublicStatusDomain sets the domain used to build report links
func WithPublicStatusDomain(domain string) Option {
	return func(uc *UseCases) {
		uc.statusDomain = domain
	}
}

func WithAssistantMaxSteps(n int) Option {
	return func(uc *UseCases) {
		uc.maxSteps = n
	}
}

func New(repo interfaces.Repository, llmClient gollem.LLMClient, slackFactory slack.Factory, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:         repo,
		llmClient:    llmClient,
		slackFactory: slackFactory,
		maxSteps:     DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.dedup == nil {
		uc.dedup = dedup.NewCache()
	}
	if uc.notifier == nil {
		uc.notifier = notify.New(repo.Notification())
	}
	if uc.recorder == nil {
		uc.recorder = audit.Logger{}
	}

	resolver := NewWorkspaceResolver(repo)
	uc.Store = confirmation.New(repo.KV())
	uc.Assistant = NewAssistantUseCase(repo, llmClient, WithMaxSteps(uc.maxSteps))
	uc.Executor = NewExecutorUseCase(repo, uc.notifier, WithStatusDomain(uc.statusDomain))
	uc.Slack = NewSlackUseCase(repo, uc.dedup, resolver, slackFactory, uc.Assistant, uc.Store)
	uc.Interaction = NewInteractionUseCase(uc.Store, resolver, slackFactory, uc.Executor, WithAuditRecorder(uc.recorder))

	return uc
}
