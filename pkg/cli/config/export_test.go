package config

func NewSlackForTest(signingSecret, apiURL, statusDomain string) *Slack {
	return &Slack{
		signingSecret: signingSecret,
		apiURL:        apiURL,
		statusDomain:  statusDomain,
	}
}

func NewLLMForTest(provider, geminiProject, claudeAPIKey string) *LLM {
	return &LLM{
		provider:       provider,
		geminiProject:  geminiProject,
		geminiLocation: "us-central1",
		claudeAPIKey:   claudeAPIKey,
	}
}

func NewRepositoryForTest(backend, kvBackend, dedupBackend string) *Repository {
	return &Repository{
		backend:      backend,
		kvBackend:    kvBackend,
		dedupBackend: dedupBackend,
	}
}

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

var (
	ParseLogLevel  = parseLogLevel
	ParseLogFormat = parseLogFormat
)
