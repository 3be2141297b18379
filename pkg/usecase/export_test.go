package usecase

import "github.com/secmon-lab/gyges/pkg/service/slack"

// ConversationTurn is exported for testing
type ConversationTurn = conversationTurn

// BuildConversation is exported for testing
func BuildConversation(thread []slack.Message, botUserID string) []ConversationTurn {
	return buildConversation(thread, botUserID)
}

// SplitLatestUserTurn is exported for testing
var SplitLatestUserTurn = splitLatestUserTurn

// RenderAssistantSystemPrompt is exported for testing
func RenderAssistantSystemPrompt(workspaceName string, conversation []ConversationTurn) (string, error) {
	return renderAssistantSystemPrompt(assistantPromptData{
		WorkspaceName: workspaceName,
		Conversation:  conversation,
	})
}
