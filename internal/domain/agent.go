package domain

import "context"

// AgentExchange is one call to the remote conversational agent.
type AgentExchange struct {
	Text      string
	SessionID string
	ThreadID  string // correlation only
}

// AgentClient always returns non-empty reply text. Failures are turned
// into a user-presentable fallback message inside the client.
type AgentClient interface {
	Invoke(ctx context.Context, ex AgentExchange) string
}

// ReplyPublisher posts text into a channel thread. It is called at most
// once per qualifying event and must not retry on its own.
type ReplyPublisher interface {
	Publish(ctx context.Context, token, channelID, threadID, text string) error
}
