// internal/models/context.go
package models

// MessagePair is one user-question/system-answer exchange.
type MessagePair struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// ConversationContext is the ordered turn history of one session.
// It is loaded at turn start and overwritten at turn end; the store
// is last-writer-wins, with no merge across concurrent turns.
type ConversationContext struct {
	History []MessagePair `json:"history"`
}

// Append records a completed exchange.
func (c *ConversationContext) Append(userInput, systemReply string) {
	c.History = append(c.History, MessagePair{User: userInput, Bot: systemReply})
}

// Recent returns the newest n exchanges, oldest first.
func (c *ConversationContext) Recent(n int) []MessagePair {
	if n <= 0 || len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}
