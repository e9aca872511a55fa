package models

import (
	"fmt"
	"strings"
)

// Role identifies the speaker of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single turn in a call transcript
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// Conversation accumulates the transcript of one call in chronological order.
// Streamed deltas extend the open message for their role until it is completed.
// Conversation is not safe for concurrent use.
type Conversation struct {
	messages []Message
	open     map[Role]int
}

func NewConversation(history ...Message) *Conversation {
	c := &Conversation{open: make(map[Role]int)}
	c.messages = append(c.messages, history...)
	return c
}

// Append adds a complete turn
func (c *Conversation) Append(role Role, content string) {
	c.closeOpen(role)
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

// AppendDelta extends the in-progress message for role, opening one if needed
func (c *Conversation) AppendDelta(role Role, delta string) {
	if c.open == nil {
		c.open = make(map[Role]int)
	}
	if idx, ok := c.open[role]; ok {
		c.messages[idx].Content += delta
		return
	}
	c.messages = append(c.messages, Message{Role: role, Content: delta})
	c.open[role] = len(c.messages) - 1
}

// Complete finalizes the in-progress message for role with its full text.
// If nothing was streamed for role the text is appended as a new turn.
func (c *Conversation) Complete(role Role, text string) {
	if idx, ok := c.open[role]; ok {
		if text != "" {
			c.messages[idx].Content = text
		}
		delete(c.open, role)
		return
	}
	if strings.TrimSpace(text) != "" {
		c.messages = append(c.messages, Message{Role: role, Content: text})
	}
}

func (c *Conversation) closeOpen(role Role) {
	if c.open != nil {
		delete(c.open, role)
	}
}

// Len returns the number of turns
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the transcript
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// RenderTranscript formats messages as "role: content" lines
func RenderTranscript(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return b.String()
}
