package models

import "encoding/json"

// Message is a single chat entry. The chat view keeps messages as an append-only list per session,
// optionally seeded from a persisted conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the citizen.
	RoleUser Role = "user"
	// RoleAssistant represents a message streamed by the backend assistant, or the local greeting.
	RoleAssistant Role = "assistant"
)

// Conversation is a persisted conversation as returned by the backend, with the request that was
// drafted while chatting.
type Conversation struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	CreatedAt string    `json:"created_at"`
	Messages  []Message `json:"messages"`
	Request   Request   `json:"woo_request"`
}

// Request is a formal information request letter, composed of one or more questions.
type Request struct {
	ID        int        `json:"id"`
	Questions []Question `json:"questions"`
}

// UnmarshalJSON accepts both the nested shape ({"woo_request": {"questions": [...]}}) and older
// responses that carry the questions at the top level.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	var raw struct {
		plain
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Conversation(raw.plain)
	if len(c.Request.Questions) == 0 && len(raw.Questions) > 0 {
		c.Request.Questions = raw.Questions
	}
	return nil
}

// FunctionCall is a named structured event pushed over the live connection. Arguments is kept raw so
// that each event kind can decode its own payload.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Names of the structured events pushed by the backend.
const (
	EventQuestionAnswered = "woo_question_answered"
	EventQuestionsAdded   = "questions_added"
)

// SendResult is the backend's reply to a one-shot message. Answer holds an immediate answer payload
// when the backend produced one synchronously.
type SendResult struct {
	ConversationID int             `json:"conversation_id"`
	RequestID      int             `json:"woo_request_id"`
	Answer         json.RawMessage `json:"answer,omitempty"`
}
