package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Question is one discrete sub-question of a request. ID 0 marks a question that only exists locally
// and has not been assigned an identifier by the backend yet.
type Question struct {
	ID            int     `json:"id"`
	Text          string  `json:"question"`
	Answer        *Answer `json:"answer,omitempty"`
	AnswerLoading bool    `json:"answer_loading"`
	Saved         bool    `json:"saved"`
}

// Answer is the backend's response to a question, with the source chunks it cites.
type Answer struct {
	ID       int      `json:"id"`
	Question int      `json:"woo_question"`
	Text     string   `json:"answer"`
	Chunks   []Chunk  `json:"chunks"`
	Details  Details  `json:"details"`
	Answered Answered `json:"answered,omitempty"`
}

// Details holds the structured part of an answer. Blocks reference chunks of the same answer.
type Details struct {
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is a quotation taken from one chunk.
type Block struct {
	ChunkID string `json:"chunk_id"`
	Quote   string `json:"quote"`
}

// Chunk is a citable fragment of a source document.
type Chunk struct {
	ID      string       `json:"id"`
	Content ChunkContent `json:"content"`
}

// ChunkContent is the fragment text together with the document it was taken from.
type ChunkContent struct {
	Text    string      `json:"text,omitempty"`
	Content ChunkSource `json:"content"`
}

// ChunkSource identifies the source document of a chunk.
type ChunkSource struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	Page  int    `json:"page,omitempty"`
}

// Citation is a block resolved against its answer. URL is empty when the referenced chunk is not part
// of the answer, in which case only the quote is shown.
type Citation struct {
	Quote string
	URL   string
	Page  int
}

// Answered classifies how completely a question was answered.
type Answered string

const (
	AnsweredFully     Answered = "answered"
	AnsweredPartially Answered = "partially_answered"
	AnsweredNot       Answered = "not_answered"
)

// Receipt is the local record of a finalized request, used by the completed and status pages.
type Receipt struct {
	RequestID      int       `json:"request_id"`
	ConversationID int       `json:"conversation_id"`
	Email          string    `json:"email,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
	Step           int       `json:"step"`
}

// UnmarshalJSON accepts a bare chunk identifier (string or number) as well as a full chunk object.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		id, err := looseString(data)
		if err != nil {
			return err
		}
		*c = Chunk{ID: id}
		return nil
	}

	var raw struct {
		ID      json.RawMessage `json:"id"`
		Content ChunkContent    `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := looseString(raw.ID)
	if err != nil {
		return err
	}
	*c = Chunk{ID: id, Content: raw.Content}
	return nil
}

// looseString decodes a JSON string or number into its string form. Null or absent values give "".
func looseString(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// URL returns the display URL of the chunk's source document.
func (c Chunk) URL() string {
	return c.Content.Content.URL
}

// Chunk looks up one of the answer's own chunks by identifier.
func (a Answer) Chunk(id string) (Chunk, bool) {
	for _, c := range a.Chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Chunk{}, false
}

// Citations resolves the answer's quote blocks against its chunk list.
func (a Answer) Citations() []Citation {
	citations := make([]Citation, 0, len(a.Details.Blocks))
	for _, b := range a.Details.Blocks {
		ct := Citation{Quote: b.Quote}
		if c, ok := a.Chunk(b.ChunkID); ok {
			ct.URL = c.URL()
			ct.Page = c.Content.Content.Page
		}
		citations = append(citations, ct)
	}
	return citations
}

// Known reports whether a is one of the defined classifications.
func (a Answered) Known() bool {
	switch a {
	case AnsweredFully, AnsweredPartially, AnsweredNot:
		return true
	}
	return false
}

// Label returns the Dutch label shown next to an answer.
func (a Answered) Label() string {
	switch a {
	case AnsweredFully:
		return "Beantwoord"
	case AnsweredPartially:
		return "Gedeeltelijk beantwoord"
	case AnsweredNot:
		return "Niet beantwoord"
	}
	return ""
}

// ParseAnswered normalizes a classification received from the backend. Unknown values give "".
func ParseAnswered(s string) Answered {
	a := Answered(strings.ToLower(strings.TrimSpace(s)))
	if !a.Known() {
		return ""
	}
	return a
}

// HasAnswer reports whether the question carries a non-empty answer.
func (q Question) HasAnswer() bool {
	return q.Answer != nil && (q.Answer.ID != 0 || q.Answer.Text != "")
}
