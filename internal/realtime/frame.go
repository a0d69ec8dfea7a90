package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

// Frame is one decoded inbound message of the live connection. It is one of TextFrame, EventFrame or
// CompleteFrame.
type Frame interface {
	frame()
}

// TextFrame is a fragment of the assistant message currently being streamed.
type TextFrame struct {
	Text string
}

// EventFrame carries a structured event for the dispatcher.
type EventFrame struct {
	Call models.FunctionCall
}

// CompleteFrame marks the end of the streamed assistant message. The identifiers are zero when the
// backend did not send them.
type CompleteFrame struct {
	ConversationID int
	RequestID      int
}

func (TextFrame) frame()     {}
func (EventFrame) frame()    {}
func (CompleteFrame) frame() {}

var (
	// ErrMalformedFrame is returned for payloads that are not a JSON object.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownFrame is returned for objects that match none of the known frame shapes.
	ErrUnknownFrame = errors.New("unknown frame")
	// ErrAmbiguousFrame is returned for objects that match more than one frame shape.
	ErrAmbiguousFrame = errors.New("ambiguous frame")
)

type wireFrame struct {
	Message        *string              `json:"message"`
	FunctionCall   *models.FunctionCall `json:"function_call"`
	Completed      bool                 `json:"completed"`
	Type           string               `json:"type"`
	ConversationID looseID              `json:"conversation_id"`
	RequestID      looseID              `json:"woo_request_id"`
}

// looseID accepts identifiers sent as JSON numbers or as strings. Anything non numeric decodes to 0.
type looseID int

// DecodeFrame decodes data into exactly one frame shape. Non-empty text, event and completion fields are
// mutually exclusive; a frame carrying more than one of them is rejected instead of picking one.
func DecodeFrame(data []byte) (Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrMalformedFrame
	}

	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	complete := w.Completed || w.Type == "complete"
	// An empty message field carries no text and does not compete with the other shapes.
	text := w.Message != nil && *w.Message != ""

	matches := 0
	for _, ok := range []bool{text, w.FunctionCall != nil, complete} {
		if ok {
			matches++
		}
	}
	switch matches {
	case 0:
		if w.Message != nil {
			return TextFrame{}, nil
		}
		return nil, ErrUnknownFrame
	case 1:
	default:
		return nil, ErrAmbiguousFrame
	}

	switch {
	case text:
		return TextFrame{Text: *w.Message}, nil
	case w.FunctionCall != nil:
		if w.FunctionCall.Name == "" {
			return nil, fmt.Errorf("%w: function call without name", ErrMalformedFrame)
		}
		return EventFrame{Call: *w.FunctionCall}, nil
	default:
		return CompleteFrame{
			ConversationID: int(w.ConversationID),
			RequestID:      int(w.RequestID),
		}, nil
	}
}

func (id *looseID) UnmarshalJSON(data []byte) error {
	*id = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	*id = looseID(n)
	return nil
}
