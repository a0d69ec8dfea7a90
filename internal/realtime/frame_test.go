package realtime_test

import (
	"errors"
	"testing"

	"github.com/vraagmijnoverheid/woo-web/internal/realtime"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    realtime.Frame
		wantErr error
	}{
		{
			name:  "Text fragment",
			input: `{"message":"Het budget "}`,
			want:  realtime.TextFrame{Text: "Het budget "},
		},
		{
			name:  "Empty text fragment",
			input: `{"message":""}`,
			want:  realtime.TextFrame{},
		},
		{
			name:  "Completed flag",
			input: `{"completed":true,"conversation_id":42,"woo_request_id":"7"}`,
			want:  realtime.CompleteFrame{ConversationID: 42, RequestID: 7},
		},
		{
			name:  "Complete type",
			input: `{"type":"complete","conversation_id":"42"}`,
			want:  realtime.CompleteFrame{ConversationID: 42},
		},
		{
			name:  "Complete with non numeric id",
			input: `{"type":"complete","conversation_id":"abc"}`,
			want:  realtime.CompleteFrame{},
		},
		{
			name:  "Completion with empty message",
			input: `{"message":"","type":"complete","conversation_id":42}`,
			want:  realtime.CompleteFrame{ConversationID: 42},
		},
		{
			name:  "Completed flag with empty message",
			input: `{"message":"","completed":true,"conversation_id":"42"}`,
			want:  realtime.CompleteFrame{ConversationID: 42},
		},
		{
			name:    "Event and text",
			input:   `{"message":"x","function_call":{"name":"questions_added","arguments":{}}}`,
			wantErr: realtime.ErrAmbiguousFrame,
		},
		{
			name:    "Text and completion",
			input:   `{"message":"x","completed":true}`,
			wantErr: realtime.ErrAmbiguousFrame,
		},
		{
			name:    "Unknown shape",
			input:   `{"type":"ping"}`,
			wantErr: realtime.ErrUnknownFrame,
		},
		{
			name:    "Not completed",
			input:   `{"completed":false}`,
			wantErr: realtime.ErrUnknownFrame,
		},
		{
			name:    "Not an object",
			input:   `"hello"`,
			wantErr: realtime.ErrMalformedFrame,
		},
		{
			name:    "Broken json",
			input:   `{"message":`,
			wantErr: realtime.ErrMalformedFrame,
		},
		{
			name:    "Event without name",
			input:   `{"function_call":{"arguments":{}}}`,
			wantErr: realtime.ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := realtime.DecodeFrame([]byte(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeFrame() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeEventFrame(t *testing.T) {
	got, err := realtime.DecodeFrame([]byte(`{"function_call":{"name":"woo_question_answered","arguments":{"id":1}}}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	ev, ok := got.(realtime.EventFrame)
	if !ok {
		t.Fatalf("DecodeFrame() = %T, want EventFrame", got)
	}
	if ev.Call.Name != "woo_question_answered" || string(ev.Call.Arguments) != `{"id":1}` {
		t.Errorf("Call = %+v", ev.Call)
	}
}

func TestDecodeEventFrameWithEmptyMessage(t *testing.T) {
	got, err := realtime.DecodeFrame([]byte(`{"message":"","function_call":{"name":"questions_added","arguments":{}}}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	ev, ok := got.(realtime.EventFrame)
	if !ok {
		t.Fatalf("DecodeFrame() = %T, want EventFrame", got)
	}
	if ev.Call.Name != "questions_added" {
		t.Errorf("Call.Name = %q, want questions_added", ev.Call.Name)
	}
}
