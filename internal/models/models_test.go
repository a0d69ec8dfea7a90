package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

func TestChunkUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantURL string
	}{
		{
			name:   "Bare string id",
			input:  `"c-1"`,
			wantID: "c-1",
		},
		{
			name:   "Bare numeric id",
			input:  `17`,
			wantID: "17",
		},
		{
			name:    "Full object",
			input:   `{"id":"c-2","content":{"text":"fragment","content":{"url":"https://example.org/doc.pdf","page":3}}}`,
			wantID:  "c-2",
			wantURL: "https://example.org/doc.pdf",
		},
		{
			name:    "Object with numeric id",
			input:   `{"id":9,"content":{"content":{"url":"https://example.org/a"}}}`,
			wantID:  "9",
			wantURL: "https://example.org/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c models.Chunk
			if err := json.Unmarshal([]byte(tt.input), &c); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if c.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", c.ID, tt.wantID)
			}
			if c.URL() != tt.wantURL {
				t.Errorf("URL() = %q, want %q", c.URL(), tt.wantURL)
			}
		})
	}
}

func TestAnswerCitations(t *testing.T) {
	a := models.Answer{
		Chunks: []models.Chunk{
			{ID: "a", Content: models.ChunkContent{Content: models.ChunkSource{URL: "https://example.org/a.pdf", Page: 2}}},
		},
		Details: models.Details{
			Blocks: []models.Block{
				{ChunkID: "a", Quote: "found"},
				{ChunkID: "missing", Quote: "orphan"},
			},
		},
	}

	got := a.Citations()
	if len(got) != 2 {
		t.Fatalf("Citations() len = %d, want 2", len(got))
	}
	if got[0].URL != "https://example.org/a.pdf" || got[0].Page != 2 {
		t.Errorf("Citations()[0] = %+v, want resolved url and page", got[0])
	}
	if got[1].URL != "" || got[1].Quote != "orphan" {
		t.Errorf("Citations()[1] = %+v, want quote without url", got[1])
	}
}

func TestConversationQuestionsFallback(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{
			name:  "Nested request",
			input: `{"id":1,"messages":[{"role":"user","content":"hi"}],"woo_request":{"id":5,"questions":[{"id":1,"question":"a"}]}}`,
			want:  1,
		},
		{
			name:  "Top level questions",
			input: `{"id":1,"questions":[{"id":1,"question":"a"},{"id":2,"question":"b"}]}`,
			want:  2,
		},
		{
			name:  "No questions",
			input: `{"id":1}`,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c models.Conversation
			if err := json.Unmarshal([]byte(tt.input), &c); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if c.ID != 1 {
				t.Errorf("ID = %d, want 1", c.ID)
			}
			if len(c.Request.Questions) != tt.want {
				t.Errorf("questions = %d, want %d", len(c.Request.Questions), tt.want)
			}
		})
	}
}

func TestParseAnswered(t *testing.T) {
	if got := models.ParseAnswered(" Partially_Answered "); got != models.AnsweredPartially {
		t.Errorf("ParseAnswered() = %q, want %q", got, models.AnsweredPartially)
	}
	if got := models.ParseAnswered("maybe"); got != "" {
		t.Errorf("ParseAnswered(maybe) = %q, want empty", got)
	}
	if models.AnsweredNot.Label() != "Niet beantwoord" {
		t.Errorf("Label() = %q", models.AnsweredNot.Label())
	}
}

func TestStatusProgress(t *testing.T) {
	steps := models.StatusProgress(models.StatusPageSteps, 2)
	want := []models.StepState{
		models.StepCompleted, models.StepCompleted, models.StepCurrent,
		models.StepPending, models.StepPending, models.StepPending,
	}
	for i, s := range steps {
		if s.State != want[i] {
			t.Errorf("step %d state = %s, want %s", i, s.State, want[i])
		}
	}

	clamped := models.StatusProgress(models.StatusSteps, 10)
	if clamped[len(clamped)-1].State != models.StepCurrent {
		t.Errorf("last step state = %s, want current", clamped[len(clamped)-1].State)
	}
}

func TestSEOResolve(t *testing.T) {
	s := models.DefaultSEO().WithTitle("Status").Resolve("https://vraagmijnoverheid.nl/")

	if s.OGTitle != "Status" {
		t.Errorf("OGTitle = %q, want Status", s.OGTitle)
	}
	if s.OGImage != "https://vraagmijnoverheid.nl/static/government-logo.png" {
		t.Errorf("OGImage = %q", s.OGImage)
	}
	if s.OGURL != "" {
		t.Errorf("OGURL = %q, want empty", s.OGURL)
	}

	abs := models.SEO{OGImage: "https://cdn.example.org/logo.png"}.Resolve("https://vraagmijnoverheid.nl")
	if abs.OGImage != "https://cdn.example.org/logo.png" {
		t.Errorf("OGImage = %q, want untouched", abs.OGImage)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out, err := models.RenderMarkdown("**budget** <script>x</script>")
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.Contains(string(out), "<strong>budget</strong>") {
		t.Errorf("RenderMarkdown() = %q, want strong tag", out)
	}
	if strings.Contains(string(out), "<script>") {
		t.Errorf("RenderMarkdown() = %q, raw html must not pass through", out)
	}
}
