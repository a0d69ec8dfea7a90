package handlers

import (
	"html/template"
	"net/url"
	"strconv"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

type message struct {
	Role    string
	Content template.HTML
}

type typewriterData struct {
	Content template.HTML
	Cursor  bool
	Active  bool
}

type citation struct {
	Quote       string
	URL         string
	Page        int
	DocumentURL string
}

type question struct {
	ID       int
	Text     string
	Saved    bool
	Loading  bool
	Answered string
	Label    string
	Answer   template.HTML

	Citations []citation
}

type questionsData struct {
	ViewID    string
	ChatID    int
	RequestID int
	Questions []question
}

type statusData struct {
	Loaded bool
	Steps  []models.Step
}

type errorData struct {
	Message string
}

// markdown renders text, falling back to escaped text when rendering fails.
func markdown(text string) template.HTML {
	html, err := models.RenderMarkdown(text)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return html
}

func messageViews(messages []models.Message) []message {
	res := make([]message, len(messages))
	for i, msg := range messages {
		content := template.HTML(template.HTMLEscapeString(msg.Content))
		if msg.Role == models.RoleAssistant {
			content = markdown(msg.Content)
		}
		res[i] = message{Role: string(msg.Role), Content: content}
	}
	return res
}

func typewriterView(displayed string, cursor bool) typewriterData {
	if displayed == "" {
		return typewriterData{Cursor: cursor, Active: cursor}
	}
	return typewriterData{Content: markdown(displayed), Cursor: cursor, Active: true}
}

func questionViews(questions []models.Question) []question {
	res := make([]question, len(questions))
	for i, q := range questions {
		res[i] = question{
			ID:      q.ID,
			Text:    q.Text,
			Saved:   q.Saved,
			Loading: q.AnswerLoading,
		}
		if !q.HasAnswer() {
			continue
		}
		res[i].Answer = markdown(q.Answer.Text)
		if q.Answer.Answered.Known() {
			res[i].Answered = string(q.Answer.Answered)
			res[i].Label = q.Answer.Answered.Label()
		}
		for _, c := range q.Answer.Citations() {
			res[i].Citations = append(res[i].Citations, citation{
				Quote:       c.Quote,
				URL:         c.URL,
				Page:        c.Page,
				DocumentURL: documentURL(c.URL, c.Page),
			})
		}
	}
	return res
}

// documentURL links to the in-app page viewer of a cited source.
func documentURL(source string, page int) string {
	if source == "" {
		return ""
	}
	q := url.Values{}
	q.Set("url", source)
	q.Set("page", strconv.Itoa(max(page, 1)))
	return "/document?" + q.Encode()
}

// parseID reads a positive integer identifier. Missing or malformed values give 0.
func parseID(s string) int {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
