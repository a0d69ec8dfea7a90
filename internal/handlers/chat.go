package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vraagmijnoverheid/woo-web/internal/models"
	"github.com/vraagmijnoverheid/woo-web/internal/realtime"
)

type requestPageData struct {
	SEO       models.SEO
	ViewID    string
	ChatID    int
	RequestID int

	Messages   []message
	Typewriter typewriterData
	Questions  questionsData
	Status     statusData
}

// HandleRequest renders the chat and request form. With a numeric chatId the persisted conversation is
// loaded; anything else starts fresh. A failed fetch is logged and also starts fresh. Every render
// registers a new view that the page's event stream mounts.
func (m Main) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := viewParams{requestID: parseID(r.URL.Query().Get("wooRequestId"))}
	if chatID := parseID(r.URL.Query().Get("chatId")); chatID != 0 {
		conv, err := m.backend.Conversation(r.Context(), chatID)
		if err != nil {
			m.logger.Error("Failed to load conversation",
				slog.Int("chatID", chatID),
				slog.String(errLoggerKey, err.Error()))
		} else {
			params.conversationID = conv.ID
			if params.conversationID == 0 {
				params.conversationID = chatID
			}
			params.messages = conv.Messages
			params.questions = conv.Request.Questions
			if conv.Request.ID != 0 {
				params.requestID = conv.Request.ID
			}
		}
	}

	v := m.newView(uuid.New().String(), params)
	m.views.add(v)

	data := requestPageData{
		SEO:        m.seo(r, "Uw verzoek", "/request"),
		ViewID:     v.id,
		ChatID:     params.conversationID,
		RequestID:  params.requestID,
		Messages:   messageViews(v.session.Messages()),
		Typewriter: v.typewriterData(),
		Questions:  v.questionsData(),
		Status:     v.statusData(),
	}
	m.renderPage(w, http.StatusOK, "request.html", data)
}

// HandleSSE streams the updates of one view. The view is mounted for the lifetime of the request and
// torn down when the client disconnects.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	viewID := r.URL.Query().Get("view_id")
	v, ok := m.views.get(viewID)
	if !ok {
		http.Error(w, "View not found", http.StatusNotFound)
		return
	}
	if err := v.mount(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer m.views.remove(viewID)

	m.sseSrv.ServeHTTP(w, r)
}

// HandleChats sends a chat message of a view. The user message is shown right away; when sending fails
// it stays and an inline error is rendered after it.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.FormValue("message"))
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	v, ok := m.views.get(r.FormValue("view_id"))
	if !ok {
		http.Error(w, "View not found", http.StatusNotFound)
		return
	}

	v.startThinking()
	sendErr := v.session.Send(r.Context(), msg)
	if sendErr != nil {
		v.stopThinking()
		m.logger.Error("Failed to send message",
			slog.String("viewID", v.id),
			slog.String(errLoggerKey, sendErr.Error()))
	}

	var sb strings.Builder
	err := m.templates.ExecuteTemplate(&sb, "user_message", message{
		Role:    string(models.RoleUser),
		Content: template.HTML(template.HTMLEscapeString(msg)),
	})
	if err == nil && sendErr != nil {
		err = m.templates.ExecuteTemplate(&sb, "error", errorData{Message: sendErrorMessage(sendErr)})
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if sendErr != nil {
		w.WriteHeader(http.StatusBadGateway)
	}
	_, _ = w.Write([]byte(sb.String()))
}

func sendErrorMessage(err error) string {
	if errors.Is(err, realtime.ErrNotConnected) {
		return "Er is nog geen verbinding met de assistent. Probeer het zo opnieuw."
	}
	return "Uw bericht kon niet worden verstuurd. Probeer het opnieuw."
}

// HandleQuestions adds a question to the request of a view. The question is shown as unsaved right
// away and marked saved once the backend has assigned it an id.
func (m Main) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text := strings.TrimSpace(r.FormValue("question"))
	if text == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	v, ok := m.views.get(r.FormValue("view_id"))
	if !ok {
		http.Error(w, "View not found", http.StatusNotFound)
		return
	}

	requestID := parseID(r.FormValue("request_id"))
	if requestID == 0 {
		requestID = v.session.RequestID()
	}
	if requestID == 0 {
		m.renderError(w, http.StatusConflict, "Er is nog geen verzoek om deze vraag aan toe te voegen.")
		return
	}

	if v.form.AppendNew([]models.Question{{Text: text, AnswerLoading: true}}) == 0 {
		m.renderError(w, http.StatusConflict, "Deze vraag staat al in uw verzoek.")
		return
	}

	id, err := m.backend.CreateQuestion(r.Context(), requestID, text)
	if err != nil {
		m.logger.Error("Failed to create question",
			slog.Int("requestID", requestID),
			slog.String(errLoggerKey, err.Error()))
		m.renderError(w, http.StatusBadGateway, "De vraag kon niet worden opgeslagen. Probeer het opnieuw.")
		return
	}
	v.form.MarkSaved(text, id)

	body, err := m.render("questions", v.questionsData())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (m Main) renderError(w http.ResponseWriter, status int, msg string) {
	body, err := m.render("error", errorData{Message: msg})
	if err != nil {
		http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
