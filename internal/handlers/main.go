package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmaxmax/go-sse"
	wooweb "github.com/vraagmijnoverheid/woo-web"
	"github.com/vraagmijnoverheid/woo-web/internal/models"
	"github.com/vraagmijnoverheid/woo-web/internal/realtime"
	"github.com/vraagmijnoverheid/woo-web/internal/typewriter"
)

// Backend is the Woo backend API. It owns conversations, the assistant and the request lifecycle.
type Backend interface {
	Conversation(ctx context.Context, id int) (models.Conversation, error)
	SendMessage(ctx context.Context, conversationID int, message string) (models.SendResult, error)
	FinalizeRequest(ctx context.Context, requestID int, email string) error
	CreateQuestion(ctx context.Context, requestID int, question string) (int, error)
	SearchDocuments(ctx context.Context, query string, includeNonPublic bool) ([]models.SearchResult, error)
}

// Store persists receipts of requests finalized through this server.
type Store interface {
	AddReceipt(ctx context.Context, receipt models.Receipt) error
	Receipt(ctx context.Context, requestID int) (models.Receipt, error)
	Receipts(ctx context.Context) ([]models.Receipt, error)
	UpdateReceiptStep(ctx context.Context, requestID, step int) error
}

// DocumentReader extracts the text of a page of a source document.
type DocumentReader interface {
	Page(ctx context.Context, url string, page int) (models.DocumentPage, error)
}

// Config tunes the chat views.
type Config struct {
	// SiteURL is the public origin used for absolute SEO links. Empty uses the request host.
	SiteURL string
	// Greeting opens every new conversation. Empty disables it.
	Greeting string
	// TypingSpeed is the delay between two revealed characters of a streamed answer.
	TypingSpeed time.Duration
	// ViewTTL is how long a rendered chat view waits for its event stream before it is dropped.
	ViewTTL time.Duration

	Scheduler typewriter.Scheduler
	Now       func() time.Time
}

// Main serves the pages of the request flow and streams chat view updates over server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	backend   Backend
	store     Store
	documents DocumentReader
	dialer    realtime.Dialer

	views *viewRegistry
	cfg   Config

	logger *slog.Logger
}

// SSE event types for chat view updates.
var (
	messagesSSEType     = sse.Type("messages")
	typewriterSSEType   = sse.Type("typewriter")
	questionsSSEType    = sse.Type("questions")
	statusSSEType       = sse.Type("status")
	conversationSSEType = sse.Type("conversation")
)

const (
	errLoggerKey = "err"

	defaultViewTTL = 2 * time.Minute
)

// NewMain creates the handlers. Templates are parsed from the embedded filesystem, and every event
// stream subscribes to the topic of the view named by its view_id query parameter.
func NewMain(
	backend Backend,
	store Store,
	documents DocumentReader,
	dialer realtime.Dialer,
	cfg Config,
	logger *slog.Logger,
) (Main, error) {
	tmpl, err := template.ParseFS(
		wooweb.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	if cfg.TypingSpeed <= 0 {
		cfg.TypingSpeed = typewriter.DefaultInterval
	}
	if cfg.ViewTTL <= 0 {
		cfg.ViewTTL = defaultViewTTL
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = typewriter.SystemScheduler{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := Main{
		templates: tmpl,
		backend:   backend,
		store:     store,
		documents: documents,
		dialer:    dialer,
		views:     newViewRegistry(cfg.ViewTTL, cfg.Now),
		cfg:       cfg,
		logger:    logger.With(slog.String("module", "main")),
	}
	m.sseSrv = &sse.Server{
		OnSession: m.onSSESession,
	}
	return m, nil
}

func (m Main) onSSESession(s *sse.Session) (sse.Subscription, bool) {
	viewID := s.Req.URL.Query().Get("view_id")
	v, ok := m.views.get(viewID)
	if !ok {
		return sse.Subscription{}, false
	}

	// The page was rendered before the session connected, so the stream starts with the current state.
	for _, msg := range v.snapshot() {
		if err := s.Send(msg); err != nil {
			m.logger.Warn("Failed to send view snapshot",
				slog.String("viewID", viewID),
				slog.String(errLoggerKey, err.Error()))
			return sse.Subscription{}, false
		}
	}
	if err := s.Flush(); err != nil {
		return sse.Subscription{}, false
	}

	return sse.Subscription{
		Client:      s,
		LastEventID: s.LastEventID,
		Topics:      []string{sse.DefaultTopic, viewTopic(viewID)},
	}, true
}

func viewTopic(viewID string) string {
	return fmt.Sprintf("view-%s", viewID)
}

// Shutdown tears down every chat view and the SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.views.closeAll()

	e := &sse.Message{Type: sse.Type("closeView")}
	// SSE events need a data field
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// render executes a named template into a string.
func (m Main) render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return sb.String(), nil
}

// renderPage writes a full page with the given status code.
func (m Main) renderPage(w http.ResponseWriter, status int, name string, data any) {
	body, err := m.render(name, data)
	if err != nil {
		m.logger.Error("Failed to render page",
			slog.String("page", name),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Er ging iets mis bij het tonen van de pagina", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// seo returns the metadata of a page at path.
func (m Main) seo(r *http.Request, title, path string) models.SEO {
	s := models.DefaultSEO()
	if title != "" {
		s = s.WithTitle(title + " | VraagMijnOverheid")
	}
	s.OGURL = path
	s.CanonicalURL = path
	return s.Resolve(m.origin(r))
}

func (m Main) origin(r *http.Request) string {
	if m.cfg.SiteURL != "" {
		return m.cfg.SiteURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
