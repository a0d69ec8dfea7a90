// Package realtime keeps a chat view in sync with the backend over one live connection. It assembles
// streamed assistant text, forwards structured events to a dispatcher, and sends user input.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

// Conn is an open live connection. *websocket.Conn from gorilla/websocket satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens live connections to the backend.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Dispatcher receives the structured events found in the stream.
type Dispatcher interface {
	Dispatch(call models.FunctionCall)
}

// Sender sends a user message as a one-shot request instead of over the live connection.
type Sender interface {
	SendMessage(ctx context.Context, conversationID int, message string) (models.SendResult, error)
}

// Observer is notified about every state change of a Session. Callbacks get snapshots and may be invoked
// from the reader goroutine as well as from the goroutine calling Send.
type Observer interface {
	// Ready is called each time a live connection has been opened.
	Ready()
	MessagesChanged(messages []models.Message)
	// TextChanged reports the text of the message being streamed together with its message key. A new
	// key means a new logical message.
	TextChanged(key, text string)
	// ConversationChanged reports identifiers assigned by the backend that the view has not seen yet.
	ConversationChanged(conversationID, requestID int)
}

// Config configures a Session.
type Config struct {
	// ConversationID is the conversation the view was opened for, 0 for a new one.
	ConversationID int
	RequestID      int
	// InitialMessages seeds the message list from a persisted conversation.
	InitialMessages []models.Message
	// Greeting is injected as the first assistant message of a new conversation. Empty disables it.
	Greeting string

	Dispatcher Dispatcher
	Observer   Observer
	// Sender, when set, is used for outbound messages instead of the live connection.
	Sender Sender

	Backoff func(attempt int) time.Duration
	NewKey  func() string
	Logger  *slog.Logger
}

// Session is the realtime state of one chat view.
type Session struct {
	dialer     Dialer
	dispatcher Dispatcher
	observer   Observer
	sender     Sender
	backoff    func(attempt int) time.Duration
	newKey     func() string
	greeting   string
	seeded     bool
	startedNew bool

	logger *slog.Logger

	mu             sync.Mutex
	conn           Conn
	conversationID int
	requestID      int
	messages       []models.Message
	buffer         string
	key            string
	loaded         bool
	complete       bool
	greeted        bool

	writeMu sync.Mutex
}

type outboundMessage struct {
	ConversationID *int   `json:"conversation_id"`
	Message        string `json:"message"`
}

const errLoggerKey = "err"

// ErrNotConnected is returned by Send when no live connection is open.
var ErrNotConnected = errors.New("live connection is not open")

// NewSession creates a Session. It does not connect until Run is called.
func NewSession(dialer Dialer, cfg Config) *Session {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = nopDispatcher{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.NewKey == nil {
		cfg.NewKey = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	seeded := len(cfg.InitialMessages) > 0
	return &Session{
		dialer:         dialer,
		dispatcher:     cfg.Dispatcher,
		observer:       cfg.Observer,
		sender:         cfg.Sender,
		backoff:        cfg.Backoff,
		newKey:         cfg.NewKey,
		greeting:       cfg.Greeting,
		seeded:         seeded,
		startedNew:     cfg.ConversationID == 0,
		logger:         cfg.Logger.With(slog.String("module", "realtime")),
		conversationID: cfg.ConversationID,
		requestID:      cfg.RequestID,
		messages:       slices.Clone(cfg.InitialMessages),
		key:            cfg.NewKey(),
		loaded:         seeded,
	}
}

// DefaultBackoff waits 500ms before the first reconnect and doubles up to 10s.
func DefaultBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << min(attempt, 5)
	return min(d, 10*time.Second)
}

// Run keeps one live connection open until ctx is done, reconnecting with backoff when the transport
// drops. Cancelling ctx closes the connection; it is the only way to stop a session.
func (s *Session) Run(ctx context.Context) {
	attempt := 0
	for {
		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to open live connection",
				slog.Int("attempt", attempt),
				slog.String(errLoggerKey, err.Error()))
			if !s.wait(ctx, attempt) {
				return
			}
			attempt++
			continue
		}
		attempt = 0

		s.connected(conn)
		err = s.read(ctx, conn)
		s.disconnected(conn)

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Live connection dropped", slog.String(errLoggerKey, err.Error()))
		if !s.wait(ctx, attempt) {
			return
		}
		attempt++
	}
}

func (s *Session) wait(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(s.backoff(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) connected(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.loaded = true
	greet := !s.greeted && !s.seeded && s.startedNew && s.greeting != "" && len(s.messages) == 0
	s.greeted = true
	if greet {
		s.messages = append(s.messages, models.Message{Role: models.RoleAssistant, Content: s.greeting})
	}
	messages := slices.Clone(s.messages)
	s.mu.Unlock()

	s.logger.Debug("Live connection opened")
	s.observer.Ready()
	if greet {
		s.observer.MessagesChanged(messages)
	}
}

func (s *Session) disconnected(conn Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	_ = conn.Close()
}

// read handles frames in delivery order until the connection fails or ctx is done.
func (s *Session) read(ctx context.Context, conn Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(data)
	}
}

func (s *Session) handle(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		s.logger.Warn("Discarding frame",
			slog.String("frame", string(data)),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	switch f := frame.(type) {
	case TextFrame:
		s.appendText(f.Text)
	case EventFrame:
		s.dispatcher.Dispatch(f.Call)
	case CompleteFrame:
		s.completed(f)
	}
}

func (s *Session) appendText(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	s.buffer += text
	key, buffer := s.key, s.buffer
	s.mu.Unlock()

	s.observer.TextChanged(key, buffer)
}

func (s *Session) completed(f CompleteFrame) {
	s.mu.Lock()
	appended := s.buffer != ""
	if appended {
		s.messages = append(s.messages, models.Message{Role: models.RoleAssistant, Content: s.buffer})
	}
	s.buffer = ""
	s.complete = true
	s.key = s.newKey()

	changed := false
	if f.ConversationID != 0 && f.ConversationID != s.conversationID {
		s.conversationID = f.ConversationID
		changed = true
	}
	if f.RequestID != 0 && f.RequestID != s.requestID {
		s.requestID = f.RequestID
		changed = true
	}

	messages := slices.Clone(s.messages)
	key, conversationID, requestID := s.key, s.conversationID, s.requestID
	s.mu.Unlock()

	if appended {
		s.observer.MessagesChanged(messages)
	}
	s.observer.TextChanged(key, "")
	if changed {
		s.observer.ConversationChanged(conversationID, requestID)
	}
}

// Send appends text as a user message right away and then sends it to the backend. The optimistic
// message is kept when sending fails.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	s.messages = append(s.messages, models.Message{Role: models.RoleUser, Content: text})
	s.buffer = ""
	s.complete = false
	s.key = s.newKey()
	messages := slices.Clone(s.messages)
	key, conversationID, conn := s.key, s.conversationID, s.conn
	s.mu.Unlock()

	s.observer.MessagesChanged(messages)
	s.observer.TextChanged(key, "")

	if s.sender != nil {
		return s.sendOneShot(ctx, conversationID, text)
	}
	if conn == nil {
		return ErrNotConnected
	}

	msg := outboundMessage{Message: text}
	if conversationID != 0 {
		msg.ConversationID = &conversationID
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (s *Session) sendOneShot(ctx context.Context, conversationID int, text string) error {
	res, err := s.sender.SendMessage(ctx, conversationID, text)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.mu.Lock()
	changed := false
	if res.ConversationID != 0 && res.ConversationID != s.conversationID {
		s.conversationID = res.ConversationID
		changed = true
	}
	if res.RequestID != 0 && res.RequestID != s.requestID {
		s.requestID = res.RequestID
		changed = true
	}
	conversationID, requestID := s.conversationID, s.requestID
	s.mu.Unlock()

	if changed {
		s.observer.ConversationChanged(conversationID, requestID)
	}
	if len(res.Answer) > 0 && string(res.Answer) != "null" {
		s.dispatcher.Dispatch(models.FunctionCall{
			Name:      models.EventQuestionAnswered,
			Arguments: res.Answer,
		})
	}
	return nil
}

// Messages returns a snapshot of the message list.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// AnimatedText returns the text of the assistant message being streamed.
func (s *Session) AnimatedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// MessageKey identifies the logical message currently being streamed.
func (s *Session) MessageKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// ConversationID returns the current conversation identifier, 0 when none is known yet.
func (s *Session) ConversationID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// RequestID returns the identifier of the request drafted in this conversation, 0 when none is known yet.
func (s *Session) RequestID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

// Loaded reports whether the session was seeded or has connected at least once.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Complete reports whether the last streamed message has finished.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) Ready()                           {}
func (NopObserver) MessagesChanged([]models.Message) {}
func (NopObserver) TextChanged(string, string)       {}
func (NopObserver) ConversationChanged(int, int)     {}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(models.FunctionCall) {}
