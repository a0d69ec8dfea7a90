package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/vraagmijnoverheid/woo-web/internal/form"
	"github.com/vraagmijnoverheid/woo-web/internal/models"
	"github.com/vraagmijnoverheid/woo-web/internal/realtime"
	"github.com/vraagmijnoverheid/woo-web/internal/typewriter"
)

// view is one rendered chat page: its request form, its live session and the presenters animating
// it. It is mounted while the page's event stream is open.
type view struct {
	id      string
	m       Main
	created time.Time

	form      *form.Store
	session   *realtime.Session
	presenter *typewriter.Presenter
	stepper   *typewriter.Stepper

	unsubscribe func()

	// publishMu orders renders of the same view so a later state is never overwritten by an earlier one.
	publishMu sync.Mutex

	mu       sync.Mutex
	mounted  bool
	thinking bool
	cancel   context.CancelFunc
	done     chan struct{}
	resync   typewriter.Timer

	logger *slog.Logger
}

type viewRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	views map[string]*view
}

var errViewMounted = errors.New("view is already mounted")

// resyncDelay is how long after mounting the complete view state is published once more. Updates
// published before the stream's subscription was registered are not delivered.
const resyncDelay = 250 * time.Millisecond

func newViewRegistry(ttl time.Duration, now func() time.Time) *viewRegistry {
	return &viewRegistry{
		ttl:   ttl,
		now:   now,
		views: make(map[string]*view),
	}
}

// add registers v and drops views that were never mounted within the TTL.
func (r *viewRegistry) add(v *view) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, old := range r.views {
		if !old.isMounted() && now.Sub(old.created) > r.ttl {
			old.close()
			delete(r.views, id)
		}
	}
	r.views[v.id] = v
}

func (r *viewRegistry) get(id string) (*view, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	return v, ok
}

// remove unregisters a view and tears it down.
func (r *viewRegistry) remove(id string) {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if ok {
		v.close()
	}
}

func (r *viewRegistry) closeAll() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*view)
	r.mu.Unlock()

	for _, v := range views {
		v.close()
	}
}

func (r *viewRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

type viewParams struct {
	conversationID int
	requestID      int
	messages       []models.Message
	questions      []models.Question
}

func (m Main) newView(id string, p viewParams) *view {
	v := &view{
		id:      id,
		m:       m,
		created: m.cfg.Now(),
		form:    form.NewStore(),
		logger:  m.logger.With(slog.String("view", id)),
	}
	v.form.SetQuestions(p.questions)
	v.unsubscribe = v.form.Subscribe(func([]models.Question) { v.publishQuestions() })

	v.presenter = typewriter.NewPresenter(m.cfg.Scheduler, m.cfg.TypingSpeed, func(string) {
		v.publishTypewriter()
	})
	v.stepper = typewriter.NewStepper(m.cfg.Scheduler, typewriter.StatusDurations(len(models.StatusSteps)),
		func(int) { v.publishStatus() })

	v.session = realtime.NewSession(m.dialer, realtime.Config{
		ConversationID:  p.conversationID,
		RequestID:       p.requestID,
		InitialMessages: p.messages,
		Greeting:        m.cfg.Greeting,
		Dispatcher:      form.NewDispatcher(v.form, m.logger),
		Observer:        v,
		Logger:          m.logger,
	})
	return v
}

// mount starts the live session. It fails when another stream already holds the view.
func (v *view) mount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.mounted {
		return errViewMounted
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.mounted = true
	v.cancel = cancel
	v.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		v.session.Run(ctx)
	}(v.done)
	v.resync = v.m.cfg.Scheduler.AfterFunc(resyncDelay, v.publishSnapshot)

	v.logger.Debug("View mounted")
	return nil
}

func (v *view) isMounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted
}

// close stops the live session and every pending animation. It waits for the session to exit.
func (v *view) close() {
	v.mu.Lock()
	cancel, done, resync := v.cancel, v.done, v.resync
	v.mounted = false
	v.cancel = nil
	v.done = nil
	v.resync = nil
	v.mu.Unlock()

	if resync != nil {
		resync.Stop()
	}

	v.stepper.Stop()
	v.presenter.SetKey("")
	if cancel != nil {
		cancel()
		<-done
		v.logger.Debug("View unmounted")
	}
}

func (v *view) setThinking(thinking bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	changed := v.thinking != thinking
	v.thinking = thinking
	return changed
}

func (v *view) isThinking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.thinking
}

// Ready implements realtime.Observer.
func (v *view) Ready() {
	v.publishStatus()
}

// MessagesChanged implements realtime.Observer.
func (v *view) MessagesChanged(messages []models.Message) {
	if n := len(messages); n > 0 && messages[n-1].Role == models.RoleAssistant {
		v.stopThinking()
	}
	v.publishMessages()
}

// TextChanged implements realtime.Observer.
func (v *view) TextChanged(key, text string) {
	if text != "" {
		v.stopThinking()
	}
	changed := v.presenter.Key() != key
	v.presenter.Update(key, text)
	if changed {
		v.publishTypewriter()
	}
}

// ConversationChanged implements realtime.Observer.
func (v *view) ConversationChanged(conversationID, requestID int) {
	msg, err := conversationMessage(conversationID, requestID)
	if err != nil {
		v.logger.Error("Failed to encode conversation event", slog.String(errLoggerKey, err.Error()))
		return
	}
	v.publish(msg)
}

func (v *view) startThinking() {
	if v.setThinking(true) {
		v.stepper.Stop()
		v.stepper.Start()
	}
}

func (v *view) stopThinking() {
	if v.setThinking(false) {
		v.stepper.Stop()
		v.publishStatus()
	}
}

func (v *view) publishMessages() {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()
	v.renderAndPublish(messagesSSEType, "messages", messageViews(v.session.Messages()))
}

func (v *view) publishTypewriter() {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()
	v.renderAndPublish(typewriterSSEType, "typewriter", v.typewriterData())
}

func (v *view) publishQuestions() {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()
	v.renderAndPublish(questionsSSEType, "questions", v.questionsData())
}

func (v *view) publishStatus() {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()
	v.renderAndPublish(statusSSEType, "status", v.statusData())
}

func (v *view) renderAndPublish(typ sse.EventType, name string, data any) {
	msg, err := v.message(typ, name, data)
	if err != nil {
		v.logger.Error("Failed to render view update",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	v.publish(msg)
}

func (v *view) publish(msg *sse.Message) {
	if err := v.m.sseSrv.Publish(msg, viewTopic(v.id)); err != nil {
		v.logger.Warn("Failed to publish view update", slog.String(errLoggerKey, err.Error()))
	}
}

func (v *view) message(typ sse.EventType, name string, data any) (*sse.Message, error) {
	body, err := v.m.render(name, data)
	if err != nil {
		return nil, err
	}
	msg := &sse.Message{Type: typ}
	msg.AppendData(body)
	return msg, nil
}

func (v *view) publishSnapshot() {
	for _, msg := range v.snapshot() {
		v.publish(msg)
	}
}

// snapshot renders the complete current state of the view as stream events.
func (v *view) snapshot() []*sse.Message {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()

	parts := []struct {
		typ  sse.EventType
		name string
		data any
	}{
		{messagesSSEType, "messages", messageViews(v.session.Messages())},
		{typewriterSSEType, "typewriter", v.typewriterData()},
		{questionsSSEType, "questions", v.questionsData()},
		{statusSSEType, "status", v.statusData()},
	}

	msgs := make([]*sse.Message, 0, len(parts)+1)
	for _, p := range parts {
		msg, err := v.message(p.typ, p.name, p.data)
		if err != nil {
			v.logger.Error("Failed to render view snapshot",
				slog.String("template", p.name),
				slog.String(errLoggerKey, err.Error()))
			continue
		}
		msgs = append(msgs, msg)
	}
	if id := v.session.ConversationID(); id != 0 {
		if msg, err := conversationMessage(id, v.session.RequestID()); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (v *view) typewriterData() typewriterData {
	return typewriterView(v.presenter.Displayed(), v.presenter.Cursor())
}

func (v *view) questionsData() questionsData {
	return questionsData{
		ViewID:    v.id,
		RequestID: v.session.RequestID(),
		ChatID:    v.session.ConversationID(),
		Questions: questionViews(v.form.Questions()),
	}
}

func (v *view) statusData() statusData {
	data := statusData{Loaded: v.session.Loaded()}
	if v.isThinking() {
		data.Steps = models.StatusProgress(models.StatusSteps, v.stepper.Current())
	}
	return data
}

type conversationEvent struct {
	ConversationID int `json:"conversationId"`
	RequestID      int `json:"wooRequestId"`
}

func conversationMessage(conversationID, requestID int) (*sse.Message, error) {
	data, err := json.Marshal(conversationEvent{ConversationID: conversationID, RequestID: requestID})
	if err != nil {
		return nil, err
	}
	msg := &sse.Message{Type: conversationSSEType}
	msg.AppendData(string(data))
	return msg, nil
}
