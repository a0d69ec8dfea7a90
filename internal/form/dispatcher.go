package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

// Dispatcher applies structured backend events to a Store.
type Dispatcher struct {
	store  *Store
	logger *slog.Logger
}

type answerPayload struct {
	ID          int            `json:"id"`
	WooQuestion int            `json:"woo_question"`
	Answer      string         `json:"answer"`
	Chunks      []models.Chunk `json:"chunks"`
	Details     models.Details `json:"details"`
	Answered    string         `json:"answered"`
}

type questionPayload struct {
	ID       int            `json:"id"`
	Question string         `json:"question"`
	Answer   *answerPayload `json:"answer"`
}

var errNotAList = errors.New("questions is not a list")

// NewDispatcher creates a Dispatcher mutating store.
func NewDispatcher(store *Store, logger *slog.Logger) Dispatcher {
	return Dispatcher{
		store:  store,
		logger: logger.With(slog.String("module", "dispatcher")),
	}
}

// Dispatch handles one event. Malformed payloads and unknown event names leave the store untouched.
func (d Dispatcher) Dispatch(call models.FunctionCall) {
	args, err := unwrapArguments(call.Arguments)
	if err != nil {
		d.logger.Debug("Discarding event with malformed arguments",
			slog.String("event", call.Name),
			slog.String("err", err.Error()))
		return
	}

	switch call.Name {
	case models.EventQuestionAnswered:
		d.questionAnswered(args)
	case models.EventQuestionsAdded:
		d.questionsAdded(args)
	default:
		d.logger.Warn("Unknown event", slog.String("event", call.Name))
	}
}

func (d Dispatcher) questionAnswered(args json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(args, &p); err != nil {
		d.logger.Debug("Discarding malformed answer", slog.String("err", err.Error()))
		return
	}
	d.store.UpdateAnswer(p.answer(p.WooQuestion))
}

func (d Dispatcher) questionsAdded(args json.RawMessage) {
	questions, err := decodeQuestions(args)
	if err != nil {
		d.logger.Debug("Discarding malformed questions", slog.String("err", err.Error()))
		return
	}
	if len(questions) == 0 {
		return
	}

	added := d.store.AppendNew(questions)
	d.logger.Debug("Questions added",
		slog.Int("received", len(questions)),
		slog.Int("appended", added))
}

// decodeQuestions maps the raw question list. Items that fail to decode are skipped.
func decodeQuestions(args json.RawMessage) ([]models.Question, error) {
	var raw struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(args, &raw); err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw.Questions, &items); err != nil || items == nil {
		return nil, errNotAList
	}

	questions := make([]models.Question, 0, len(items))
	for _, item := range items {
		var p questionPayload
		if err := json.Unmarshal(item, &p); err != nil {
			continue
		}
		q := models.Question{
			ID:            p.ID,
			Text:          p.Question,
			AnswerLoading: p.Answer == nil,
			Saved:         true,
		}
		if p.Answer != nil {
			a := p.Answer.answer(p.ID)
			q.Answer = &a
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (p answerPayload) answer(questionID int) models.Answer {
	chunks := p.Chunks
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	return models.Answer{
		ID:       p.ID,
		Question: questionID,
		Text:     p.Answer,
		Chunks:   chunks,
		Details:  p.Details,
		Answered: models.ParseAnswered(p.Answered),
	}
}

// unwrapArguments accepts arguments sent either as an object or as a JSON encoded string of an object.
func unwrapArguments(args json.RawMessage) (json.RawMessage, error) {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || string(args) == "null" {
		return json.RawMessage("{}"), nil
	}
	if args[0] != '"' {
		return args, nil
	}

	var s string
	if err := json.Unmarshal(args, &s); err != nil {
		return nil, fmt.Errorf("failed to decode string arguments: %w", err)
	}
	if s == "" {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(s), nil
}
