// Package form holds the shared question list of a request and the dispatcher that applies structured
// backend events to it.
package form

import (
	"slices"
	"sync"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

// Store is the single source of truth for the questions of one chat view. It is shared by reference
// between the chat, the request form and the dispatcher. Every mutation goes through its methods.
type Store struct {
	mu        sync.Mutex
	questions []models.Question

	nextSub   int
	listeners map[int]func([]models.Question)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{listeners: make(map[int]func([]models.Question))}
}

// Questions returns a snapshot of the current list.
func (s *Store) Questions() []models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneQuestions(s.questions)
}

// SetQuestions replaces the list wholesale. It is used when seeding from a persisted conversation and
// to clear the form after submission. The list is not validated.
func (s *Store) SetQuestions(questions []models.Question) {
	s.mu.Lock()
	s.questions = cloneQuestions(questions)
	snapshot := cloneQuestions(s.questions)
	s.mu.Unlock()

	s.notify(snapshot)
}

// UpdateAnswer attaches answer to every question carrying the answer's question identifier, marking
// those questions saved and no longer loading. It does nothing when no question matches.
func (s *Store) UpdateAnswer(answer models.Answer) {
	s.mu.Lock()
	matched := false
	for i := range s.questions {
		if s.questions[i].ID != answer.Question {
			continue
		}
		a := answer
		s.questions[i].Answer = &a
		s.questions[i].Saved = true
		s.questions[i].AnswerLoading = false
		matched = true
	}
	if !matched {
		s.mu.Unlock()
		return
	}
	snapshot := cloneQuestions(s.questions)
	s.mu.Unlock()

	s.notify(snapshot)
}

// AppendNew appends the questions whose text is not yet present in the list, keeping the existing order,
// and returns how many were appended. Duplicates inside questions are appended once.
func (s *Store) AppendNew(questions []models.Question) int {
	s.mu.Lock()
	existing := make(map[string]struct{}, len(s.questions))
	for _, q := range s.questions {
		existing[q.Text] = struct{}{}
	}

	added := 0
	for _, q := range questions {
		if _, ok := existing[q.Text]; ok {
			continue
		}
		existing[q.Text] = struct{}{}
		s.questions = append(s.questions, cloneQuestion(q))
		added++
	}
	if added == 0 {
		s.mu.Unlock()
		return 0
	}
	snapshot := cloneQuestions(s.questions)
	s.mu.Unlock()

	s.notify(snapshot)
	return added
}

// MarkSaved assigns the backend identifier to the locally created question with the given text.
// It reports whether such an unsaved question was found.
func (s *Store) MarkSaved(text string, id int) bool {
	s.mu.Lock()
	idx := slices.IndexFunc(s.questions, func(q models.Question) bool { return q.Text == text && !q.Saved })
	if idx == -1 {
		s.mu.Unlock()
		return false
	}
	s.questions[idx].ID = id
	s.questions[idx].Saved = true
	snapshot := cloneQuestions(s.questions)
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

// Subscribe registers fn to be called with a snapshot after every change. Calling the returned function
// removes the subscription.
func (s *Store) Subscribe(fn func([]models.Question)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(snapshot []models.Question) {
	s.mu.Lock()
	fns := make([]func([]models.Question), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func cloneQuestions(questions []models.Question) []models.Question {
	if questions == nil {
		return nil
	}
	res := make([]models.Question, len(questions))
	for i, q := range questions {
		res[i] = cloneQuestion(q)
	}
	return res
}

// cloneQuestion copies the answer so a snapshot shares no memory with the store.
func cloneQuestion(q models.Question) models.Question {
	if q.Answer != nil {
		a := *q.Answer
		q.Answer = &a
	}
	return q
}
