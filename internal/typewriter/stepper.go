package typewriter

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Stepper advances through a fixed number of status steps, waiting a per-step duration before moving
// on. It stops on the last step.
type Stepper struct {
	scheduler Scheduler
	durations []time.Duration
	onStep    func(step int)

	mu      sync.Mutex
	current int
	running bool
	timer   Timer
	gen     uint64
}

// StatusDurations returns randomized step durations: the first step (searching) takes 3 to 5 seconds,
// the others 2 to 3 seconds.
func StatusDurations(steps int) []time.Duration {
	durations := make([]time.Duration, steps)
	for i := range durations {
		if i == 0 {
			durations[i] = 3*time.Second + rand.N(2*time.Second)
			continue
		}
		durations[i] = 2*time.Second + rand.N(time.Second)
	}
	return durations
}

// NewStepper creates a Stepper with one step per duration. onStep is called with the new step index
// each time the stepper starts or advances.
func NewStepper(scheduler Scheduler, durations []time.Duration, onStep func(step int)) *Stepper {
	if onStep == nil {
		onStep = func(int) {}
	}
	return &Stepper{
		scheduler: scheduler,
		durations: durations,
		onStep:    onStep,
	}
}

// Start begins at the first step. It does nothing while already running.
func (s *Stepper) Start() {
	s.mu.Lock()
	if s.running || len(s.durations) == 0 {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.current = 0
	s.gen++
	s.schedule()
	s.mu.Unlock()

	s.onStep(0)
}

// Stop cancels any pending advance. The current step is kept.
func (s *Stepper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.running = false
}

// Current returns the index of the current step.
func (s *Stepper) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Running reports whether the stepper was started and not stopped.
func (s *Stepper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// schedule must be called with s.mu held.
func (s *Stepper) schedule() {
	gen := s.gen
	s.timer = s.scheduler.AfterFunc(s.durations[s.current], func() { s.advance(gen) })
}

func (s *Stepper) advance(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	next := s.current + 1
	if next >= len(s.durations) {
		s.timer = nil
		s.mu.Unlock()
		return
	}
	s.current = next
	s.schedule()
	s.mu.Unlock()

	s.onStep(next)
}
