package typewriter_test

import (
	"sync"
	"testing"
	"time"

	"github.com/vraagmijnoverheid/woo-web/internal/typewriter"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) typewriter.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.pending = append(s.pending, t)
	return t
}

// fire runs the oldest pending timer that was not stopped.
func (s *fakeScheduler) fire() bool {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return false
		}
		t := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		if t.stopped {
			continue
		}
		t.f()
		return true
	}
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

func TestPresenterRevealsGrowingBuffer(t *testing.T) {
	scheduler := &fakeScheduler{}
	var seen []string
	p := typewriter.NewPresenter(scheduler, time.Millisecond, func(displayed string) {
		seen = append(seen, displayed)
	})
	p.SetKey("k1")

	for _, text := range []string{"H", "He", "Hel"} {
		p.SetBuffer(text)
		if p.State() != typewriter.Revealing {
			t.Fatalf("after SetBuffer(%q) state = %v, want revealing", text, p.State())
		}
		if !scheduler.fire() {
			t.Fatalf("no tick scheduled for %q", text)
		}
		if got := p.Displayed(); got != text {
			t.Errorf("Displayed() = %q, want %q", got, text)
		}
	}

	if p.State() != typewriter.Idle {
		t.Errorf("State() = %v, want idle", p.State())
	}
	if p.Cursor() {
		t.Error("cursor shown while idle")
	}
	want := []string{"H", "He", "Hel"}
	if len(seen) != len(want) {
		t.Fatalf("onChar calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("onChar[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestPresenterOneCharacterPerTick(t *testing.T) {
	scheduler := &fakeScheduler{}
	p := typewriter.NewPresenter(scheduler, time.Millisecond, nil)
	p.Update("k1", "héllo")

	for i, want := range []string{"h", "hé", "hél", "héll", "héllo"} {
		if !scheduler.fire() {
			t.Fatalf("tick %d not scheduled", i)
		}
		if got := p.Displayed(); got != want {
			t.Fatalf("tick %d: Displayed() = %q, want %q", i, got, want)
		}
	}
	if scheduler.live() != 0 {
		t.Error("tick scheduled after buffer was fully revealed")
	}
	if p.State() != typewriter.Idle {
		t.Errorf("State() = %v, want idle", p.State())
	}
}

func TestPresenterNewKeyResets(t *testing.T) {
	scheduler := &fakeScheduler{}
	p := typewriter.NewPresenter(scheduler, time.Millisecond, nil)
	p.Update("k1", "Hello")
	scheduler.fire()
	scheduler.fire()

	p.SetKey("k2")
	if got := p.Displayed(); got != "" {
		t.Errorf("Displayed() after new key = %q, want empty", got)
	}
	if p.State() != typewriter.Idle {
		t.Errorf("State() = %v, want idle", p.State())
	}
	if scheduler.fire() {
		t.Error("stale tick fired after key change")
	}

	p.SetBuffer("Hi")
	scheduler.fire()
	if got := p.Displayed(); got != "H" {
		t.Errorf("Displayed() = %q, want %q", got, "H")
	}
}

func TestPresenterSameKeyKeepsText(t *testing.T) {
	scheduler := &fakeScheduler{}
	p := typewriter.NewPresenter(scheduler, time.Millisecond, nil)
	p.Update("k1", "ab")
	scheduler.fire()
	scheduler.fire()

	p.Update("k1", "a")
	if got := p.Displayed(); got != "ab" {
		t.Errorf("Displayed() = %q, want %q", got, "ab")
	}
	if p.State() != typewriter.Idle {
		t.Errorf("State() = %v, want idle", p.State())
	}
}

func TestPresenterInterval(t *testing.T) {
	scheduler := &fakeScheduler{}
	p := typewriter.NewPresenter(scheduler, 0, nil)
	p.Update("k", "x")
	if len(scheduler.pending) != 1 || scheduler.pending[0].d != typewriter.DefaultInterval {
		t.Fatalf("pending = %+v, want one timer of %v", scheduler.pending, typewriter.DefaultInterval)
	}
}

func TestStepperAdvancesAndStops(t *testing.T) {
	scheduler := &fakeScheduler{}
	var steps []int
	s := typewriter.NewStepper(scheduler, []time.Duration{4 * time.Second, 2 * time.Second, 2 * time.Second}, func(step int) {
		steps = append(steps, step)
	})

	s.Start()
	s.Start()
	for scheduler.fire() {
	}

	want := []int{0, 1, 2}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("steps[%d] = %d, want %d", i, steps[i], want[i])
		}
	}
	if s.Current() != 2 {
		t.Errorf("Current() = %d, want 2", s.Current())
	}
}

func TestStepperStop(t *testing.T) {
	scheduler := &fakeScheduler{}
	s := typewriter.NewStepper(scheduler, []time.Duration{time.Second, time.Second, time.Second}, nil)
	s.Start()
	scheduler.fire()
	s.Stop()

	if scheduler.fire() {
		t.Error("advance fired after Stop")
	}
	if s.Current() != 1 {
		t.Errorf("Current() = %d, want 1", s.Current())
	}
	if s.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestStatusDurations(t *testing.T) {
	durations := typewriter.StatusDurations(3)
	if len(durations) != 3 {
		t.Fatalf("len = %d, want 3", len(durations))
	}
	if d := durations[0]; d < 3*time.Second || d >= 5*time.Second {
		t.Errorf("first step = %v, want within [3s, 5s)", d)
	}
	for i, d := range durations[1:] {
		if d < 2*time.Second || d >= 3*time.Second {
			t.Errorf("step %d = %v, want within [2s, 3s)", i+1, d)
		}
	}
}
