package typewriter

import (
	"sync"
	"time"
)

// State of a Presenter.
type State int

const (
	Idle State = iota
	Revealing
)

// DefaultInterval is the delay between two revealed characters.
const DefaultInterval = 5 * time.Millisecond

// Presenter reveals a growing buffer at a fixed pace, independent of how fast the buffer grows.
// Characters are runes; they are revealed in order and never dropped.
type Presenter struct {
	scheduler Scheduler
	interval  time.Duration
	onChar    func(displayed string)

	mu        sync.Mutex
	key       string
	buffer    []rune
	displayed []rune
	state     State
	timer     Timer
	gen       uint64
}

func (s State) String() string {
	if s == Revealing {
		return "revealing"
	}
	return "idle"
}

// NewPresenter creates an idle Presenter. onChar is called after every revealed character with the
// text displayed so far; it may be nil.
func NewPresenter(scheduler Scheduler, interval time.Duration, onChar func(displayed string)) *Presenter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if onChar == nil {
		onChar = func(string) {}
	}
	return &Presenter{
		scheduler: scheduler,
		interval:  interval,
		onChar:    onChar,
	}
}

// SetKey starts a new logical message when key differs from the current one: the displayed text and
// the buffer are cleared and any pending reveal is cancelled.
func (p *Presenter) SetKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if key == p.key {
		return
	}
	p.key = key
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	p.buffer = nil
	p.displayed = nil
	p.state = Idle
}

// SetBuffer records the current text of the message. Revealing starts when it holds more characters
// than are displayed. A shorter buffer never takes back displayed characters.
func (p *Presenter) SetBuffer(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = []rune(text)
	if p.state == Idle && len(p.displayed) < len(p.buffer) {
		p.state = Revealing
		p.schedule()
	}
}

// Update is SetKey followed by SetBuffer.
func (p *Presenter) Update(key, text string) {
	p.SetKey(key)
	p.SetBuffer(text)
}

// schedule must be called with p.mu held.
func (p *Presenter) schedule() {
	gen := p.gen
	p.timer = p.scheduler.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Presenter) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != Revealing {
		p.mu.Unlock()
		return
	}
	if len(p.displayed) >= len(p.buffer) {
		p.state = Idle
		p.timer = nil
		p.mu.Unlock()
		return
	}

	p.displayed = append(p.displayed, p.buffer[len(p.displayed)])
	displayed := string(p.displayed)
	if len(p.displayed) < len(p.buffer) {
		p.schedule()
	} else {
		p.state = Idle
		p.timer = nil
	}
	p.mu.Unlock()

	p.onChar(displayed)
}

// Displayed returns the text revealed so far.
func (p *Presenter) Displayed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.displayed)
}

func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cursor reports whether the typing cursor should be shown.
func (p *Presenter) Cursor() bool {
	return p.State() == Revealing
}

// Key returns the key of the message being presented.
func (p *Presenter) Key() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}
