// Package playback steps through a loaded trace on a timer.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/simtools/internal/trace"
)

var (
	// ErrNotLoaded is returned when the source holds no frames
	ErrNotLoaded = errors.New("no trace loaded")
	// ErrInvalidStep is returned for a negative step or interval
	ErrInvalidStep = errors.New("invalid playback step")
)

const (
	DefaultStepSec  = 60
	DefaultInterval = 100 * time.Millisecond
)

// Source is the trace being played. *trace.Store satisfies it.
type Source interface {
	Summary() trace.Summary
	View(t int64) *trace.FrameView
}

// Options configures a Player. Zero values fall back to the defaults.
type Options struct {
	StepSec  int64
	Interval time.Duration
	// OnFrame is called with the view of every time the player lands on.
	// It runs while the player is locked and must not call back into it.
	OnFrame func(*trace.FrameView)
	Logger  *slog.Logger
}

// Player advances a cursor through a trace by a fixed step.
//
// Every advance runs under the player's mutex and checks a generation counter
// that Stop bumps, so once Stop returns no further advance is applied or
// emitted.
type Player struct {
	mu         sync.Mutex
	src        Source
	opts       Options
	logger     *slog.Logger
	current    int64
	positioned bool
	playing    bool
	gen        uint64
	cancel     context.CancelFunc
	done       chan struct{}
}
}

// New creates a stopped player with the cursor on the first stored time of
// the trace. A source loaded later is picked up on the first Start or Advance.
func New(src Source, opts Options) (*Player, error) {
	if opts.StepSec < 0 || opts.Interval < 0 {
		return nil, ErrInvalidStep
	}
	if opts.StepSec == 0 {
		opts.StepSec = DefaultStepSec
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{src: src, opts: opts, logger: logger}
	p.place(src.Summary())
	return p, nil
}

// Current returns the cursor time
func (p *Player) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Playing reports whether the timer is running
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Seek moves the cursor to t, clamped to the trace bounds, and emits that
// frame. It does not change the playing state.
func (p *Player) Seek(t int64) error {
	sum := p.src.Summary()
	if sum.Frames == 0 {
		return ErrNotLoaded
	}
	t = min(max(t, sum.MinTime), sum.MaxTime)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = t
	p.positioned = true
	p.emit()
	return nil
}

// place must be called with p.mu held or before the player is shared
func (p *Player) place(sum trace.Summary) {
	if p.positioned || sum.Frames == 0 {
		return
	}
	p.current = sum.MinTime
	p.positioned = true
}

// Advance performs a single step. It reports false once the end of the
// trace has been reached, in which case the cursor sits on the last time.
func (p *Player) Advance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step()
}

// step must be called with p.mu held
func (p *Player) step() bool {
	sum := p.src.Summary()
	if sum.Frames == 0 {
		return false
	}
	p.place(sum)
	next := p.current + p.opts.StepSec
	if next > sum.MaxTime {
		p.current = sum.MaxTime
		p.emit()
		return false
	}
	p.current = next
	p.emit()
	return true
}

func (p *Player) emit() {
	if p.opts.OnFrame != nil {
		p.opts.OnFrame(p.src.View(p.current))
	}
}

// Start begins advancing every Interval until the end of the trace, ctx is
// done or Stop is called. Starting a running player is a no-op.
func (p *Player) Start(ctx context.Context) error {
	sum := p.src.Summary()
	if sum.Frames == 0 {
		return ErrNotLoaded
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	p.place(sum)

	p.gen++
	p.playing = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(runCtx, p.gen, p.done)
	p.logger.Debug("Playback started", "from", p.current, "step", p.opts.StepSec)
	return nil
}

// Stop halts playback. No advance happens after Stop returns.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halt()
}

// halt must be called with p.mu held
func (p *Player) halt() {
	if !p.playing {
		return
	}
	p.playing = false
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.logger.Debug("Playback stopped", "at", p.current)
}

// Done returns a channel closed when the current run ends. It is nil if the
// player was never started.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Player) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.gen == gen {
				p.halt()
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			if !p.tick(gen) {
				return
			}
		}
	}
}

func (p *Player) tick(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || !p.playing {
		return false
	}
	if !p.step() {
		p.halt()
		return false
	}
	return true
}
