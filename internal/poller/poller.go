// Package poller drives the dashboard's recurring fetches.
//
// A Poller owns one resource (the job queue, a job's details, the
// hardware view, accounting history). It is a plain state machine living
// in the Bubble Tea model: ticks and results come back as messages, the
// fetch itself runs inside a tea.Cmd on a goroutine, and every message is
// tagged with the poller's name and generation so that stale work is
// dropped on arrival instead of being cancelled.
package poller

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultCooldown is the minimum gap between manual refreshes.
	DefaultCooldown = 2 * time.Second
)

// FetchFunc loads one snapshot. It runs off the UI goroutine and must
// honor ctx.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// TickMsg asks a poller to fetch again.
type TickMsg struct {
	Name string
	Gen  uint64
	At   time.Time
}

// ResultMsg carries the outcome of one fetch.
type ResultMsg[T any] struct {
	Name     string
	Gen      uint64
	Value    T
	Err      error
	Manual   bool
	Duration time.Duration
}

// Poller schedules fetches for one resource. Its methods must only be
// called from the Bubble Tea update loop.
type Poller[T any] struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	cooldown time.Duration
	fetch    FetchFunc[T]
	now      func() time.Time
	log      logger.Logger

	live       bool
	gen        uint64
	inFlight   bool
	lastManual time.Time

	lastErr     error
	lastSuccess time.Time
	failures    int
}

// Option configures a Poller.
type Option func(*options)

type options struct {
	timeout  time.Duration
	cooldown time.Duration
	now      func() time.Time
	log      logger.Logger
}

// WithTimeout bounds each fetch. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCooldown sets the minimum gap between manual refreshes.
func WithCooldown(d time.Duration) Option {
	return func(o *options) {
		o.cooldown = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a stopped poller.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option) *Poller[T] {
	o := options{
		timeout:  DefaultTimeout,
		cooldown: DefaultCooldown,
		now:      time.Now,
		log:      logger.NewEnvLogger("[poller]"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Poller[T]{
		name:     name,
		interval: interval,
		timeout:  o.timeout,
		cooldown: o.cooldown,
		fetch:    fetch,
		now:      o.now,
		log:      o.log,
	}
}

// Name identifies the poller in its messages.
func (p *Poller[T]) Name() string { return p.name }

// Interval returns the scheduled gap between fetches.
func (p *Poller[T]) Interval() time.Duration { return p.interval }

// Live reports whether the poller is scheduled.
func (p *Poller[T]) Live() bool { return p.live }

// InFlight reports whether a fetch has not reported back yet.
func (p *Poller[T]) InFlight() bool { return p.inFlight }

// Generation returns the current generation.
func (p *Poller[T]) Generation() uint64 { return p.gen }

// LastError returns the error of the latest accepted fetch, or nil.
func (p *Poller[T]) LastError() error { return p.lastErr }

// LastSuccess returns when the latest successful fetch was accepted.
func (p *Poller[T]) LastSuccess() time.Time { return p.lastSuccess }

// Failures counts consecutive failed fetches.
func (p *Poller[T]) Failures() int { return p.failures }

// SetInterval changes the gap between fetches. A live poller uses it from
// the next scheduled tick on.
func (p *Poller[T]) SetInterval(d time.Duration) { p.interval = d }

// SetTimeout changes the bound on each fetch. Non-positive values are
// ignored.
func (p *Poller[T]) SetTimeout(d time.Duration) {
	if d > 0 {
		p.timeout = d
	}
}

// SetFetch replaces the fetch function. A fetch already running is not
// affected.
func (p *Poller[T]) SetFetch(fetch FetchFunc[T]) { p.fetch = fetch }

// Start schedules the poller: one fetch now and a tick after the interval.
// Starting a live poller restarts it and retires its pending messages.
func (p *Poller[T]) Start() tea.Cmd {
	p.live = true
	p.gen++
	p.inFlight = true
	p.log.Debug("%s: start gen %d every %s", p.name, p.gen, p.interval)
	return tea.Batch(p.fetchCmd(p.gen, false), p.tickCmd(p.gen))
}

// Stop unschedules the poller. A fetch already running completes, but its
// result is rejected by Accept.
func (p *Poller[T]) Stop() {
	if p.live {
		p.log.Debug("%s: stop gen %d", p.name, p.gen)
	}
	p.live = false
	p.gen++
	p.inFlight = false
}

// HandleTick reacts to a tick. Ticks for other pollers or older
// generations return nil. While a fetch is in flight the tick is dropped
// and only the next tick is scheduled.
func (p *Poller[T]) HandleTick(msg TickMsg) tea.Cmd {
	if msg.Name != p.name || msg.Gen != p.gen || !p.live {
		return nil
	}
	next := p.tickCmd(p.gen)
	if p.inFlight {
		p.log.Debug("%s: tick coalesced, fetch still running", p.name)
		return next
	}
	p.inFlight = true
	return tea.Batch(p.fetchCmd(p.gen, false), next)
}

// Refresh fetches immediately. It is refused while a fetch is in flight,
// when the poller is stopped, or within the cooldown of the previous
// manual refresh.
func (p *Poller[T]) Refresh() (tea.Cmd, bool) {
	if !p.live || p.inFlight {
		return nil, false
	}
	now := p.now()
	if !p.lastManual.IsZero() && now.Sub(p.lastManual) < p.cooldown {
		return nil, false
	}
	p.lastManual = now
	p.inFlight = true
	return p.fetchCmd(p.gen, true), true
}

// Accept reports whether msg belongs to this poller's current generation
// and should be applied. Accepted results clear the in-flight flag and
// update the failure bookkeeping.
func (p *Poller[T]) Accept(msg ResultMsg[T]) bool {
	if msg.Name != p.name {
		return false
	}
	if msg.Gen != p.gen || !p.live {
		p.log.Debug("%s: dropped result of gen %d (current %d)", p.name, msg.Gen, p.gen)
		return false
	}
	p.inFlight = false
	if msg.Err != nil {
		p.lastErr = msg.Err
		p.failures++
		p.log.Warn("%s: fetch failed after %s: %s", p.name, msg.Duration.Round(time.Millisecond), errors.Summary(msg.Err))
		return true
	}
	p.lastErr = nil
	p.failures = 0
	p.lastSuccess = p.now()
	return true
}

func (p *Poller[T]) tickCmd(gen uint64) tea.Cmd {
	name := p.name
	return tea.Tick(p.interval, func(t time.Time) tea.Msg {
		return TickMsg{Name: name, Gen: gen, At: t}
	})
}

type outcome[T any] struct {
	value T
	err   error
}

// fetchCmd runs the fetch under the timeout. A fetch that ignores its
// context is abandoned when the deadline passes.
func (p *Poller[T]) fetchCmd(gen uint64, manual bool) tea.Cmd {
	name, timeout, fetch, now := p.name, p.timeout, p.fetch, p.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := now()
		done := make(chan outcome[T], 1)
		go func() {
			v, err := fetch(ctx)
			done <- outcome[T]{value: v, err: err}
		}()

		msg := ResultMsg[T]{Name: name, Gen: gen, Manual: manual}
		select {
		case o := <-done:
			msg.Value, msg.Err = o.value, o.err
			if o.err != nil && ctx.Err() == context.DeadlineExceeded && !errors.IsTimeout(o.err) {
				msg.Err = timeoutError(ctx.Err(), name, timeout)
			}
		case <-ctx.Done():
			msg.Err = timeoutError(ctx.Err(), name, timeout)
		}
		msg.Duration = now().Sub(start)
		return msg
	}
}

func timeoutError(cause error, name string, timeout time.Duration) error {
	return errors.WrapWithCode(cause, errors.ErrTimeout,
		fmt.Sprintf("%s did not respond within %s", name, timeout),
		"The cluster may be busy. Raise general.subprocess_timeout if this keeps happening.")
}
