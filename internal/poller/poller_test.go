package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
)

// drain runs cmd and every command batched inside it, returning the
// messages produced. Intervals in these tests are tiny so tick commands
// return quickly.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func split[T any](msgs []tea.Msg) (ticks []TickMsg, results []ResultMsg[T]) {
	for _, m := range msgs {
		switch m := m.(type) {
		case TickMsg:
			ticks = append(ticks, m)
		case ResultMsg[T]:
			results = append(results, m)
		}
	}
	return ticks, results
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func counter() (*atomic.Int32, FetchFunc[int]) {
	var calls atomic.Int32
	return &calls, func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
}

func newTestPoller(fetch FetchFunc[int], opts ...Option) *Poller[int] {
	return New("queue", time.Millisecond, fetch, append([]Option{WithLogger(logger.Noop())}, opts...)...)
}

func TestPoller_StartFetchesAndSchedules(t *testing.T) {
	calls, fetch := counter()
	p := newTestPoller(fetch)

	ticks, results := split[int](drain(p.Start()))
	require.Len(t, results, 1)
	require.Len(t, ticks, 1)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, p.Live())
	assert.True(t, p.InFlight())

	assert.True(t, p.Accept(results[0]))
	assert.Equal(t, 1, results[0].Value)
	assert.False(t, p.InFlight())
	assert.Equal(t, "queue", ticks[0].Name)
	assert.Equal(t, p.Generation(), ticks[0].Gen)
}

func TestPoller_TickCoalescesWhileInFlight(t *testing.T) {
	calls, fetch := counter()
	p := newTestPoller(fetch)

	_, results := split[int](drain(p.Start()))
	require.Len(t, results, 1)

	// The first result has not been accepted yet, so the fetch is still
	// in flight from the poller's point of view.
	ticks, more := split[int](drain(p.HandleTick(TickMsg{Name: "queue", Gen: p.Generation()})))
	assert.Empty(t, more, "tick dropped while a fetch is outstanding")
	assert.Len(t, ticks, 1, "next tick still scheduled")
	assert.Equal(t, int32(1), calls.Load())

	require.True(t, p.Accept(results[0]))
	ticks, more = split[int](drain(p.HandleTick(ticks[0])))
	assert.Len(t, more, 1)
	assert.Len(t, ticks, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPoller_IgnoresForeignAndStaleTicks(t *testing.T) {
	_, fetch := counter()
	p := newTestPoller(fetch)
	drain(p.Start())
	gen := p.Generation()

	assert.Nil(t, p.HandleTick(TickMsg{Name: "history", Gen: gen}))
	assert.Nil(t, p.HandleTick(TickMsg{Name: "queue", Gen: gen - 1}))

	p.Stop()
	assert.Nil(t, p.HandleTick(TickMsg{Name: "queue", Gen: gen}))
	assert.Nil(t, p.HandleTick(TickMsg{Name: "queue", Gen: p.Generation()}))
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	_, fetch := counter()
	p := newTestPoller(fetch)

	_, results := split[int](drain(p.Start()))
	require.Len(t, results, 1)

	p.Stop()
	assert.False(t, p.Live())
	assert.False(t, p.Accept(results[0]))
}

func TestPoller_RestartDropsOldGeneration(t *testing.T) {
	_, fetch := counter()
	p := newTestPoller(fetch)

	_, old := split[int](drain(p.Start()))
	_, fresh := split[int](drain(p.Start()))

	assert.False(t, p.Accept(old[0]))
	assert.True(t, p.InFlight(), "a stale result leaves the current fetch outstanding")
	assert.True(t, p.Accept(fresh[0]))
	assert.False(t, p.InFlight())
}

func TestPoller_AcceptRejectsOtherPollers(t *testing.T) {
	_, fetch := counter()
	p := newTestPoller(fetch)
	drain(p.Start())

	assert.False(t, p.Accept(ResultMsg[int]{Name: "hardware", Gen: p.Generation()}))
	assert.True(t, p.InFlight())
}

func TestPoller_RefreshCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	calls, fetch := counter()
	p := newTestPoller(fetch, WithClock(clock.now))

	_, ok := p.Refresh()
	assert.False(t, ok, "refused while stopped")

	_, results := split[int](drain(p.Start()))
	_, ok = p.Refresh()
	assert.False(t, ok, "refused while the start fetch is in flight")
	require.True(t, p.Accept(results[0]))

	cmd, ok := p.Refresh()
	require.True(t, ok)
	_, results = split[int](drain(cmd))
	require.Len(t, results, 1)
	assert.True(t, results[0].Manual)
	require.True(t, p.Accept(results[0]))

	clock.advance(time.Second)
	_, ok = p.Refresh()
	assert.False(t, ok, "within the cooldown")

	clock.advance(time.Second)
	_, ok = p.Refresh()
	assert.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPoller_FailureKeepsPolling(t *testing.T) {
	fail := true
	p := newTestPoller(func(ctx context.Context) (int, error) {
		if fail {
			return 0, errors.New(errors.ErrSlurm, "squeue failed (rc=1)", "")
		}
		return 7, nil
	})

	ticks, results := split[int](drain(p.Start()))
	require.True(t, p.Accept(results[0]))
	assert.Error(t, results[0].Err)
	assert.Equal(t, 1, p.Failures())
	assert.True(t, p.Live())

	fail = false
	ticks, results = split[int](drain(p.HandleTick(ticks[0])))
	require.Len(t, results, 1)
	require.Len(t, ticks, 1)
	require.True(t, p.Accept(results[0]))
	assert.NoError(t, p.LastError())
	assert.Equal(t, 0, p.Failures())
	assert.Equal(t, 7, results[0].Value)
	assert.False(t, p.LastSuccess().IsZero())
}

func TestPoller_Timeout(t *testing.T) {
	tests := []struct {
		name  string
		fetch FetchFunc[int]
	}{
		{"honors context", func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}},
		{"ignores context", func(ctx context.Context) (int, error) {
			time.Sleep(time.Second)
			return 1, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPoller(tt.fetch, WithTimeout(20*time.Millisecond))

			start := time.Now()
			_, results := split[int](drain(p.fetchCmd(p.Generation(), false)))
			require.Len(t, results, 1)
			assert.Less(t, time.Since(start), 900*time.Millisecond)
			assert.True(t, errors.IsTimeout(results[0].Err))
			assert.Contains(t, results[0].Err.Error(), "queue did not respond within 20ms")
			assert.Equal(t, 0, results[0].Value)
		})
	}
}

func TestPoller_GenericPayload(t *testing.T) {
	p := New("names", time.Millisecond, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	}, WithLogger(logger.Noop()))

	_, results := split[[]string](drain(p.Start()))
	require.Len(t, results, 1)
	require.True(t, p.Accept(results[0]))
	assert.Equal(t, []string{"a", "b"}, results[0].Value)
}

func TestPoller_Reconfigure(t *testing.T) {
	_, fetch := counter()
	p := newTestPoller(fetch, WithTimeout(time.Second))

	p.SetInterval(5 * time.Millisecond)
	p.SetTimeout(0)
	p.SetFetch(func(ctx context.Context) (int, error) { return 42, nil })
	assert.Equal(t, 5*time.Millisecond, p.Interval())
	assert.Equal(t, time.Second, p.timeout, "non-positive timeout ignored")

	_, results := split[int](drain(p.Start()))
	require.Len(t, results, 1)
	require.True(t, p.Accept(results[0]))
	assert.Equal(t, 42, results[0].Value)

	p.SetTimeout(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, p.timeout)
}
