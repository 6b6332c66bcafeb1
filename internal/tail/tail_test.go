package tail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/logger"
)

// collector records every chunk the tailer hands over.
type collector struct {
	mu     sync.Mutex
	chunks []Chunk
}

func (c *collector) sink(ch Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, ch)
}

func (c *collector) all() []Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Chunk(nil), c.chunks...)
}

func (c *collector) text(gen uint64) string {
	var b strings.Builder
	for _, ch := range c.all() {
		if ch.Gen == gen {
			b.WriteString(ch.Text)
		}
	}
	return b.String()
}

// gate is a Sleeper the test steps by hand.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) sleep(ctx context.Context, _ time.Duration) bool {
	g.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return false
	case <-g.release:
		return true
	}
}

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("reader never reached end of file")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newTailer(c *collector, opts ...Option) *Tailer {
	return New(c.sink, append([]Option{WithLogger(logger.Noop())}, opts...)...)
}

func TestTailer_InitialReadAndFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.out")
	writeFile(t, path, "line one\nline two\n")

	c := &collector{}
	g := newGate()
	tl := newTailer(c, WithSleeper(g.sleep))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); tl.Wait() }()

	gen := tl.Start(ctx, path)
	g.waitEntered(t)

	chunks := c.all()
	require.Len(t, chunks, 1, "initial content arrives as one chunk")
	assert.Equal(t, "line one\nline two\n", chunks[0].Text)
	assert.Equal(t, gen, chunks[0].Gen)
	assert.True(t, tl.Accept(chunks[0]))

	appendFile(t, path, "line three\n")
	g.release <- struct{}{}
	g.waitEntered(t)

	assert.Equal(t, "line one\nline two\nline three\n", c.text(gen))
}

func TestTailer_EmptyFileEmitsNothingUntilGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.out")
	writeFile(t, path, "")

	c := &collector{}
	g := newGate()
	tl := newTailer(c, WithSleeper(g.sleep))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); tl.Wait() }()

	gen := tl.Start(ctx, path)
	g.waitEntered(t)
	assert.Empty(t, c.all())

	appendFile(t, path, "partial")
	g.release <- struct{}{}
	g.waitEntered(t)
	assert.Equal(t, "partial", c.text(gen))
}

func TestTailer_LargeFileSkipsToTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.out")
	writeFile(t, path, "aaaaaaaaaa\nbbbbbbbbbb\ncccccccccc\n")

	c := &collector{}
	g := newGate()
	tl := newTailer(c, WithSleeper(g.sleep), WithMaxInitial(15))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); tl.Wait() }()

	tl.Start(ctx, path)
	g.waitEntered(t)

	chunks := c.all()
	require.Len(t, chunks, 2)
	assert.Equal(t, int64(18), chunks[0].Skipped)
	assert.Equal(t, "… (skipped 18 bytes)\n", chunks[0].Text)
	assert.Equal(t, "cccccccccc\n", chunks[1].Text, "the partial line at the seek offset is dropped")
}

func TestTailer_LargeFileWithoutNewlineInTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.out")
	writeFile(t, path, "head\n"+strings.Repeat("x", 40))

	c := &collector{}
	g := newGate()
	tl := newTailer(c, WithSleeper(g.sleep), WithMaxInitial(15))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); tl.Wait() }()

	gen := tl.Start(ctx, path)
	g.waitEntered(t)

	chunks := c.all()
	require.Len(t, chunks, 1, "only the marker is sent when the tail has no line break")
	assert.Equal(t, int64(30), chunks[0].Skipped)
	assert.Equal(t, "… (skipped 30 bytes)\n", chunks[0].Text)

	appendFile(t, path, "\ndone\n")
	g.release <- struct{}{}
	g.waitEntered(t)
	assert.Equal(t, "… (skipped 30 bytes)\n\ndone\n", c.text(gen))
}

func TestTailer_Errors(t *testing.T) {
	dir := t.TempDir()

	binary := filepath.Join(dir, "core.png")
	require.NoError(t, os.WriteFile(binary, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}, 0o644))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(dir, "nope.out"), "File not found: " + filepath.Join(dir, "nope.out")},
		{"binary", binary, "Not a text log: " + binary + " (image/png)"},
		{"directory", dir, "Not a text log: " + dir + " (directory)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{}
			tl := newTailer(c)
			tl.Start(context.Background(), tt.path)
			tl.Wait()

			chunks := c.all()
			require.Len(t, chunks, 1)
			assert.True(t, chunks[0].Err)
			assert.Equal(t, tt.want, chunks[0].Text)
		})
	}
}

func TestTailer_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file modes")
	}
	path := filepath.Join(t.TempDir(), "secret.out")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o000))

	c := &collector{}
	tl := newTailer(c)
	tl.Start(context.Background(), path)
	tl.Wait()

	chunks := c.all()
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Err)
	assert.Equal(t, "Permission denied: "+path, chunks[0].Text)
}

func TestTailer_GenerationFencing(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.out")
	second := filepath.Join(dir, "second.out")
	writeFile(t, first, "first\n")
	writeFile(t, second, "second\n")

	c := &collector{}
	g := newGate()
	tl := newTailer(c, WithSleeper(g.sleep))
	ctx, cancel := context.WithCancel(context.Background())

	oldGen := tl.Start(ctx, first)
	g.waitEntered(t)

	newGen := tl.Start(ctx, second)
	require.Greater(t, newGen, oldGen)
	g.waitEntered(t)

	// The old reader is mid-sleep and has not noticed it was replaced.
	appendFile(t, first, "stale\n")
	appendFile(t, second, "fresh\n")
	g.release <- struct{}{}
	g.release <- struct{}{}
	g.waitEntered(t)

	cancel()
	tl.Wait()

	assert.NotContains(t, c.text(oldGen), "stale", "a retired reader never reads again")

	var applied strings.Builder
	for _, ch := range c.all() {
		if tl.Accept(ch) {
			applied.WriteString(ch.Text)
		}
	}
	assert.Equal(t, "second\nfresh\n", applied.String())
	assert.False(t, tl.Accept(Chunk{Gen: oldGen, Text: "first\n"}))
}

func TestTailer_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.out")
	writeFile(t, path, "hello\n")

	c := &collector{}
	g := newGate()
	tl := newTailer(c, WithSleeper(g.sleep))

	gen := tl.Start(context.Background(), path)
	g.waitEntered(t)
	assert.True(t, tl.Active())

	tl.Stop()
	assert.False(t, tl.Active())
	assert.NotEqual(t, gen, tl.Current())

	appendFile(t, path, "after stop\n")
	g.release <- struct{}{}
	tl.Wait()

	assert.Equal(t, "hello\n", c.text(gen))
	for _, ch := range c.all() {
		assert.False(t, tl.Accept(ch))
	}
}

func TestTailer_ContextCancelEndsReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.out")
	writeFile(t, path, "x\n")

	c := &collector{}
	tl := newTailer(c, WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	tl.Start(ctx, path)

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() { tl.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not exit after cancel")
	}
}

func TestSleepContext(t *testing.T) {
	assert.True(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepContext(ctx, time.Hour))
}
