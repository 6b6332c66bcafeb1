// Package tail streams a growing log file to the dashboard.
//
// Each Start bumps a generation counter and launches a reader goroutine
// tagged with it. Readers poll for growth instead of blocking, check the
// generation between reads and quietly exit once superseded. Chunks still
// in flight carry their generation so the consumer can drop stale ones
// with Accept.
package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/h2non/filetype"

	"github.com/rileyhilliard/slurmterm/internal/logger"
)

const (
	// DefaultMaxInitial bounds the first read of a large file.
	DefaultMaxInitial int64 = 1024 * 1024
	// DefaultInterval is the pause between reads at end of file.
	DefaultInterval = 500 * time.Millisecond

	// headerSize is enough for filetype to recognize every format it knows.
	headerSize = 262
)

// Chunk is text read by one tailer generation.
type Chunk struct {
	Gen  uint64
	Path string
	Text string
	// Err marks a terminal error message; the tailer has stopped.
	Err bool
	// Skipped is non-zero on the marker emitted when the start of a large
	// file was not read.
	Skipped int64
}

// Sleeper waits d and reports false when ctx ended first.
type Sleeper func(ctx context.Context, d time.Duration) bool

// Tailer follows one file at a time.
type Tailer struct {
	gen    atomic.Uint64
	active atomic.Bool
	wg     sync.WaitGroup

	sink       func(Chunk)
	interval   time.Duration
	maxInitial int64
	sleep      Sleeper
	log        logger.Logger
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithInterval sets the pause between reads at end of file.
func WithInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithMaxInitial sets how many trailing bytes of a large file are read
// on start.
func WithMaxInitial(n int64) Option {
	return func(t *Tailer) {
		if n > 0 {
			t.maxInitial = n
		}
	}
}

// WithSleeper replaces the end-of-file wait.
func WithSleeper(s Sleeper) Option {
	return func(t *Tailer) {
		if s != nil {
			t.sleep = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tailer) {
		t.log = l
	}
}

// New returns an idle tailer. sink is called from reader goroutines and
// must be safe for concurrent use.
func New(sink func(Chunk), opts ...Option) *Tailer {
	t := &Tailer{
		sink:       sink,
		interval:   DefaultInterval,
		maxInitial: DefaultMaxInitial,
		sleep:      sleepContext,
		log:        logger.NewEnvLogger("[tail]"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins tailing path and returns the new generation. Any previous
// reader is retired.
func (t *Tailer) Start(ctx context.Context, path string) uint64 {
	gen := t.gen.Add(1)
	t.active.Store(true)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(ctx, path, gen)
	}()
	t.log.Debug("gen %d: tailing %s", gen, path)
	return gen
}

// Stop retires the current reader.
func (t *Tailer) Stop() {
	t.active.Store(false)
	t.gen.Add(1)
}

// Current returns the live generation.
func (t *Tailer) Current() uint64 {
	return t.gen.Load()
}

// Active reports whether a reader is expected to be running.
func (t *Tailer) Active() bool {
	return t.active.Load()
}

// Accept reports whether c came from the current reader.
func (t *Tailer) Accept(c Chunk) bool {
	return t.active.Load() && c.Gen == t.gen.Load()
}

// Wait blocks until every reader goroutine has returned.
func (t *Tailer) Wait() {
	t.wg.Wait()
}

func (t *Tailer) live(ctx context.Context, gen uint64) bool {
	return ctx.Err() == nil && t.active.Load() && t.gen.Load() == gen
}

func (t *Tailer) emit(gen uint64, path, text string) {
	t.sink(Chunk{Gen: gen, Path: path, Text: text})
}

func (t *Tailer) fail(gen uint64, path, text string) {
	t.log.Debug("gen %d: %s", gen, text)
	t.sink(Chunk{Gen: gen, Path: path, Text: text, Err: true})
}

func (t *Tailer) run(ctx context.Context, path string, gen uint64) {
	f, err := os.Open(path)
	if err != nil {
		t.fail(gen, path, openError(path, err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.fail(gen, path, openError(path, err))
		return
	}
	if info.IsDir() {
		t.fail(gen, path, fmt.Sprintf("Not a text log: %s (directory)", path))
		return
	}
	if mime, binary := sniff(f); binary {
		t.fail(gen, path, fmt.Sprintf("Not a text log: %s (%s)", path, mime))
		return
	}

	reader := bufio.NewReader(f)
	if size := info.Size(); size > t.maxInitial {
		skipped := size - t.maxInitial
		if _, err := f.Seek(skipped, io.SeekStart); err == nil {
			reader.Reset(f)
			// The seek most likely landed mid-line. When the tail holds no
			// newline at all the discard reaches EOF and only the marker goes out.
			_, _ = reader.ReadString('\n')
			if t.live(ctx, gen) {
				t.sink(Chunk{
					Gen:     gen,
					Path:    path,
					Text:    fmt.Sprintf("… (skipped %d bytes)\n", skipped),
					Skipped: skipped,
				})
			}
		}
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		t.fail(gen, path, "Log file became inaccessible")
		return
	}
	if len(content) > 0 && t.live(ctx, gen) {
		t.emit(gen, path, string(content))
	}

	for t.live(ctx, gen) {
		line, err := reader.ReadString('\n')
		if line != "" {
			t.emit(gen, path, line)
		}
		switch {
		case err == nil:
			continue
		case err != io.EOF:
			t.fail(gen, path, "Log file became inaccessible")
			return
		}
		if !t.sleep(ctx, t.interval) {
			return
		}
	}
	t.log.Debug("gen %d: retired", gen)
}

func openError(path string, err error) string {
	switch {
	case os.IsNotExist(err):
		return "File not found: " + path
	case os.IsPermission(err):
		return "Permission denied: " + path
	default:
		return fmt.Sprintf("Cannot read %s: %v", path, err)
	}
}

// sniff reports whether the file starts with a known binary signature.
// The read position is left unchanged.
func sniff(f *os.File) (string, bool) {
	head := make([]byte, headerSize)
	n, _ := f.ReadAt(head, 0)
	if n == 0 {
		return "", false
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "", false
	}
	return kind.MIME.Value, true
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
