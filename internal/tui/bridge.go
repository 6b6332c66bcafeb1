package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/slurmterm/internal/tail"
)

// Bridge forwards events produced on background goroutines to the Bubble
// Tea program via program.Send(). This is goroutine-safe. Messages sent
// before a program is attached are dropped.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewBridge creates a bridge forwarding to program, which may be nil and
// attached later.
func NewBridge(program *tea.Program) *Bridge {
	b := &Bridge{}
	if program != nil {
		b.Attach(program)
	}
	return b
}

// Attach routes messages to program.
func (b *Bridge) Attach(program *tea.Program) {
	b.AttachFunc(program.Send)
}

// AttachFunc routes messages to send. Tests use it to capture messages.
func (b *Bridge) AttachFunc(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Send forwards msg.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// LogChunk forwards a tailer chunk. It is the tail.Tailer sink.
func (b *Bridge) LogChunk(c tail.Chunk) {
	b.Send(LogChunkMsg{Chunk: c})
}
