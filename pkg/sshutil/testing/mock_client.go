// Package testing provides an in-memory SSHClient for tests.
package testing

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/slurmterm/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
	// Delay blocks Exec before answering, for timeout tests.
	Delay time.Duration
}

// MockClient answers commands from a table of canned responses and records
// every command it receives.
type MockClient struct {
	mu       sync.Mutex
	host     string
	closed   bool
	patterns []string
	commands map[string]CommandResponse
	received []string
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a mock client for host.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		commands: make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a response for commands equal to pattern or
// matching it as a regular expression. Patterns are tried in the order
// they were registered.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commands[pattern]; !ok {
		m.patterns = append(m.patterns, pattern)
	}
	m.commands[pattern] = resp
}

// Exec returns the registered response, or exit 127 for unknown commands.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("connection closed")
	}
	m.received = append(m.received, cmd)
	resp, ok := m.lookup(cmd)
	m.mu.Unlock()

	if !ok {
		return nil, []byte("command not found"), 127, nil
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

func (m *MockClient) lookup(cmd string) (CommandResponse, bool) {
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	for _, pattern := range m.patterns {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return m.commands[pattern], true
		}
	}
	return CommandResponse{}, false
}

// Commands returns every command received so far.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	copy(out, m.received)
	return out
}

// Close marks the client closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host the mock was created for.
func (m *MockClient) GetHost() string {
	return m.host
}
