package sshutil

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection to a cluster login node.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// Dial connects to host, which may be an ~/.ssh/config alias, a hostname,
// user@hostname, or hostname:port. Host keys are checked against
// ~/.ssh/known_hosts; unknown hosts are refused.
func Dial(host string, timeout time.Duration) (*Client, error) {
	settings := resolveSettings(host)

	config, err := clientConfig(settings, timeout)
	if err != nil {
		return nil, err
	}

	address := settings.address()
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			"Make sure the login node is reachable: ssh "+host)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' failed", host),
			"Check that 'ssh "+host+"' works without a password prompt")
	}

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

type settings struct {
	hostname string
	port     string
	user     string
	identity string
}

func (s *settings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSettings applies user@host:port parsing, then ~/.ssh/config.
func resolveSettings(host string) *settings {
	s := &settings{port: "22", user: os.Getenv("USER")}
	explicitUser := false

	if at := strings.Index(host, "@"); at != -1 {
		s.user = host[:at]
		host = host[at+1:]
		explicitUser = true
	}
	if colon := strings.LastIndex(host, ":"); colon != -1 && isDigits(host[colon+1:]) {
		s.port = host[colon+1:]
		host = host[:colon]
	}
	s.hostname = host

	f, err := os.Open(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return s
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return s
	}
	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.hostname = v
	}
	if v, _ := cfg.Get(host, "Port"); v != "" {
		s.port = v
	}
	if v, _ := cfg.Get(host, "User"); v != "" && !explicitUser {
		s.user = v
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.identity = expandHome(v)
	}
	return s
}

func clientConfig(s *settings, timeout time.Duration) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if a := agentAuth(); a != nil {
		auth = append(auth, a)
	}

	keys := []string{s.identity,
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if m, err := keyAuth(k); err == nil {
			auth = append(auth, m)
		}
	}

	if len(auth) == 0 {
		return nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Load a key into your agent: ssh-add")
	}

	callback, err := knownhosts.New(filepath.Join(homeDir(), ".ssh", "known_hosts"))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Couldn't read ~/.ssh/known_hosts",
			"Connect once with plain ssh to record the login node's host key")
	}

	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         timeout,
	}, nil
}

var (
	agentOnce   sync.Once
	agentClient agent.ExtendedAgent
)

func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	agentOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentClient = agent.NewClient(conn)
	})
	if agentClient == nil {
		return nil
	}
	if signers, err := agentClient.Signers(); err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

func keyAuth(path string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
