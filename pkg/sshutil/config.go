package sshutil

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostEntry is one concrete Host alias from an SSH config file.
type HostEntry struct {
	Alias        string
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

// Description summarises where the alias points, for pickers.
func (h HostEntry) Description() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// HasKey reports whether the entry's IdentityFile or one of the default
// keys in ~/.ssh exists.
func (h HostEntry) HasKey() bool {
	candidates := []string{h.IdentityFile,
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// KnownHosts parses ~/.ssh/config. A missing file yields no hosts.
func KnownHosts() ([]HostEntry, error) {
	return ParseConfigFile(filepath.Join(homeDir(), ".ssh", "config"))
}

// ParseConfigFile returns the concrete aliases in path sorted by name.
// Wildcard patterns and negations are skipped.
func ParseConfigFile(path string) ([]HostEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(stripMatchBlocks(data)))
	if err != nil {
		return nil, err
	}

	var hosts []HostEntry
	seen := make(map[string]bool)
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true

			entry := HostEntry{Alias: alias}
			entry.Hostname, _ = cfg.Get(alias, "HostName")
			entry.User, _ = cfg.Get(alias, "User")
			entry.Port, _ = cfg.Get(alias, "Port")
			if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
				entry.IdentityFile = expandHome(identity)
			}
			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})
	return hosts, nil
}

// WithKeys keeps the hosts that have a usable key.
func WithKeys(hosts []HostEntry) []HostEntry {
	var out []HostEntry
	for _, h := range hosts {
		if h.HasKey() {
			out = append(out, h)
		}
	}
	return out
}

// stripMatchBlocks drops Match sections, which ssh_config cannot decode.
// A Match section runs until the next Host line.
func stripMatchBlocks(data []byte) []byte {
	var out bytes.Buffer
	inMatch := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) > 0 {
			switch strings.ToLower(fields[0]) {
			case "match":
				inMatch = true
			case "host":
				inMatch = false
			}
		}
		if inMatch {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}
