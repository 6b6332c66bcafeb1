package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseConfigFile(t *testing.T) {
	path := writeSSHConfigFile(t, `
Host login
    HostName login01.hpc.example.edu
    User alice
    Port 22
    IdentityFile ~/.ssh/id_cluster

Host gpu-login
    HostName gpu.hpc.example.edu
    User alice

Host *
    ServerAliveInterval 60

Host compute-*
    User svc
`)

	hosts, err := ParseConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	assert.Equal(t, "gpu-login", hosts[0].Alias)
	assert.Equal(t, "gpu.hpc.example.edu", hosts[0].Hostname)
	assert.Equal(t, "", hosts[0].Port)

	assert.Equal(t, "login", hosts[1].Alias)
	assert.Equal(t, "login01.hpc.example.edu", hosts[1].Hostname)
	assert.Equal(t, "alice", hosts[1].User)
	assert.Contains(t, hosts[1].IdentityFile, "id_cluster")
	assert.NotContains(t, hosts[1].IdentityFile, "~")
}

func TestParseConfigFile_Edges(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "empty file", content: "", want: nil},
		{name: "comments only", content: "# one\n\n# two\n", want: nil},
		{
			name:    "duplicate aliases",
			content: "Host dup\n    HostName a\n\nHost dup\n    HostName b\n",
			want:    []string{"dup"},
		},
		{
			name:    "several patterns on one line",
			content: "Host n1 n2 n3\n    User svc\n",
			want:    []string{"n1", "n2", "n3"},
		},
		{
			name:    "match block skipped",
			content: "Host before\n    HostName b.example.edu\n\nMatch host *.example.edu\n    User m\n\nHost after\n    HostName a.example.edu\n",
			want:    []string{"after", "before"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ParseConfigFile(writeSSHConfigFile(t, tt.content))
			require.NoError(t, err)

			var got []string
			for _, h := range hosts {
				got = append(got, h.Alias)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfigFile_Missing(t *testing.T) {
	hosts, err := ParseConfigFile(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestHostEntryDescription(t *testing.T) {
	tests := []struct {
		name  string
		entry HostEntry
		want  string
	}{
		{"full", HostEntry{Alias: "login", Hostname: "10.0.0.5", User: "alice", Port: "2222"}, "10.0.0.5, user: alice, port: 2222"},
		{"default port hidden", HostEntry{Alias: "login", Hostname: "10.0.0.5", Port: "22"}, "10.0.0.5"},
		{"hostname same as alias", HostEntry{Alias: "login", Hostname: "login", User: "alice"}, "user: alice"},
		{"alias only", HostEntry{Alias: "login"}, "login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Description())
		})
	}
}

func TestWithKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	key := filepath.Join(t.TempDir(), "id_test")
	require.NoError(t, os.WriteFile(key, []byte("fake"), 0600))

	hosts := []HostEntry{
		{Alias: "with-key", IdentityFile: key},
		{Alias: "missing-key", IdentityFile: "/nonexistent/key"},
		{Alias: "no-identity"},
	}

	filtered := WithKeys(hosts)
	require.Len(t, filtered, 1)
	assert.Equal(t, "with-key", filtered[0].Alias)
	assert.Empty(t, WithKeys(nil))
}
