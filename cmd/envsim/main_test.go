package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmenv/contractenv/examples/counter"
	"github.com/wasmenv/contractenv/types"
)

func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append([]string{"--home", home, "--log-level", "warn"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, args...)
	require.NoError(t, err, out)
	return out
}

// field returns the value following label in the output of a command.
func field(t *testing.T, out, label string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, label+" "); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("no %q in output %q", label, out)
	return ""
}

func TestCounterSession(t *testing.T) {
	home := t.TempDir()

	out := mustRun(t, home, "fund", "alice", "1000")
	assert.Contains(t, out, types.AccountIDFromName("alice").String())

	a := field(t, mustRun(t, home, "deploy", "--initial", "5", "--value", "10"), "address")
	b := field(t, mustRun(t, home, "deploy", "--initial", "100"), "address")

	out = mustRun(t, home, "call", a, "--selector", "inc", "--arg", "3")
	assert.Equal(t, "8", field(t, out, "output"))
	assert.Contains(t, out, "event from "+a)

	out = mustRun(t, home, "call", a, "--selector", "add_to", "--arg", b, "--arg", "2")
	assert.Equal(t, "102", field(t, out, "output"))

	sel := counter.SelectorGet
	out = mustRun(t, home, "call", b, "--selector", sel.String())
	assert.Equal(t, "102", field(t, out, "output"))

	out = mustRun(t, home, "accounts")
	assert.Contains(t, out, types.AccountIDFromName("alice").String()+" 990 user")
	assert.Contains(t, out, a+" 10 contract counter")

	out = mustRun(t, home, "advance", "--blocks", "3")
	assert.Equal(t, "4", field(t, out, "block_number"))
	out = mustRun(t, home, "props")
	assert.Equal(t, "4", field(t, out, "block_number"))
	assert.Equal(t, "2", field(t, out, "nonce"))
}

func TestCallErrors(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "fund", "alice", "10")
	addr := field(t, mustRun(t, home, "deploy"), "address")

	_, err := run(t, home, "call", addr, "--selector", "reset")
	require.ErrorIs(t, err, types.ErrInvalidArguments)

	_, err = run(t, home, "call", "nobody", "--selector", "get")
	require.ErrorIs(t, err, types.ErrInvalidAddress)

	_, err = run(t, home, "call", addr, "--selector", "inc", "--arg", "three")
	require.ErrorContains(t, err, "neither an account nor a number")

	_, err = run(t, home, "call", addr)
	require.Error(t, err)

	_, err = run(t, home, "deploy", "--value", "11")
	require.ErrorIs(t, err, types.ErrInsufficientEndowment)

	// the database is released after a failed command
	mustRun(t, home, "props")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "envsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: goleveldb
  dir: `+filepath.Join(dir, "db")+`
  name: custom
log:
  level: error
`), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "fund", "bob", "7"})
	require.NoError(t, cmd.Execute())
	assert.DirExists(t, filepath.Join(dir, "db", "custom.db"))

	cmd = newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "props"})
	require.Error(t, cmd.Execute())
}

func TestParseArg(t *testing.T) {
	v, err := parseArg("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	v, err = parseArg("@bob")
	require.NoError(t, err)
	assert.Equal(t, types.AccountIDFromName("bob"), v)

	id := types.AccountIDFromName("carol")
	v, err = parseArg("0x" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, v)

	_, err = parseArg("0x12")
	require.Error(t, err)

	sel, err := parseSelector("0xaabbccdd")
	require.NoError(t, err)
	assert.Equal(t, types.Selector{0xaa, 0xbb, 0xcc, 0xdd}, sel)
	_, err = parseSelector("0xaabb")
	require.Error(t, err)

	assert.Equal(t, "(none)", formatOutput(nil))
	assert.Equal(t, "0xa3616263", formatOutput([]byte{0xa3, 'a', 'b', 'c'}))
}
