package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const steve = "11111111-1111-1111-1111-111111111111"

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "docket.yaml")
	body := "storage:\n  backend: flat\n  directory: " + filepath.Join(dir, "data") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"docket", "--config", cfg, "--log-level", "error"}, args...))
	return out.String(), err
}

func TestBalanceCommands(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "get-balance", steve)
	require.NoError(t, err)
	assert.Equal(t, steve+" 0\n", out)

	out, err = run(t, cfg, "set-balance", steve, "12.50")
	require.NoError(t, err)
	assert.Equal(t, steve+" 12.5\n", out)

	out, err = run(t, cfg, "deposit", "--", steve, "-2.5")
	require.NoError(t, err)
	assert.Equal(t, steve+" 10\n", out)

	out, err = run(t, cfg, "get-balance", steve)
	require.NoError(t, err)
	assert.Equal(t, steve+" 10\n", out)

	_, err = run(t, cfg, "set-balance", "--", steve, "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestListAndDelete(t *testing.T) {
	cfg := writeConfig(t)
	alex := "22222222-2222-2222-2222-222222222222"

	_, err := run(t, cfg, "set-balance", steve, "5")
	require.NoError(t, err)
	_, err = run(t, cfg, "get-balance", alex)
	require.NoError(t, err)

	out, err := run(t, cfg, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{steve, alex}, strings.Fields(out))

	out, err = run(t, cfg, "list", "--balances", "1111")
	require.NoError(t, err)
	assert.Equal(t, steve+" 5\n", out)

	_, err = run(t, cfg, "delete", steve)
	require.NoError(t, err)

	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Equal(t, alex+"\n", out)
}

func TestShowcaseCommand(t *testing.T) {
	out, err := run(t, writeConfig(t), "showcase")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Laptop: Apple MacBook Pro"))
	assert.True(t, strings.HasPrefix(lines[1], "Server: Dell PowerEdge R750"))
	assert.Equal(t, "Dog: Rex says Woof", lines[2])
}

func TestArgumentErrors(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing uuid", []string{"get-balance"}, "uuid is required"},
		{"bad uuid", []string{"get-balance", "steve"}, "invalid player uuid"},
		{"missing amount", []string{"set-balance", steve}, "amount is required"},
		{"bad amount", []string{"set-balance", steve, "lots"}, "invalid amount"},
		{"bad retries", []string{"--max-retries", "0", "get-balance", steve}, "max-retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, cfg, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: REDIS\n"), 0o600))

	_, err := run(t, path, "get-balance", steve)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.uri is required")
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	app := newApp()
	app.ErrWriter = io.Discard
	err := app.Run([]string{"docket", "--log-level", "loud", "list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
