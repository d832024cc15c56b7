package logger

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuffer(t *testing.T, flag int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := *std.Config
	SetConfig(&LoggerConfig{Flag: flag, Outputs: []io.Writer{&buf}, ErrOutput: &buf})
	t.Cleanup(func() { SetConfig(&prev) })
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := withBuffer(t, FLAG_INFO)

	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	Info("round %d started", 3)
	assert.Contains(t, buf.String(), "[INFO]")
	assert.Contains(t, buf.String(), "round 3 started")
}

func TestIdentifierPrefix(t *testing.T) {
	buf := withBuffer(t, FLAG_DEBUG)
	SetIdentifier("node-2")

	Warn("peer unreachable")
	assert.Contains(t, buf.String(), "[node-2] peer unreachable")
}

func TestErrorGoesToErrOutput(t *testing.T) {
	buf := withBuffer(t, FLAG_ERROR)

	Info("quiet")
	Error("boom: %v", "disk")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "boom: disk")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, FLAG_DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, FLAG_INFO, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
