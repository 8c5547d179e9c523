package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbosity(t *testing.T) {
	tests := []struct {
		in   string
		want VerbosityLevel
	}{
		{"off", VerbosityOff},
		{"fatal", VerbosityFatal},
		{"ERROR", VerbosityError},
		{"warn", VerbosityWarning},
		{"warning", VerbosityWarning},
		{" info ", VerbosityInfo},
		{"debug", VerbosityDebug},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVerbosity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseVerbosity("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, VerbosityWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[georoute WARNING] warning 3")
	assert.Contains(t, out, "[georoute ERROR] error 4")
}

func TestDebugEmitsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, VerbosityDebug)
	l.Debugf("a")
	l.Infof("b")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestFatalUsesExitHook(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	l := New(&buf, VerbosityError, WithExit(func(c int) { code = c }))

	l.Fatalf("bad config %q", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[georoute FATAL] bad config \"x\"")
}

func TestFatalSilencedWhenOff(t *testing.T) {
	called := false
	l := New(&bytes.Buffer{}, VerbosityOff, WithExit(func(int) { called = true }))
	l.Fatalf("ignored")
	assert.False(t, called)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Infof("nothing")
	l.Errorf("nothing")
	l.Fatalf("nothing")
	assert.False(t, l.Enabled(VerbosityError))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailureDoesNotPanic(t *testing.T) {
	l := New(failingWriter{}, VerbosityDebug)
	assert.NotPanics(t, func() { l.Errorf("still fine") })
}

func TestSlogAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, VerbosityInfo)
	l.Slog().With("stream", 3).Info("launched", "blocks", 4)
	assert.Contains(t, buf.String(), "launched stream=3 blocks=4")
}
