package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LogLevels(t *testing.T) {
	testCases := []struct {
		level         string
		expectedLevel zerolog.Level
		name          string
	}{
		{"debug", zerolog.DebugLevel, "debug"},
		{"info", zerolog.InfoLevel, "info"},
		{"warn", zerolog.WarnLevel, "warn"},
		{"error", zerolog.ErrorLevel, "error"},
		{"bogus", zerolog.InfoLevel, "unknown defaults to info"},
		{"", zerolog.InfoLevel, "empty defaults to info"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(Config{Level: tc.level})
			require.NotNil(t, l)
			assert.Equal(t, tc.expectedLevel, zerolog.GlobalLevel())
		})
	}
}

func TestNew_WritesMessages(t *testing.T) {
	l := New(Config{Level: "info"})

	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Msg("hello bonds")

	assert.Contains(t, buf.String(), "hello bonds")
}

func TestNew_LevelFiltering(t *testing.T) {
	l := New(Config{Level: "error"})

	var buf bytes.Buffer
	l = l.Output(&buf)

	l.Info().Msg("should not appear")
	assert.NotContains(t, buf.String(), "should not appear")

	l.Error().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestComponent_TagsLogLines(t *testing.T) {
	l := New(Config{Level: "info"})

	var buf bytes.Buffer
	l = l.Output(&buf)

	cl := Component(l, "solver")
	cl.Info().Msg("tagged")

	out := buf.String()
	assert.Contains(t, out, `"component":"solver"`)
	assert.Contains(t, out, "tagged")
}

func TestNew_PrettyOutput(t *testing.T) {
	l := New(Config{Level: "info", Pretty: true})

	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
}
