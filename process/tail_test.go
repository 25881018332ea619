package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailBufferSplitsLines(t *testing.T) {
	tb := newTailBuffer(10)
	_, err := tb.Write([]byte("line one\nline two\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, tb.lines())
}

func TestTailBufferHoldsPartialLineUntilNewline(t *testing.T) {
	tb := newTailBuffer(10)
	_, _ = tb.Write([]byte("partial"))
	assert.Empty(t, tb.lines())
	_, _ = tb.Write([]byte(" line\n"))
	assert.Equal(t, []string{"partial line"}, tb.lines())
}

func TestTailBufferCapsAtMax(t *testing.T) {
	tb := newTailBuffer(2)
	for i := 0; i < 5; i++ {
		_, _ = tb.Write([]byte("x\n"))
	}
	assert.Len(t, tb.lines(), 2)
}

func TestTailBufferRetainsFullStreamInAll(t *testing.T) {
	tb := newTailBuffer(1)
	_, _ = tb.Write([]byte("a\n"))
	_, _ = tb.Write([]byte("b\n"))
	assert.Equal(t, "a\nb\n", tb.String())
	assert.Equal(t, 4, tb.Len())
}

func TestTailBufferWatchFiresPerCompleteLine(t *testing.T) {
	tb := newTailBuffer(10)
	var seen []string
	tb.watch(func(line string) { seen = append(seen, line) })

	_, _ = tb.Write([]byte("one\ntwo\nthr"))
	assert.Equal(t, []string{"one", "two"}, seen)

	_, _ = tb.Write([]byte("ee\n"))
	assert.Equal(t, []string{"one", "two", "three"}, seen)
}
