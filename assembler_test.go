package serial

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func feed(p ReceivePolicy, s string) {
	for i := 0; i < len(s); i++ {
		p.Receive(s[i])
	}
}

func drainQueue(q *MessageQueue) []string {
	var out []string
	for {
		line, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, line)
	}
}

func TestLinePolicy_Terminators(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"carriage return", "ab\r", []string{"ab"}},
		{"newline", "ab\n", []string{"ab"}},
		{"only terminators", "\r\r", nil},
		{"crlf collapses", "a\r\nb\n", []string{"a", "b"}},
		{"no terminator yet", "pending", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewMessageQueue(10)
			p := NewLinePolicy(q, DefaultLineSize)
			feed(p, tc.input)
			require.Equal(t, tc.want, drainQueue(q))
		})
	}
}

func TestLinePolicy_TruncatesLongLine(t *testing.T) {
	q := NewMessageQueue(10)
	p := NewLinePolicy(q, 32)

	feed(p, strings.Repeat("x", 40)+"\n")
	lines := drainQueue(q)
	require.Len(t, lines, 1)
	require.Equal(t, strings.Repeat("x", 31), lines[0])
	require.Equal(t, uint32(1), p.stats.lineTruncated.Load())

	// the buffer is usable again after a truncated line
	feed(p, "ok\n")
	require.Equal(t, []string{"ok"}, drainQueue(q))
	require.Equal(t, uint32(1), p.stats.lineTruncated.Load())
}

func TestLinePolicy_QueueFullDropsLine(t *testing.T) {
	q := NewMessageQueue(2)
	p := NewLinePolicy(q, DefaultLineSize)

	feed(p, "1\n2\n3\n")
	require.Equal(t, []string{"1", "2"}, drainQueue(q))
	require.Equal(t, uint32(2), p.stats.linesDelivered.Load())
	require.Equal(t, uint32(1), p.stats.queueDropped.Load())
}

func TestLinePolicy_IndicatorAndEcho(t *testing.T) {
	q := NewMessageQueue(4)
	var echo bytes.Buffer
	toggles := 0
	p := NewLinePolicy(q, DefaultLineSize).
		WithIndicator(IndicatorFunc(func() { toggles++ })).
		WithEcho(&echo)

	feed(p, "hi\r\r")
	require.Equal(t, []string{"hi"}, drainQueue(q))
	require.Equal(t, 1, toggles)
	require.Equal(t, "hi\r\n", echo.String())
}

func TestEchoPolicy(t *testing.T) {
	var out bytes.Buffer
	toggles := 0
	p := NewEchoPolicy(&out, IndicatorFunc(func() { toggles++ }))

	feed(p, "a\rb")
	require.Equal(t, "a\rb", out.String())
	require.Equal(t, 3, toggles)
}

func TestAssembler_DrainsRing(t *testing.T) {
	rx := NewRingBuffer(16)
	q := NewMessageQueue(4)
	a := NewAssembler(rx, NewLinePolicy(q, DefaultLineSize))

	rx.Put([]byte("one\ntw"))
	require.Equal(t, 6, a.Run())
	require.True(t, rx.IsEmpty())
	require.Equal(t, []string{"one"}, drainQueue(q))

	rx.Put([]byte("o\n"))
	require.Equal(t, 2, a.Run())
	require.Equal(t, []string{"two"}, drainQueue(q))
	require.Equal(t, 0, a.Run())
	require.Equal(t, uint32(3), a.stats.assemblyRuns.Load())
}
