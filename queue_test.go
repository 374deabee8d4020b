package serial

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageQueue_OverflowDropsNewest(t *testing.T) {
	const depth = 10
	q := NewMessageQueue(depth)

	for i := 0; i < depth; i++ {
		require.True(t, q.Push(fmt.Sprintf("m%d", i)))
	}
	require.False(t, q.Push("overflow"))
	require.Equal(t, depth, q.Len())

	for i := 0; i < depth; i++ {
		line, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("m%d", i), line)
	}
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestMessageQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewMessageQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan string, 1)
	go func() {
		line, err := q.Pop(ctx)
		if err == nil {
			got <- line
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, q.Push("late"))

	select {
	case line := <-got:
		require.Equal(t, "late", line)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Pop")
	}
}

func TestMessageQueue_PopRespectsContext(t *testing.T) {
	q := NewMessageQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
