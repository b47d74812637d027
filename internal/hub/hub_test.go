package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tramboard/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func encodeTab(state domain.BoardState, tab domain.Direction) ([]byte, error) {
	return []byte(string(tab) + ":" + string(state.Status)), nil
}

func startHub(h *Hub) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return ""
	}
}

func TestHub(t *testing.T) {
	t.Run("should render each client's tab", func(t *testing.T) {
		defer leaktest.Check(t)()

		h := NewHub(encodeTab, discard)
		stop := startHub(h)
		defer stop()

		a := NewClient("a", 4)
		b := NewClient("b", 4)
		h.Register(a)
		h.Register(b)
		h.Subscribe(b, domain.DirectionSecondary)
		require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

		h.Broadcast(domain.BoardState{Status: domain.StatusReady})

		assert.Equal(t, "primary:ready", receive(t, a))
		assert.Equal(t, "secondary:ready", receive(t, b))
	})

	t.Run("should close the send channel on unregister", func(t *testing.T) {
		defer leaktest.Check(t)()

		h := NewHub(encodeTab, discard)
		stop := startHub(h)
		defer stop()

		c := NewClient("c", 1)
		h.Register(c)
		require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

		h.Unregister(c)
		require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
		_, ok := <-c.Send
		assert.False(t, ok)
	})

	t.Run("should skip clients when encoding fails", func(t *testing.T) {
		defer leaktest.Check(t)()

		h := NewHub(func(domain.BoardState, domain.Direction) ([]byte, error) {
			return nil, errors.New("boom")
		}, discard)
		stop := startHub(h)
		defer stop()

		c := NewClient("c", 1)
		h.Register(c)
		require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

		h.Broadcast(domain.BoardState{Status: domain.StatusReady})
		select {
		case <-c.Send:
			t.Fatal("unexpected message")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("should close clients when stopped", func(t *testing.T) {
		defer leaktest.Check(t)()

		h := NewHub(encodeTab, discard)
		stop := startHub(h)

		c := NewClient("c", 1)
		h.Register(c)
		require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
		stop()

		_, ok := <-c.Send
		assert.False(t, ok)

		late := NewClient("late", 1)
		h.Register(late)
		_, ok = <-late.Send
		assert.False(t, ok)
		h.Unregister(late)
	})

	t.Run("should not block a slow client", func(t *testing.T) {
		defer leaktest.Check(t)()

		h := NewHub(encodeTab, discard)
		stop := startHub(h)
		defer stop()

		c := NewClient("c", 1)
		h.Register(c)
		require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

		for n := 0; n < 5; n++ {
			h.Broadcast(domain.BoardState{Status: domain.StatusLoading})
		}
		assert.Equal(t, "primary:loading", receive(t, c))
	})

	t.Run("should deliver to a single client until it is closed", func(t *testing.T) {
		defer leaktest.Check(t)()

		h := NewHub(encodeTab, discard)
		stop := startHub(h)

		c := NewClient("c", 1)
		h.Register(c)
		require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
		assert.True(t, h.Deliver(c, []byte("hello")))
		assert.False(t, h.Deliver(c, []byte("full")))
		assert.Equal(t, "hello", receive(t, c))

		stop()
		assert.False(t, h.Deliver(c, []byte("late")))
	})
}
