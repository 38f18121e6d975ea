package sse

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTransport is an in-process pub/sub standing in for Redis.
type memTransport struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemTransport() *memTransport {
	return &memTransport{subs: make(map[string][]chan []byte)}
}

func (m *memTransport) PublishPayload(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs[channel] {
		ch <- payload
	}
	return nil
}

func (m *memTransport) SubscribePayloads(ctx context.Context, channel string) (<-chan []byte, io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []byte, 10)
	m.subs[channel] = append(m.subs[channel], ch)
	return ch, io.NopCloser(nil)
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBroker_PublishReachesSubscribers(t *testing.T) {
	b := NewBroker(newMemTransport())
	defer b.Close()

	c1 := b.Subscribe(TopicAdmin)
	c2 := b.Subscribe(TopicAdmin)
	assert.Equal(t, 2, b.ClientCount(TopicAdmin))

	ev, err := NewEvent(EventAccessLog, map[string]string{"parcelle_id": "P1"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), TopicAdmin, ev))

	got1 := receive(t, c1)
	got2 := receive(t, c2)
	assert.Equal(t, EventAccessLog, got1.Type)
	assert.JSONEq(t, `{"parcelle_id":"P1"}`, string(got2.Data))
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(newMemTransport())
	defer b.Close()

	c := b.Subscribe(TopicAdmin)
	b.Unsubscribe(c)
	b.Unsubscribe(c)

	assert.Equal(t, 0, b.ClientCount(TopicAdmin))
	select {
	case <-c.Done:
	default:
		t.Fatal("Done should be closed")
	}
}

func TestBroker_CloseReleasesClients(t *testing.T) {
	b := NewBroker(newMemTransport())
	c := b.Subscribe(TopicAdmin)

	b.Close()

	select {
	case <-c.Done:
	default:
		t.Fatal("Done should be closed")
	}
	b.Unsubscribe(c)
	assert.Equal(t, 0, b.ClientCount(TopicAdmin))
}
