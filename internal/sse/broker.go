// Package sse fans live feed events out to connected admin browsers. Events travel
// through Redis pub/sub so every server instance sees every event.
package sse

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/songon-extension/access-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	// TopicAdmin carries access log and code request events for the back office.
	TopicAdmin = "admin"

	EventAccessLog   = "access_log"
	EventCodeRequest = "code_request"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals data into an Event of the given type.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: raw}, nil
}

// Transport is the pub/sub backbone, implemented by *redis.Client.
type Transport interface {
	PublishPayload(ctx context.Context, channel string, payload []byte) error
	SubscribePayloads(ctx context.Context, channel string) (<-chan []byte, io.Closer)
}

type Client struct {
	Topic  string
	Events chan Event
	Done   chan struct{}
}

type Broker struct {
	transport Transport
	clients   map[string]map[*Client]bool // topic -> set of clients
	closers   map[string]io.Closer
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewBroker(transport Transport) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		transport: transport,
		clients:   make(map[string]map[*Client]bool),
		closers:   make(map[string]io.Closer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (b *Broker) Subscribe(topic string) *Client {
	client := &Client{
		Topic:  topic,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[topic] == nil {
		b.clients[topic] = make(map[*Client]bool)
		payloads, closer := b.transport.SubscribePayloads(b.ctx, redisclient.EventChannel(topic))
		b.closers[topic] = closer
		go b.consume(topic, payloads)
	}
	b.clients[topic][client] = true
	clientCount := len(b.clients[topic])
	b.mu.Unlock()

	log.Info().
		Str("topic", topic).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[client.Topic]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Done)

	if len(clients) == 0 {
		delete(b.clients, client.Topic)
		if closer := b.closers[client.Topic]; closer != nil {
			_ = closer.Close()
		}
		delete(b.closers, client.Topic)
	}

	log.Info().
		Str("topic", client.Topic).
		Int("clientCount", len(clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.transport.PublishPayload(ctx, redisclient.EventChannel(topic), data)
}

func (b *Broker) consume(topic string, payloads <-chan []byte) {
	log.Debug().
		Str("topic", topic).
		Str("channel", redisclient.EventChannel(topic)).
		Msg("pubsub subscribed")

	for {
		select {
		case <-b.ctx.Done():
			return

		case payload, ok := <-payloads:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal(payload, &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(topic, event)
		}
	}
}

func (b *Broker) broadcast(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[topic] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("topic", topic).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
		if closer := b.closers[topic]; closer != nil {
			_ = closer.Close()
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.closers = make(map[string]io.Closer)
}

func (b *Broker) ClientCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[topic])
}
