package redis

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// PublishPayload sends raw bytes on a pub/sub channel.
func (c *Client) PublishPayload(ctx context.Context, channel string, payload []byte) error {
	return c.Publish(ctx, channel, payload).Err()
}

// SubscribePayloads streams message payloads of channel until ctx is done or the
// returned closer is closed.
func (c *Client) SubscribePayloads(ctx context.Context, channel string) (<-chan []byte, io.Closer) {
	pubsub := c.Subscribe(ctx, channel)
	out := make(chan []byte)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, pubsub
}

// EventChannel is the pub/sub channel of one live feed topic.
func EventChannel(topic string) string {
	return fmt.Sprintf("songon:events:%s", topic)
}

func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, subject)
}
