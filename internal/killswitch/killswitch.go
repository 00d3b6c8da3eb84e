// Package killswitch fans a kill-switch activation out to every Engine
// instance sharing a deployment via Redis pub/sub, so an operator's
// ActivateKillSwitch call reaches processes beyond the one that received
// the RPC.
package killswitch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice is the payload broadcast on activation.
type Notice struct {
	Reason      string    `json:"reason"`
	InitiatedBy string    `json:"initiated_by"`
	At          time.Time `json:"at"`
}

// Broadcaster publishes kill-switch activations to a Redis channel.
type Broadcaster struct {
	client  *redis.Client
	channel string
}

func NewBroadcaster(client *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{client: client, channel: channel}
}

func (b *Broadcaster) Publish(ctx context.Context, reason, initiatedBy string) error {
	payload, err := json.Marshal(Notice{Reason: reason, InitiatedBy: initiatedBy, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("killswitch: marshal notice: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("killswitch: publish: %w", err)
	}
	return nil
}

// Subscriber listens for kill-switch activations published by any process
// and invokes a handler for each one, including activations this same
// process originated (the publisher still applies its own CancelAll sweep
// locally before broadcasting; the subscriber is how every *other* process
// learns about it).
type Subscriber struct {
	client  *redis.Client
	channel string
}

func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	return &Subscriber{client: client, channel: channel}
}

// Run blocks, invoking handler for every Notice received, until ctx is
// cancelled. Malformed payloads are dropped rather than killing the loop.
func (s *Subscriber) Run(ctx context.Context, handler func(Notice)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var notice Notice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				continue
			}
			handler(notice)
		}
	}
}
