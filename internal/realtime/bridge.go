package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Bridge mirrors topic publishes across instances over a Redis channel, so
// a subscriber connected to one server still sees events triggered on
// another. Envelopes carry the origin hub id; a hub skips its own mirrors.
type Bridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	out     chan envelope
}

type envelope struct {
	Origin string          `json:"origin"`
	Topic  string          `json:"topic"`
	Data   json.RawMessage `json:"data"`
}

func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	viper.SetDefault("realtime.bridge_channel", "realtime:events")
	viper.SetDefault("realtime.bridge_queue_size", 256)

	return &Bridge{
		rdb:     rdb,
		hub:     hub,
		channel: viper.GetString("realtime.bridge_channel"),
		out:     make(chan envelope, viper.GetInt("realtime.bridge_queue_size")),
	}
}

// Mirror queues one local publish for forwarding to peer instances. Best
// effort: the queue drops when full and a Redis hiccup degrades
// cross-instance delivery, never local delivery. Mirror never blocks the
// publisher.
func (b *Bridge) Mirror(topic string, data []byte) {
	select {
	case b.out <- envelope{Origin: b.hub.id, Topic: topic, Data: data}:
	default:
		log.Printf("[BRIDGE] mirror queue full, dropping publish for %s", topic)
	}
}

// Run forwards queued mirrors and consumes peer publishes until the context
// is cancelled. Call in its own goroutine.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	log.Printf("[BRIDGE] listening on %s", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.out:
			b.publish(ctx, env)
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle([]byte(msg.Payload))
		}
	}
}

func (b *Bridge) publish(ctx context.Context, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("[BRIDGE] marshal envelope for %s: %v", env.Topic, err)
		return
	}

	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		log.Printf("[BRIDGE] publish to %s failed: %v", b.channel, err)
	}
}

func (b *Bridge) handle(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("[BRIDGE] bad envelope: %v", err)
		return
	}
	if env.Origin == b.hub.id {
		return
	}
	b.hub.deliverLocal(env.Topic, env.Data)
}
