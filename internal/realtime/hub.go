package realtime

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/stackgo/backend/internal/models"
)

// Hub is the fan-out dispatcher. Publishing delivers to every currently
// subscribed connection independently through its bounded send queue; a slow
// or gone subscriber never blocks the publisher or its peers.
type Hub struct {
	id       string
	registry *Registry
	bridge   *Bridge

	queueSize        int
	writeWait        time.Duration
	pingPeriod       time.Duration
	heartbeatTimeout time.Duration
	maxMessageSize   int64
	dropAlertEvery   uint64

	dropped       uint64
	lastDropAlert uint64
}

func NewHub() *Hub {
	viper.SetDefault("realtime.send_queue_size", 50)
	viper.SetDefault("realtime.write_timeout", 10*time.Second)
	viper.SetDefault("realtime.heartbeat_timeout", 60*time.Second)
	viper.SetDefault("realtime.max_message_size", 4096)
	viper.SetDefault("realtime.drop_alert_threshold", 100)

	heartbeat := viper.GetDuration("realtime.heartbeat_timeout")

	return &Hub{
		id:               uuid.NewString(),
		registry:         NewRegistry(),
		queueSize:        viper.GetInt("realtime.send_queue_size"),
		writeWait:        viper.GetDuration("realtime.write_timeout"),
		pingPeriod:       heartbeat * 9 / 10,
		heartbeatTimeout: heartbeat,
		maxMessageSize:   viper.GetInt64("realtime.max_message_size"),
		dropAlertEvery:   viper.GetUint64("realtime.drop_alert_threshold"),
	}
}

// SetBridge attaches the cross-instance mirror. Optional; without it the hub
// fans out to local connections only.
func (h *Hub) SetBridge(bridge *Bridge) {
	h.bridge = bridge
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// NewConnection wraps an upgraded socket. The caller starts the pumps via
// Run once the connect-time messages are queued.
func (h *Hub) NewConnection(ws *websocket.Conn, identity models.Identity) *Connection {
	return newConnection(h, ws, identity)
}

func (h *Hub) Subscribe(conn *Connection, topic string) {
	h.registry.Add(topic, conn)
}

func (h *Hub) Unsubscribe(conn *Connection, topic string) {
	h.registry.Remove(topic, conn.ID)
}

// Publish delivers a message to every subscriber of the topic and mirrors it
// to peer instances. It never returns an error: a full subscriber queue
// sheds its oldest message and increments the drop counter instead.
func (h *Hub) Publish(topic string, msg models.OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[REALTIME] marshal %s for topic %s: %v", msg.Type, topic, err)
		return
	}

	h.deliverLocal(topic, data)

	if h.bridge != nil {
		h.bridge.Mirror(topic, data)
	}

	if topic != models.TopicAdmin {
		h.maybeWarnDropRate()
	}
}

// maybeWarnDropRate alerts the admin topic each time the hub-wide drop
// counter grows by another threshold's worth of shed messages.
func (h *Hub) maybeWarnDropRate() {
	if h.dropAlertEvery == 0 {
		return
	}
	dropped := atomic.LoadUint64(&h.dropped)
	last := atomic.LoadUint64(&h.lastDropAlert)
	if dropped-last < h.dropAlertEvery {
		return
	}
	if !atomic.CompareAndSwapUint64(&h.lastDropAlert, last, dropped) {
		return
	}

	msg := models.NewOutbound(models.MsgPerformanceWarning)
	msg.Metric = "dropped_messages"
	msg.Value = models.Uint64Ptr(dropped)
	msg.Threshold = models.Uint64Ptr(h.dropAlertEvery)
	h.Publish(models.TopicAdmin, msg)
}

func (h *Hub) deliverLocal(topic string, data []byte) {
	for _, conn := range h.registry.Subscribers(topic) {
		conn.enqueue(data)
	}
}

// Dropped returns the total messages shed across all connections since start.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// Stats reports the hub's live counters, served to admin subscribers and the
// health endpoint.
func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"connections":      h.registry.ConnectionCount(),
		"topics":           h.registry.TopicCount(),
		"dropped_messages": h.Dropped(),
	}
}
