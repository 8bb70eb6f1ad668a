package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stackgo/backend/internal/models"
)

// Connection is one live subscriber. It owns a bounded inbound queue that
// the dispatcher pushes into and a writer goroutine drains onto the wire;
// no other component touches the socket.
type Connection struct {
	ID       string
	Identity models.Identity

	hub  *Hub
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	dropped   uint64
}

func newConnection(hub *Hub, ws *websocket.Conn, identity models.Identity) *Connection {
	return &Connection{
		ID:       uuid.NewString(),
		Identity: identity,
		hub:      hub,
		ws:       ws,
		send:     make(chan []byte, hub.queueSize),
		done:     make(chan struct{}),
	}
}

// enqueue places a message on the connection's send queue without ever
// blocking the caller. When the queue is full the oldest queued message is
// dropped and counted; the newest messages always survive.
func (c *Connection) enqueue(data []byte) {
	for {
		select {
		case <-c.done:
			return
		case c.send <- data:
			return
		default:
		}

		select {
		case <-c.send:
			atomic.AddUint64(&c.dropped, 1)
			atomic.AddUint64(&c.hub.dropped, 1)
		default:
		}
	}
}

// Send marshals and queues one message for this connection only.
func (c *Connection) Send(msg models.OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[REALTIME] marshal %s for connection %s: %v", msg.Type, c.ID, err)
		return
	}
	c.enqueue(data)
}

// SendError reports a protocol-level problem to the client.
func (c *Connection) SendError(message string) {
	msg := models.NewOutbound(models.MsgError)
	msg.Message = message
	c.Send(msg)
}

// Dropped returns how many queued messages this connection has shed.
func (c *Connection) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// Close transitions the connection to Closed: the queue is abandoned, the
// registry entries are released and the socket is torn down. Safe to call
// from any goroutine, any number of times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.registry.RemoveConnection(c.ID)
		if c.ws != nil {
			c.ws.Close()
		}
		log.Printf("[REALTIME] connection %s closed (user %d, dropped %d)", c.ID, c.Identity.UserID, c.Dropped())
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client messages until the socket errors or goes silent
// past the heartbeat timeout. Any inbound traffic counts as liveness.
func (c *Connection) readPump(onMessage func(*Connection, models.InboundMessage)) {
	defer c.Close()

	c.ws.SetReadLimit(c.hub.maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.heartbeatTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.heartbeatTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[REALTIME] connection %s read error: %v", c.ID, err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.hub.heartbeatTimeout))

		var msg models.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendError("Invalid JSON format")
			continue
		}
		onMessage(c, msg)
	}
}
