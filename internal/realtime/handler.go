package realtime

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/stackgo/backend/internal/middleware"
	"github.com/stackgo/backend/internal/models"
	"github.com/stackgo/backend/internal/services"
)

const closeCodeUnauthorized = 4001

// Handler upgrades live connections and drives their lifecycle: identity
// check, automatic personal and global subscriptions, backlog replay, then
// inbound message dispatch until the connection closes.
type Handler struct {
	hub           *Hub
	notifications *services.NotificationService
	questions     *services.QuestionService
	upgrader      websocket.Upgrader
	pendingLimit  int
	feedLimit     int
}

func NewHandler(hub *Hub, notifications *services.NotificationService, questions *services.QuestionService) *Handler {
	viper.SetDefault("realtime.pending_limit", 10)
	viper.SetDefault("realtime.feed_limit", 20)

	return &Handler{
		hub:           hub,
		notifications: notifications,
		questions:     questions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the CORS layer upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pendingLimit: viper.GetInt("realtime.pending_limit"),
		feedLimit:    viper.GetInt("realtime.feed_limit"),
	}
}

// ServeWS handles GET /ws. Unauthenticated sockets are accepted and then
// closed with code 4001 so browser clients can distinguish auth failures
// from network ones.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[REALTIME] upgrade failed: %v", err)
		return
	}

	identity, err := middleware.ParseToken(bearerToken(r))
	if err != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCodeUnauthorized, "authentication required"),
			time.Now().Add(time.Second))
		ws.Close()
		return
	}

	conn := h.hub.NewConnection(ws, identity)
	h.hub.Subscribe(conn, models.UserTopic(identity.UserID))
	h.hub.Subscribe(conn, models.TopicGlobal)

	established := models.NewOutbound(models.MsgConnectionEstablished)
	established.Message = "Connected to real-time notifications"
	conn.Send(established)

	h.sendPendingNotifications(conn)

	log.Printf("[REALTIME] connection %s established (user %d)", conn.ID, identity.UserID)

	go conn.writePump()
	conn.readPump(h.handleMessage)
}

// sendPendingNotifications replays the unread backlog so a reconnecting
// client catches up without historical replay.
func (h *Handler) sendPendingNotifications(conn *Connection) {
	pending, err := h.notifications.Pending(context.Background(), conn.Identity.UserID, h.pendingLimit)
	if err != nil {
		log.Printf("[REALTIME] pending backlog for user %d: %v", conn.Identity.UserID, err)
		return
	}

	msg := models.NewOutbound(models.MsgPendingNotifications)
	msg.Notifications = pending
	msg.Count = models.IntPtr(len(pending))
	conn.Send(msg)
}

func (h *Handler) handleMessage(conn *Connection, msg models.InboundMessage) {
	ctx := context.Background()

	switch msg.Type {
	case models.MsgHeartbeat:
		conn.Send(models.NewOutbound(models.MsgHeartbeatResponse))

	case models.MsgMarkNotificationRead:
		h.markNotificationRead(ctx, conn, msg.NotificationID)

	case models.MsgSubscribeToQuestion:
		h.subscribeToQuestion(ctx, conn, msg.QuestionID)

	case models.MsgSubscribe:
		h.subscribeTopic(ctx, conn, msg.Topic)

	default:
		conn.SendError("Unknown message type")
	}
}

func (h *Handler) markNotificationRead(ctx context.Context, conn *Connection, notificationID int64) {
	if notificationID <= 0 {
		conn.SendError("notification_id is required")
		return
	}

	err := h.notifications.MarkRead(ctx, notificationID, conn.Identity.UserID)
	if errors.Is(err, services.ErrNotFound) {
		conn.SendError("Notification not found")
		return
	}
	if err != nil {
		log.Printf("[REALTIME] mark read %d for user %d: %v", notificationID, conn.Identity.UserID, err)
		conn.SendError("Message processing failed")
		return
	}

	ack := models.NewOutbound(models.MsgNotificationMarkedRead)
	ack.NotificationID = notificationID
	conn.Send(ack)
}

func (h *Handler) subscribeToQuestion(ctx context.Context, conn *Connection, questionID int64) {
	if questionID <= 0 {
		conn.SendError("question_id is required")
		return
	}

	snap, err := h.questions.Snapshot(ctx, questionID)
	if errors.Is(err, services.ErrNotFound) {
		conn.SendError("Question not found")
		return
	}
	if err != nil {
		log.Printf("[REALTIME] snapshot for question %d: %v", questionID, err)
		conn.SendError("Message processing failed")
		return
	}

	h.hub.Subscribe(conn, models.QuestionTopic(questionID))

	msg := models.NewOutbound(models.MsgQuestionSnapshot)
	msg.Topic = models.QuestionTopic(questionID)
	msg.Question = snap
	conn.Send(msg)
}

func (h *Handler) subscribeTopic(ctx context.Context, conn *Connection, topic string) {
	switch {
	case topic == models.TopicGlobal:
		h.hub.Subscribe(conn, topic)

	case topic == models.TopicAdmin:
		if !conn.Identity.IsAdmin() {
			conn.SendError("Admin access required")
			return
		}
		h.hub.Subscribe(conn, topic)

	case strings.HasPrefix(topic, "question:"):
		if questionID, ok := models.ParseQuestionTopic(topic); ok {
			h.subscribeToQuestion(ctx, conn, questionID)
			return
		}
		conn.SendError("Invalid topic")
		return

	case strings.HasPrefix(topic, "user:"):
		// Personal topics are bound to the connection's own identity at
		// connect time and cannot be joined explicitly.
		conn.SendError("Personal topics cannot be joined")
		return

	default:
		conn.SendError("Invalid topic")
		return
	}

	ack := models.NewOutbound(models.MsgSubscribed)
	ack.Topic = topic
	conn.Send(ack)

	// Joining a feed replays its current state: the global feed sends recent
	// activity, the admin feed a system-status snapshot.
	switch topic {
	case models.TopicGlobal:
		h.sendRecentActivity(ctx, conn)
	case models.TopicAdmin:
		h.sendSystemStatus(conn)
	}
}

func (h *Handler) sendRecentActivity(ctx context.Context, conn *Connection) {
	activities, err := h.questions.RecentActivity(ctx, h.feedLimit)
	if err != nil {
		log.Printf("[REALTIME] recent activity for %s: %v", conn.ID, err)
		return
	}

	msg := models.NewOutbound(models.MsgRecentActivities)
	msg.Activities = activities
	msg.Count = models.IntPtr(len(activities))
	conn.Send(msg)
}

func (h *Handler) sendSystemStatus(conn *Connection) {
	msg := models.NewOutbound(models.MsgSystemStatus)
	msg.Status = h.hub.Stats()
	conn.Send(msg)
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
