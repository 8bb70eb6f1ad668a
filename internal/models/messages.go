package models

import "time"

// Live-connection wire messages. Every message is a JSON object with a
// mandatory "type" discriminator; outbound messages also carry an ISO-8601
// "timestamp".

// Inbound message types
const (
	MsgMarkNotificationRead = "mark_notification_read"
	MsgSubscribeToQuestion  = "subscribe_to_question"
	MsgSubscribe            = "subscribe"
	MsgHeartbeat            = "heartbeat"
)

// Outbound message types
const (
	MsgConnectionEstablished  = "connection_established"
	MsgPendingNotifications   = "pending_notifications"
	MsgNewNotification        = "new_notification"
	MsgReputationUpdate       = "reputation_update"
	MsgVoteUpdate             = "vote_update"
	MsgNewAnswer              = "new_answer"
	MsgAnswerAccepted         = "answer_accepted"
	MsgNotificationMarkedRead = "notification_marked_read"
	MsgQuestionSnapshot       = "question_snapshot"
	MsgSubscribed             = "subscribed"
	MsgNewActivity            = "new_activity"
	MsgRecentActivities       = "recent_activities"
	MsgSystemStatus           = "system_status"
	MsgPerformanceWarning     = "performance_warning"
	MsgError                  = "error"
	MsgHeartbeatResponse      = "heartbeat_response"
)

// InboundMessage covers every client-to-server message; unused fields are
// zero for types that do not carry them.
type InboundMessage struct {
	Type           string `json:"type" validate:"required"`
	NotificationID int64  `json:"notification_id,omitempty"`
	QuestionID     int64  `json:"question_id,omitempty"`
	Topic          string `json:"topic,omitempty"`
}

// OutboundMessage is the envelope for every server-to-client message. Fields
// beyond Type and Timestamp are populated per message type and omitted
// otherwise.
type OutboundMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`

	Message string `json:"message,omitempty"`

	Notification  *Notification  `json:"notification,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	Count         *int           `json:"count,omitempty"`

	NotificationID int64 `json:"notification_id,omitempty"`

	NewReputation *int   `json:"new_reputation,omitempty"`
	Change        *int   `json:"change,omitempty"`
	Reason        string `json:"reason,omitempty"`

	VoteScore *int `json:"vote_score,omitempty"`
	Upvotes   *int `json:"upvotes,omitempty"`
	Downvotes *int `json:"downvotes,omitempty"`

	Answer      map[string]any `json:"answer,omitempty"`
	AnswerCount *int           `json:"answer_count,omitempty"`
	AnswerID    int64          `json:"answer_id,omitempty"`

	Question *QuestionSnapshot `json:"question,omitempty"`

	Activity   map[string]any   `json:"activity,omitempty"`
	Activities []map[string]any `json:"activities,omitempty"`

	Topic string `json:"topic,omitempty"`

	QuestionAnswered *bool `json:"question_answered,omitempty"`

	Status    map[string]any `json:"status,omitempty"`
	Metric    string         `json:"metric,omitempty"`
	Value     *uint64        `json:"value,omitempty"`
	Threshold *uint64        `json:"threshold,omitempty"`
}

// NewOutbound stamps an outbound message with the current time.
func NewOutbound(msgType string) OutboundMessage {
	return OutboundMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// IntPtr is a convenience for the optional numeric fields above.
func IntPtr(v int) *int { return &v }

func Uint64Ptr(v uint64) *uint64 { return &v }
