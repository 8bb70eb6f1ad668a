package models

import "time"

// Notification types
const (
	NotificationNewAnswer         = "new_answer"
	NotificationAnswerAccepted    = "answer_accepted"
	NotificationQuestionUpvoted   = "question_upvoted"
	NotificationAnswerUpvoted     = "answer_upvoted"
	NotificationQuestionDownvoted = "question_downvoted"
	NotificationAnswerDownvoted   = "answer_downvoted"
)

type Notification struct {
	ID                int64     `json:"id" db:"id"`
	RecipientID       int64     `json:"recipient_id" db:"recipient_id"`
	SenderID          *int64    `json:"sender_id" db:"sender_id"` // nil for system notifications
	NotificationType  string    `json:"notification_type" db:"notification_type"`
	Title             string    `json:"title" db:"title"`
	Message           string    `json:"message" db:"message"`
	IsRead            bool      `json:"is_read" db:"is_read"`
	RelatedQuestionID *int64    `json:"related_question_id" db:"related_question_id"`
	RelatedAnswerID   *int64    `json:"related_answer_id" db:"related_answer_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
