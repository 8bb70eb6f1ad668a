package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
)

// TopicPublisher is the slice of the fan-out dispatcher the services need.
// Publishing never blocks and never fails; a slow subscriber is the
// dispatcher's problem, not the publisher's.
type TopicPublisher interface {
	Publish(topic string, msg models.OutboundMessage)
}

// NotificationService persists per-user notifications and hands freshly
// created ones to the fan-out dispatcher. It is invoked only as an event bus
// handler or from the live-connection read path, never directly by the CRUD
// layer.
type NotificationService struct {
	db  *sql.DB
	hub TopicPublisher
}

func NewNotificationService(db *sql.DB, hub TopicPublisher) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

// Notify persists one notification and pushes it to the recipient's personal
// topic. The push is best effort; the persisted row is authoritative and is
// replayed as backlog on the recipient's next connect.
func (s *NotificationService) Notify(ctx context.Context, recipientID int64, senderID *int64, notificationType, title, message string, questionID, answerID *int64) (*models.Notification, error) {
	notification := &models.Notification{
		RecipientID:       recipientID,
		SenderID:          senderID,
		NotificationType:  notificationType,
		Title:             title,
		Message:           message,
		RelatedQuestionID: questionID,
		RelatedAnswerID:   answerID,
		CreatedAt:         time.Now(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications
			(recipient_id, sender_id, notification_type, title, message, is_read, related_question_id, related_answer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, $8)
		RETURNING id`,
		notification.RecipientID, notification.SenderID, notification.NotificationType,
		notification.Title, notification.Message,
		notification.RelatedQuestionID, notification.RelatedAnswerID, notification.CreatedAt).Scan(&notification.ID)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	msg := models.NewOutbound(models.MsgNewNotification)
	msg.Notification = notification
	s.hub.Publish(models.UserTopic(recipientID), msg)

	return notification, nil
}

// MarkRead flips one notification to read. Returns ErrNotFound when the
// notification does not exist or does not belong to the caller.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, recipientID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND recipient_id = $2`,
		notificationID, recipientID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification for the recipient and returns
// how many were updated. Zero pending notifications is not an error.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true
		WHERE recipient_id = $1 AND is_read = false`,
		recipientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Pending returns the recipient's most recent unread notifications, newest
// first, bounded to limit. Used as the replay backlog on connect.
func (s *NotificationService) Pending(ctx context.Context, recipientID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, sender_id, notification_type, title, message, is_read, related_question_id, related_answer_id, created_at
		FROM notifications
		WHERE recipient_id = $1 AND is_read = false
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// List returns the recipient's notifications, optionally unread only.
func (s *NotificationService) List(ctx context.Context, recipientID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, recipient_id, sender_id, notification_type, title, message, is_read, related_question_id, related_answer_id, created_at
		FROM notifications
		WHERE recipient_id = $1`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND is_read = false`, recipientID).Scan(&count)
	return count, err
}

func scanNotifications(rows *sql.Rows) ([]models.Notification, error) {
	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.NotificationType, &n.Title, &n.Message,
			&n.IsRead, &n.RelatedQuestionID, &n.RelatedAnswerID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// Event bus handlers. Registered at startup; each failure is isolated by the
// bus and never rolls back committed ledger state.

func (s *NotificationService) HandleVoteEvent(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.VotePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}
	if payload.Value == 0 {
		// Retraction: the original stance is simply gone, nothing to announce.
		return nil
	}

	voter, err := s.lookupUser(ctx, evt.ActorID)
	if err != nil {
		return err
	}

	direction := "upvoted"
	if payload.Value < 0 {
		direction = "downvoted"
	}

	var notificationType, title, message string
	var questionID, answerID *int64
	qid := payload.QuestionID
	questionID = &qid

	switch evt.Target.Kind {
	case models.TargetAnswer:
		notificationType = "answer_" + direction
		title = fmt.Sprintf("Your answer was %s", direction)
		message = fmt.Sprintf("%s %s your answer", voter.Username, direction)
		answerID = &evt.Target.ID
	default:
		notificationType = "question_" + direction
		title = fmt.Sprintf("Your question was %s", direction)
		message = fmt.Sprintf("%s %s your question %q", voter.Username, direction, payload.QuestionTitle)
	}

	senderID := evt.ActorID
	_, err = s.Notify(ctx, payload.TargetAuthorID, &senderID, notificationType, title, message, questionID, answerID)
	return err
}

func (s *NotificationService) HandleAnswerPosted(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.AnswerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}
	if payload.AnswerAuthorID == payload.QuestionAuthorID {
		// Answering your own question notifies nobody.
		return nil
	}

	author, err := s.lookupUser(ctx, payload.AnswerAuthorID)
	if err != nil {
		return err
	}

	_, err = s.Notify(ctx, payload.QuestionAuthorID, &payload.AnswerAuthorID,
		models.NotificationNewAnswer,
		"New answer to your question",
		fmt.Sprintf("%s answered your question %q", author.Username, payload.QuestionTitle),
		&payload.QuestionID, &payload.AnswerID)
	return err
}

func (s *NotificationService) HandleAnswerAccepted(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.AnswerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}
	if payload.AnswerAuthorID == payload.QuestionAuthorID {
		return nil
	}

	_, err := s.Notify(ctx, payload.AnswerAuthorID, &payload.QuestionAuthorID,
		models.NotificationAnswerAccepted,
		"Your answer was accepted",
		fmt.Sprintf("Your answer to %q was accepted", payload.QuestionTitle),
		&payload.QuestionID, &payload.AnswerID)
	return err
}

func (s *NotificationService) lookupUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `SELECT id, username FROM users WHERE id = $1`, userID).Scan(&user.ID, &user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
