package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNotificationService_Notify(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	hub := &hubRecorder{}
	service := NewNotificationService(db, hub)

	senderID := int64(7)
	questionID := int64(42)

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(int64(2), senderID, models.NotificationQuestionUpvoted,
			"Your question was upvoted", "alice upvoted your question",
			questionID, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(14))

	notification, err := service.Notify(context.Background(), 2, &senderID,
		models.NotificationQuestionUpvoted,
		"Your question was upvoted", "alice upvoted your question",
		&questionID, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(14), notification.ID)
	assert.False(t, notification.IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"user:2"}, hub.topics)
	assert.Equal(t, models.MsgNewNotification, hub.msgs[0].Type)
	assert.Equal(t, int64(14), hub.msgs[0].Notification.ID)
	assert.NotEmpty(t, hub.msgs[0].Timestamp)
}

func TestNotificationService_MarkRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db, &hubRecorder{})

	t.Run("own notification", func(t *testing.T) {
		mock.ExpectExec("UPDATE notifications SET is_read = true").
			WithArgs(int64(14), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.MarkRead(context.Background(), 14, 2)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's notification", func(t *testing.T) {
		mock.ExpectExec("UPDATE notifications SET is_read = true").
			WithArgs(int64(14), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.MarkRead(context.Background(), 14, 3)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db, &hubRecorder{})

	t.Run("five unread", func(t *testing.T) {
		mock.ExpectExec("UPDATE notifications SET is_read = true").
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 5))

		count, err := service.MarkAllRead(context.Background(), 2)
		assert.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})

	t.Run("nothing unread", func(t *testing.T) {
		mock.ExpectExec("UPDATE notifications SET is_read = true").
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		count, err := service.MarkAllRead(context.Background(), 2)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNotificationService_Pending(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewNotificationService(db, &hubRecorder{})

	rows := sqlmock.NewRows([]string{"id", "recipient_id", "sender_id", "notification_type", "title", "message", "is_read", "related_question_id", "related_answer_id", "created_at"}).
		AddRow(15, 2, 7, models.NotificationNewAnswer, "New answer to your question", "alice answered", false, 42, 55, time.Now()).
		AddRow(14, 2, nil, models.NotificationQuestionUpvoted, "Your question was upvoted", "bob upvoted", false, 42, nil, time.Now())

	mock.ExpectQuery("SELECT id, recipient_id, sender_id, notification_type").
		WithArgs(int64(2), 10).
		WillReturnRows(rows)

	pending, err := service.Pending(context.Background(), 2, 0)
	assert.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, int64(15), pending[0].ID)
	assert.Nil(t, pending[1].SenderID)
	assert.Nil(t, pending[1].RelatedAnswerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationService_HandleVoteEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	hub := &hubRecorder{}
	service := NewNotificationService(db, hub)

	t.Run("answer upvote notifies the author", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username FROM users WHERE id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(7, "alice"))

		mock.ExpectQuery("INSERT INTO notifications").
			WithArgs(int64(3), int64(7), models.NotificationAnswerUpvoted,
				"Your answer was upvoted", "alice upvoted your answer",
				int64(42), int64(55), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))

		err := service.HandleVoteEvent(context.Background(), events.Event{
			Kind:    events.VoteCast,
			Target:  models.TargetRef{Kind: models.TargetAnswer, ID: 55},
			ActorID: 7,
			Payload: events.VotePayload{
				Value:          1,
				TargetAuthorID: 3,
				QuestionID:     42,
				QuestionTitle:  "How do goroutines work?",
			},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, "user:3", hub.topics[len(hub.topics)-1])
	})

	t.Run("question downvote wording", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username FROM users WHERE id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(7, "alice"))

		mock.ExpectQuery("INSERT INTO notifications").
			WithArgs(int64(2), int64(7), models.NotificationQuestionDownvoted,
				"Your question was downvoted", `alice downvoted your question "How do goroutines work?"`,
				int64(42), nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))

		err := service.HandleVoteEvent(context.Background(), events.Event{
			Kind:    events.VoteCast,
			Target:  models.TargetRef{Kind: models.TargetQuestion, ID: 42},
			ActorID: 7,
			Payload: events.VotePayload{
				Value:          -1,
				TargetAuthorID: 2,
				QuestionID:     42,
				QuestionTitle:  "How do goroutines work?",
			},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retraction is silent", func(t *testing.T) {
		err := service.HandleVoteEvent(context.Background(), events.Event{
			Kind:    events.VoteRetracted,
			Target:  models.TargetRef{Kind: models.TargetQuestion, ID: 42},
			ActorID: 7,
			Payload: events.VotePayload{OldValue: 1, TargetAuthorID: 2, QuestionID: 42},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNotificationService_HandleAnswerPosted(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	hub := &hubRecorder{}
	service := NewNotificationService(db, hub)

	t.Run("notifies the question author", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username FROM users WHERE id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(7, "alice"))

		mock.ExpectQuery("INSERT INTO notifications").
			WithArgs(int64(2), int64(7), models.NotificationNewAnswer,
				"New answer to your question", `alice answered your question "How do goroutines work?"`,
				int64(42), int64(55), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(22))

		err := service.HandleAnswerPosted(context.Background(), events.Event{
			Kind:    events.AnswerPosted,
			Target:  models.TargetRef{Kind: models.TargetQuestion, ID: 42},
			ActorID: 7,
			Payload: events.AnswerPayload{
				AnswerID:         55,
				AnswerAuthorID:   7,
				QuestionID:       42,
				QuestionAuthorID: 2,
				QuestionTitle:    "How do goroutines work?",
			},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("answering your own question is silent", func(t *testing.T) {
		err := service.HandleAnswerPosted(context.Background(), events.Event{
			Kind:    events.AnswerPosted,
			Payload: events.AnswerPayload{AnswerAuthorID: 2, QuestionAuthorID: 2},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNotificationService_HandleAnswerAccepted(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	hub := &hubRecorder{}
	service := NewNotificationService(db, hub)

	t.Run("notifies the answer author", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO notifications").
			WithArgs(int64(3), int64(2), models.NotificationAnswerAccepted,
				"Your answer was accepted", `Your answer to "How do goroutines work?" was accepted`,
				int64(42), int64(55), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(23))

		err := service.HandleAnswerAccepted(context.Background(), events.Event{
			Kind:    events.AnswerAccepted,
			Target:  models.TargetRef{Kind: models.TargetQuestion, ID: 42},
			ActorID: 2,
			Payload: events.AnswerPayload{
				AnswerID:         55,
				AnswerAuthorID:   3,
				QuestionID:       42,
				QuestionAuthorID: 2,
				QuestionTitle:    "How do goroutines work?",
			},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, "user:3", hub.topics[len(hub.topics)-1])
	})

	t.Run("accepting your own answer is silent", func(t *testing.T) {
		err := service.HandleAnswerAccepted(context.Background(), events.Event{
			Kind:    events.AnswerAccepted,
			Payload: events.AnswerPayload{AnswerAuthorID: 2, QuestionAuthorID: 2},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
