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

func TestLedgerService_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	bus := &busRecorder{}
	service := NewLedgerService(db, bus)
	target := models.TargetRef{Kind: models.TargetAnswer, ID: 42}

	t.Run("successful record", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT reputation FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"reputation"}).AddRow(100))

		mock.ExpectQuery("INSERT INTO reputation_transactions").
			WithArgs(int64(7), models.TxAnswerUpvote, 10, "answer upvoted: Go generics", "answer", int64(42), 110, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		mock.ExpectExec("UPDATE users SET reputation = \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(110, sqlmock.AnyArg(), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectCommit()

		txn, err := service.Record(context.Background(), 7, models.TxAnswerUpvote, 10, target, "answer upvoted: Go generics")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), txn.ID)
		assert.Equal(t, 110, txn.BalanceAfter)
		assert.NoError(t, mock.ExpectationsWereMet())

		published := bus.published()
		assert.Len(t, published, 1)
		assert.Equal(t, events.ReputationChanged, published[0].Kind)
		payload := published[0].Payload.(events.ReputationPayload)
		assert.Equal(t, int64(7), payload.UserID)
		assert.Equal(t, 110, payload.NewReputation)
		assert.Equal(t, 10, payload.Delta)
		assert.Equal(t, "Answer Upvoted", payload.Reason)
	})

	t.Run("amount out of range", func(t *testing.T) {
		_, err := service.Record(context.Background(), 7, models.TxBountyAwarded, 1001, target, "bounty")
		assert.ErrorIs(t, err, ErrAmountOutOfRange)

		_, err = service.Record(context.Background(), 7, models.TxBountyAwarded, -1001, target, "bounty")
		assert.ErrorIs(t, err, ErrAmountOutOfRange)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reputation floor rejection", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT reputation FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"reputation"}).AddRow(-950))
		mock.ExpectRollback()

		_, err := service.Record(context.Background(), 7, models.TxSpamPenalty, -100, target, "spam")
		assert.ErrorIs(t, err, ErrReputationFloor)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT reputation FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(999)).
			WillReturnRows(sqlmock.NewRows([]string{"reputation"}))
		mock.ExpectRollback()

		_, err := service.Record(context.Background(), 999, models.TxAnswerUpvote, 10, target, "upvote")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("balances form prefix sums", func(t *testing.T) {
		amounts := []int{5, 10, -2}
		balance := 100
		var balances []int

		for i, amount := range amounts {
			balance += amount
			balances = append(balances, balance)

			mock.ExpectBegin()
			mock.ExpectQuery("SELECT reputation FROM users WHERE id = \\$1 FOR UPDATE").
				WithArgs(int64(7)).
				WillReturnRows(sqlmock.NewRows([]string{"reputation"}).AddRow(balance - amount))
			mock.ExpectQuery("INSERT INTO reputation_transactions").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i + 10)))
			mock.ExpectExec("UPDATE users SET reputation").
				WithArgs(balance, sqlmock.AnyArg(), int64(7)).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
		}

		var snapshots []int
		for _, amount := range amounts {
			txn, err := service.Record(context.Background(), 7, models.TxQuestionUpvote, amount, target, "entry")
			assert.NoError(t, err)
			snapshots = append(snapshots, txn.BalanceAfter)
		}

		assert.Equal(t, balances, snapshots)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, &busRecorder{})

	rows := sqlmock.NewRows([]string{"id", "user_id", "transaction_type", "amount", "description", "target_kind", "target_id", "balance_after", "created_at"}).
		AddRow(2, 7, models.TxAnswerUpvote, 10, "answer upvoted", "answer", 42, 115, time.Now()).
		AddRow(1, 7, models.TxQuestionUpvote, 5, "question upvoted", "question", 9, 105, time.Now())

	mock.ExpectQuery("SELECT id, user_id, transaction_type, amount, description, target_kind, target_id, balance_after, created_at").
		WithArgs(int64(7), 20).
		WillReturnRows(rows)

	txns, err := service.History(context.Background(), 7, 0)
	assert.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Equal(t, int64(2), txns[0].ID)
	assert.Equal(t, 115, txns[0].BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}
