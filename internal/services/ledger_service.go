package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
)

const (
	maxTransactionAmount = 1000
	minTransactionAmount = -1000
)

// EventPublisher is the slice of the event bus the services need.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.Event)
}

// LedgerService owns the append-only reputation transaction log. It is the
// only component that writes users.reputation, and only inside the same
// database transaction that inserts the audit row.
type LedgerService struct {
	db    *sql.DB
	bus   EventPublisher
	audit *AuditLogger
	floor int
}

func NewLedgerService(db *sql.DB, bus EventPublisher) *LedgerService {
	viper.SetDefault("reputation.floor", -1000)

	return &LedgerService{
		db:    db,
		bus:   bus,
		audit: NewAuditLogger(),
		floor: viper.GetInt("reputation.floor"),
	}
}

// Record applies one standalone reputation delta to a user, in its own
// transaction. Moderation adjustments and bounties come through here; vote
// and acceptance deltas use recordIn so they commit or roll back with the
// operation that caused them.
func (s *LedgerService) Record(ctx context.Context, userID int64, txType string, amount int, target models.TargetRef, description string) (*models.ReputationTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.recordIn(ctx, tx, userID, txType, amount, target, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.announce(ctx, txn)
	return txn, nil
}

// recordIn applies one reputation delta inside the caller's transaction. The
// user row is locked for the transaction's duration, so concurrent records
// for the same user serialize; the inserted row carries the balance
// immediately after applying the amount. The caller commits and then calls
// announce, so a rolled-back operation leaves no reputation trace and no
// published event.
func (s *LedgerService) recordIn(ctx context.Context, tx *sql.Tx, userID int64, txType string, amount int, target models.TargetRef, description string) (*models.ReputationTransaction, error) {
	if amount < minTransactionAmount || amount > maxTransactionAmount {
		s.audit.LogRejection(userID, txType, amount, ErrAmountOutOfRange)
		return nil, ErrAmountOutOfRange
	}
	if !target.Kind.Valid() {
		return nil, fmt.Errorf("invalid target kind %q", target.Kind)
	}

	current, err := s.lockUserReputation(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	newBalance := current + amount
	if newBalance < s.floor {
		s.audit.LogRejection(userID, txType, amount, ErrReputationFloor)
		return nil, ErrReputationFloor
	}

	txn := &models.ReputationTransaction{
		UserID:          userID,
		TransactionType: txType,
		Amount:          amount,
		Description:     description,
		TargetKind:      target.Kind,
		TargetID:        target.ID,
		BalanceAfter:    newBalance,
		CreatedAt:       time.Now(),
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO reputation_transactions
			(user_id, transaction_type, amount, description, target_kind, target_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		txn.UserID, txn.TransactionType, txn.Amount, txn.Description,
		txn.TargetKind, txn.TargetID, txn.BalanceAfter, txn.CreatedAt).Scan(&txn.ID)
	if err != nil {
		return nil, fmt.Errorf("insert reputation transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET reputation = $1, updated_at = $2 WHERE id = $3`,
		newBalance, time.Now(), userID)
	if err != nil {
		return nil, fmt.Errorf("update user reputation: %w", err)
	}

	return txn, nil
}

// announce emits the audit line and the reputation_changed event for a
// committed transaction. Must only be called after the transaction that
// produced the record has committed.
func (s *LedgerService) announce(ctx context.Context, txn *models.ReputationTransaction) {
	s.audit.LogTransaction(txn)

	s.bus.Publish(ctx, events.Event{
		Kind:    events.ReputationChanged,
		Target:  models.TargetRef{Kind: txn.TargetKind, ID: txn.TargetID},
		ActorID: txn.UserID,
		Payload: events.ReputationPayload{
			UserID:        txn.UserID,
			NewReputation: txn.BalanceAfter,
			Delta:         txn.Amount,
			Reason:        models.TransactionLabel(txn.TransactionType),
		},
	})
}

func (s *LedgerService) lockUserReputation(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var reputation int
	err := tx.QueryRowContext(ctx, `
		SELECT reputation FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&reputation)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return reputation, err
}

// History returns a user's most recent reputation transactions, newest first.
func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]models.ReputationTransaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, transaction_type, amount, description, target_kind, target_id, balance_after, created_at
		FROM reputation_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.ReputationTransaction
	for rows.Next() {
		var txn models.ReputationTransaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.TransactionType, &txn.Amount, &txn.Description,
			&txn.TargetKind, &txn.TargetID, &txn.BalanceAfter, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
