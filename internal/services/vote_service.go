package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
)

const maxToggleAttempts = 3

// VoteService is the idempotent toggle state machine for votes: at most one
// active vote per (user, target); casting the same value twice retracts it,
// casting the opposite value flips the row in place. The reputation entries
// a toggle produces are written through the ledger inside the same database
// transaction as the vote row, so a rejected entry rolls the vote back too.
type VoteService struct {
	db     *sql.DB
	bus    EventPublisher
	ledger *LedgerService
}

func NewVoteService(db *sql.DB, bus EventPublisher, ledger *LedgerService) *VoteService {
	return &VoteService{db: db, bus: bus, ledger: ledger}
}

type targetInfo struct {
	AuthorID   int64
	QuestionID int64
	Title      string
}

// ToggleVote applies one toggle and returns the vote value now in effect,
// or nil when the toggle retracted an existing vote. The read-modify-write
// on the vote row and the resulting ledger entries run inside one
// transaction; a concurrent first cast racing on the unique (user, target)
// constraint is retried against the then-existing row, and only a toggle
// that keeps losing surfaces ErrVoteConflict.
func (s *VoteService) ToggleVote(ctx context.Context, userID int64, target models.TargetRef, value int) (*int, error) {
	if value != 1 && value != -1 {
		return nil, ErrInvalidVoteValue
	}
	if !target.Kind.Valid() {
		return nil, ErrNotFound
	}

	for attempt := 1; ; attempt++ {
		applied, evt, txns, err := s.toggleOnce(ctx, userID, target, value)
		if err != nil {
			if isUniqueViolation(err) {
				if attempt < maxToggleAttempts {
					log.Printf("[VOTES] concurrent toggle on %s by user %d, retrying", target, userID)
					continue
				}
				return nil, ErrVoteConflict
			}
			return nil, err
		}

		// Delivery order: reputation effects first, then the vote event that
		// drives notifications and fan-out.
		for _, txn := range txns {
			s.ledger.announce(ctx, txn)
		}
		s.bus.Publish(ctx, evt)
		return applied, nil
	}
}

func (s *VoteService) toggleOnce(ctx context.Context, userID int64, target models.TargetRef, value int) (*int, events.Event, []*models.ReputationTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, events.Event{}, nil, err
	}
	defer tx.Rollback()

	info, err := s.loadTarget(ctx, tx, target)
	if err != nil {
		return nil, events.Event{}, nil, err
	}
	if info.AuthorID == userID {
		return nil, events.Event{}, nil, ErrSelfVote
	}

	evt := events.Event{
		Target:  target,
		ActorID: userID,
	}
	payload := events.VotePayload{
		TargetAuthorID: info.AuthorID,
		QuestionID:     info.QuestionID,
		QuestionTitle:  info.Title,
	}

	var existing models.Vote
	err = tx.QueryRowContext(ctx, `
		SELECT id, value FROM votes
		WHERE user_id = $1 AND target_kind = $2 AND target_id = $3
		FOR UPDATE`,
		userID, target.Kind, target.ID).Scan(&existing.ID, &existing.Value)

	var applied *int
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO votes (user_id, target_kind, target_id, value, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, target.Kind, target.ID, value, now, now)
		if err != nil {
			return nil, events.Event{}, nil, err
		}
		evt.Kind = events.VoteCast
		payload.Value = value
		applied = &value

	case err != nil:
		return nil, events.Event{}, nil, err

	case existing.Value == value:
		if _, err = tx.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, existing.ID); err != nil {
			return nil, events.Event{}, nil, err
		}
		evt.Kind = events.VoteRetracted
		payload.OldValue = existing.Value

	default:
		_, err = tx.ExecContext(ctx, `UPDATE votes SET value = $1, updated_at = $2 WHERE id = $3`,
			value, time.Now(), existing.ID)
		if err != nil {
			return nil, events.Event{}, nil, err
		}
		evt.Kind = events.VoteChanged
		payload.Value = value
		payload.OldValue = existing.Value
		applied = &value
	}

	var txns []*models.ReputationTransaction
	for _, entry := range voteLedgerEntries(target, userID, payload) {
		txn, err := s.ledger.recordIn(ctx, tx, entry.userID, entry.txType, entry.amount, target, entry.description)
		if err != nil {
			return nil, events.Event{}, nil, fmt.Errorf("reputation for %s: %w", target, err)
		}
		txns = append(txns, txn)
	}

	if err := tx.Commit(); err != nil {
		return nil, events.Event{}, nil, err
	}

	evt.Payload = payload
	return applied, evt, txns, nil
}

// UserVote returns the caller's current vote value on a target, nil if none.
func (s *VoteService) UserVote(ctx context.Context, userID int64, target models.TargetRef) (*int, error) {
	var vote models.Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM votes
		WHERE user_id = $1 AND target_kind = $2 AND target_id = $3`,
		userID, target.Kind, target.ID).Scan(&vote.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote.Value, nil
}

func (s *VoteService) loadTarget(ctx context.Context, tx *sql.Tx, target models.TargetRef) (*targetInfo, error) {
	var info targetInfo
	var err error

	switch target.Kind {
	case models.TargetQuestion:
		err = tx.QueryRowContext(ctx, `
			SELECT author_id, id, title FROM questions WHERE id = $1`,
			target.ID).Scan(&info.AuthorID, &info.QuestionID, &info.Title)
	case models.TargetAnswer:
		err = tx.QueryRowContext(ctx, `
			SELECT a.author_id, a.question_id, q.title
			FROM answers a
			JOIN questions q ON q.id = a.question_id
			WHERE a.id = $1`,
			target.ID).Scan(&info.AuthorID, &info.QuestionID, &info.Title)
	default:
		return nil, fmt.Errorf("unsupported target kind %q", target.Kind)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
