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

// QuestionService is the pipeline's read/write seam to question and answer
// storage: live snapshots for late-joining subscribers, and the two event
// sources (answer posted, answer accepted) the CRUD layer triggers.
type QuestionService struct {
	db     *sql.DB
	bus    EventPublisher
	ledger *LedgerService
}

func NewQuestionService(db *sql.DB, bus EventPublisher, ledger *LedgerService) *QuestionService {
	return &QuestionService{db: db, bus: bus, ledger: ledger}
}

// Snapshot returns the question's current vote score, answer count and
// answered status, computed from storage at call time.
func (s *QuestionService) Snapshot(ctx context.Context, questionID int64) (*models.QuestionSnapshot, error) {
	var snap models.QuestionSnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT q.id, q.title, q.is_answered, q.accepted_answer_id,
			(SELECT COUNT(*) FROM votes v WHERE v.target_kind = 'question' AND v.target_id = q.id AND v.value = 1),
			(SELECT COUNT(*) FROM votes v WHERE v.target_kind = 'question' AND v.target_id = q.id AND v.value = -1),
			(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id)
		FROM questions q
		WHERE q.id = $1`, questionID).Scan(
		&snap.ID, &snap.Title, &snap.IsAnswered, &snap.AcceptedAnswerID,
		&snap.Upvotes, &snap.Downvotes, &snap.AnswerCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap.VoteScore = snap.Upvotes - snap.Downvotes
	return &snap, nil
}

// TargetScore returns the vote aggregates for any votable target.
func (s *QuestionService) TargetScore(ctx context.Context, target models.TargetRef) (score, upvotes, downvotes int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0)
		FROM votes
		WHERE target_kind = $1 AND target_id = $2`,
		target.Kind, target.ID).Scan(&upvotes, &downvotes)
	score = upvotes - downvotes
	return score, upvotes, downvotes, err
}

// AnswerPosted publishes the answer_posted event for a freshly created
// answer row. Called by the answer-creation code path after its own commit.
func (s *QuestionService) AnswerPosted(ctx context.Context, answerID int64) error {
	var payload events.AnswerPayload
	payload.AnswerID = answerID

	err := s.db.QueryRowContext(ctx, `
		SELECT a.author_id, a.question_id, q.author_id, q.title, u.username,
			(SELECT COUNT(*) FROM answers a2 WHERE a2.question_id = q.id)
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		JOIN users u ON u.id = a.author_id
		WHERE a.id = $1`, answerID).Scan(
		&payload.AnswerAuthorID, &payload.QuestionID, &payload.QuestionAuthorID,
		&payload.QuestionTitle, &payload.ActorUsername, &payload.AnswerCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.Event{
		Kind:    events.AnswerPosted,
		Target:  models.TargetRef{Kind: models.TargetQuestion, ID: payload.QuestionID},
		ActorID: payload.AnswerAuthorID,
		Payload: payload,
	})
	return nil
}

// AcceptAnswer marks an answer as the question's accepted answer. Only the
// question author may accept; accepting the already-accepted answer is a
// no-op and publishes nothing. The previous accepted answer, if any, is
// demoted and the answer author's award is recorded in the same
// transaction, so a rejected ledger entry rolls the acceptance back.
func (s *QuestionService) AcceptAnswer(ctx context.Context, questionID, answerID, actorID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var questionAuthorID int64
	var title string
	var currentAccepted sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT author_id, title, accepted_answer_id FROM questions WHERE id = $1 FOR UPDATE`,
		questionID).Scan(&questionAuthorID, &title, &currentAccepted)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if questionAuthorID != actorID {
		return ErrNotQuestionAuthor
	}

	var answerAuthorID int64
	err = tx.QueryRowContext(ctx, `
		SELECT author_id FROM answers WHERE id = $1 AND question_id = $2`,
		answerID, questionID).Scan(&answerAuthorID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if currentAccepted.Valid && currentAccepted.Int64 == answerID {
		return nil
	}

	if currentAccepted.Valid {
		if _, err := tx.ExecContext(ctx, `UPDATE answers SET is_accepted = false WHERE id = $1`,
			currentAccepted.Int64); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE answers SET is_accepted = true WHERE id = $1`, answerID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET accepted_answer_id = $1, is_answered = true, updated_at = $2 WHERE id = $3`,
		answerID, time.Now(), questionID); err != nil {
		return err
	}

	entry := acceptedLedgerEntry(answerAuthorID, title)
	txn, err := s.ledger.recordIn(ctx, tx, entry.userID, entry.txType, entry.amount,
		models.TargetRef{Kind: models.TargetAnswer, ID: answerID}, entry.description)
	if err != nil {
		return fmt.Errorf("reputation for accepted answer %d: %w", answerID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("accept answer: %w", err)
	}

	s.ledger.announce(ctx, txn)
	s.bus.Publish(ctx, events.Event{
		Kind:    events.AnswerAccepted,
		Target:  models.TargetRef{Kind: models.TargetQuestion, ID: questionID},
		ActorID: actorID,
		Payload: events.AnswerPayload{
			AnswerID:         answerID,
			AnswerAuthorID:   answerAuthorID,
			QuestionID:       questionID,
			QuestionAuthorID: questionAuthorID,
			QuestionTitle:    title,
		},
	})
	return nil
}

// RecentActivity returns the latest site activity, newest first, for the
// global feed replay a late joiner receives.
func (s *QuestionService) RecentActivity(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.title, u.username, q.created_at,
			(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id)
		FROM questions q
		JOIN users u ON u.id = q.author_id
		ORDER BY q.created_at DESC, q.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []map[string]any
	for rows.Next() {
		var id int64
		var title, username string
		var createdAt time.Time
		var answerCount int
		if err := rows.Scan(&id, &title, &username, &createdAt, &answerCount); err != nil {
			return nil, err
		}
		activities = append(activities, map[string]any{
			"type":         "question_posted",
			"question_id":  id,
			"title":        title,
			"user":         username,
			"answer_count": answerCount,
			"created_at":   createdAt.UTC().Format(time.RFC3339),
		})
	}
	return activities, rows.Err()
}
