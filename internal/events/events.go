package events

import "github.com/stackgo/backend/internal/models"

// Event kinds
const (
	VoteCast          = "vote_cast"
	VoteChanged       = "vote_changed"
	VoteRetracted     = "vote_retracted"
	AnswerPosted      = "answer_posted"
	AnswerAccepted    = "answer_accepted"
	ReputationChanged = "reputation_changed"
)

// Event is a transient domain event. It is never persisted; it exists only
// to be routed to the registered handlers, each of which may persist its own
// derived record.
type Event struct {
	Kind    string
	Target  models.TargetRef
	ActorID int64
	Payload any
}

// VotePayload accompanies vote_cast, vote_changed and vote_retracted.
// Value is the vote's new value (0 on retraction); OldValue is the previous
// value (0 on a first cast). A change carries both so the reputation handler
// can net out the delta instead of applying only the new side.
type VotePayload struct {
	Value          int
	OldValue       int
	TargetAuthorID int64
	QuestionID     int64
	QuestionTitle  string
}

// AnswerPayload accompanies answer_posted and answer_accepted.
type AnswerPayload struct {
	AnswerID         int64
	AnswerAuthorID   int64
	QuestionID       int64
	QuestionAuthorID int64
	QuestionTitle    string
	AnswerCount      int
	ActorUsername    string
}

// ReputationPayload accompanies reputation_changed.
type ReputationPayload struct {
	UserID        int64
	NewReputation int
	Delta         int
	Reason        string
}
