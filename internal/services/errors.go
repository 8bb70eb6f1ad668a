package services

import "errors"

// Sentinel errors surfaced to callers. Serialization conflicts between
// concurrent toggles are retried internally; only a toggle that keeps
// losing the race surfaces ErrVoteConflict.
var (
	ErrSelfVote          = errors.New("cannot vote on own content")
	ErrInvalidVoteValue  = errors.New("vote value must be +1 or -1")
	ErrNotFound          = errors.New("not found")
	ErrNotQuestionAuthor = errors.New("only the question author can accept an answer")
	ErrAmountOutOfRange  = errors.New("reputation amount out of range")
	ErrReputationFloor   = errors.New("reputation would fall below the configured floor")
	ErrVoteConflict      = errors.New("vote lost the race against concurrent toggles")
)
