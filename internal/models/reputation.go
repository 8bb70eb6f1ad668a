package models

import "time"

// Reputation transaction types and their canonical amounts. BountyAwarded
// carries a caller-supplied amount; everything else uses the table below.
const (
	TxQuestionUpvote   = "question_upvote"
	TxAnswerUpvote     = "answer_upvote"
	TxAnswerAccepted   = "answer_accepted"
	TxQuestionDownvote = "question_downvote"
	TxAnswerDownvote   = "answer_downvote"
	TxDownvoteGiven    = "downvote_given"
	TxSpamPenalty      = "spam_penalty"
	TxBountyAwarded    = "bounty_awarded"
	TxModerationBonus  = "moderation_bonus"
)

var reputationAmounts = map[string]int{
	TxQuestionUpvote:   5,
	TxAnswerUpvote:     10,
	TxAnswerAccepted:   15,
	TxQuestionDownvote: -2,
	TxAnswerDownvote:   -2,
	TxDownvoteGiven:    -1,
	TxSpamPenalty:      -100,
	TxModerationBonus:  100,
}

var transactionLabels = map[string]string{
	TxQuestionUpvote:   "Question Upvoted",
	TxAnswerUpvote:     "Answer Upvoted",
	TxAnswerAccepted:   "Answer Accepted",
	TxQuestionDownvote: "Question Downvoted",
	TxAnswerDownvote:   "Answer Downvoted",
	TxDownvoteGiven:    "Downvote Given",
	TxSpamPenalty:      "Spam Penalty",
	TxBountyAwarded:    "Bounty Awarded",
	TxModerationBonus:  "Moderation Bonus",
}

// ReputationAmount returns the canonical amount for a transaction type.
// The second return is false for unknown types and for BountyAwarded,
// whose amount is decided per bounty.
func ReputationAmount(txType string) (int, bool) {
	amount, ok := reputationAmounts[txType]
	return amount, ok
}

// TransactionLabel returns the human-readable label for a transaction type,
// used as the reason string on reputation update pushes.
func TransactionLabel(txType string) string {
	if label, ok := transactionLabels[txType]; ok {
		return label
	}
	return txType
}

// ReputationTransaction is one immutable row in the reputation ledger.
// Corrections are new offsetting rows, never updates.
type ReputationTransaction struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	TransactionType string     `json:"transaction_type" db:"transaction_type"`
	Amount          int        `json:"amount" db:"amount"`
	Description     string     `json:"description" db:"description"`
	TargetKind      TargetKind `json:"target_kind" db:"target_kind"`
	TargetID        int64      `json:"target_id" db:"target_id"`
	BalanceAfter    int        `json:"balance_after" db:"balance_after"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
