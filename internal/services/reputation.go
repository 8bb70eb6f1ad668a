package services

import (
	"fmt"

	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
)

// Reputation rules. The vote and question services apply these entries with
// the ledger inside their own transactions, so a rejected entry rolls back
// the vote or acceptance that caused it.

type ledgerEntry struct {
	userID      int64
	txType      string
	amount      int
	description string
}

// voteLedgerEntries returns the ledger entries one toggle produces. A flip
// is netted by fully reversing the old stance's entries and then applying
// the new stance's entries as fresh offsetting rows; a retraction reverses
// the original stance only.
func voteLedgerEntries(target models.TargetRef, actorID int64, payload events.VotePayload) []ledgerEntry {
	var entries []ledgerEntry
	if payload.OldValue != 0 {
		entries = append(entries, stanceEntries(target, actorID, payload, payload.OldValue, true)...)
	}
	if payload.Value != 0 {
		entries = append(entries, stanceEntries(target, actorID, payload, payload.Value, false)...)
	}
	return entries
}

// stanceEntries returns the entries one vote stance produces. With reverse
// set, amounts are negated to offset a stance being withdrawn.
func stanceEntries(target models.TargetRef, actorID int64, payload events.VotePayload, value int, reverse bool) []ledgerEntry {
	var entries []ledgerEntry

	suffix := ""
	sign := 1
	if reverse {
		suffix = " (removed)"
		sign = -1
	}

	if value > 0 {
		txType := models.TxQuestionUpvote
		if target.Kind == models.TargetAnswer {
			txType = models.TxAnswerUpvote
		}
		amount, _ := models.ReputationAmount(txType)
		entries = append(entries, ledgerEntry{
			userID:      payload.TargetAuthorID,
			txType:      txType,
			amount:      sign * amount,
			description: fmt.Sprintf("%s upvoted: %s%s", target.Kind, payload.QuestionTitle, suffix),
		})
		return entries
	}

	txType := models.TxQuestionDownvote
	if target.Kind == models.TargetAnswer {
		txType = models.TxAnswerDownvote
	}
	amount, _ := models.ReputationAmount(txType)
	entries = append(entries, ledgerEntry{
		userID:      payload.TargetAuthorID,
		txType:      txType,
		amount:      sign * amount,
		description: fmt.Sprintf("%s downvoted: %s%s", target.Kind, payload.QuestionTitle, suffix),
	})

	// Downvoting costs the voter as well.
	given, _ := models.ReputationAmount(models.TxDownvoteGiven)
	entries = append(entries, ledgerEntry{
		userID:      actorID,
		txType:      models.TxDownvoteGiven,
		amount:      sign * given,
		description: fmt.Sprintf("Downvote given on %s%s", target.Kind, suffix),
	})
	return entries
}

// acceptedLedgerEntry returns the answer author's award for an acceptance.
func acceptedLedgerEntry(answerAuthorID int64, questionTitle string) ledgerEntry {
	amount, _ := models.ReputationAmount(models.TxAnswerAccepted)
	return ledgerEntry{
		userID:      answerAuthorID,
		txType:      models.TxAnswerAccepted,
		amount:      amount,
		description: fmt.Sprintf("Answer accepted for question: %s", questionTitle),
	}
}
