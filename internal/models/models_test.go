package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseQuestionTopic(t *testing.T) {
	id, ok := ParseQuestionTopic("question:42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, topic := range []string{"question:", "question:abc", "question:-1", "question:0", "user:42", "global"} {
		_, ok := ParseQuestionTopic(topic)
		assert.False(t, ok, topic)
	}
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "user:7", UserTopic(7))
	assert.Equal(t, "question:42", QuestionTopic(42))
}

func TestReputationAmounts(t *testing.T) {
	cases := map[string]int{
		TxQuestionUpvote:   5,
		TxAnswerUpvote:     10,
		TxAnswerAccepted:   15,
		TxQuestionDownvote: -2,
		TxAnswerDownvote:   -2,
		TxDownvoteGiven:    -1,
		TxSpamPenalty:      -100,
		TxModerationBonus:  100,
	}
	for txType, expected := range cases {
		amount, ok := ReputationAmount(txType)
		assert.True(t, ok, txType)
		assert.Equal(t, expected, amount, txType)
	}

	// Bounty amounts are decided per bounty, not by the table.
	_, ok := ReputationAmount(TxBountyAwarded)
	assert.False(t, ok)
}

func TestTransactionLabel(t *testing.T) {
	assert.Equal(t, "Answer Upvoted", TransactionLabel(TxAnswerUpvote))
	assert.Equal(t, "custom_type", TransactionLabel("custom_type"))
}

func TestTargetRef(t *testing.T) {
	assert.Equal(t, "answer:55", TargetRef{Kind: TargetAnswer, ID: 55}.String())
	assert.True(t, TargetQuestion.Valid())
	assert.True(t, TargetAnswer.Valid())
	assert.False(t, TargetKind("comment").Valid())
}

func TestNewOutboundTimestamp(t *testing.T) {
	msg := NewOutbound(MsgVoteUpdate)
	assert.Equal(t, MsgVoteUpdate, msg.Type)

	parsed, err := time.Parse(time.RFC3339, msg.Timestamp)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)

	data, err := json.Marshal(msg)
	assert.NoError(t, err)

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "vote_update", decoded["type"])
	assert.Contains(t, decoded, "timestamp")
	// Optional fields stay off the wire until set.
	assert.NotContains(t, decoded, "vote_score")
	assert.NotContains(t, decoded, "count")
}
