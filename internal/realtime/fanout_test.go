package realtime

import (
	"context"
	"testing"

	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

type fixedScores struct {
	score, upvotes, downvotes int
	err                       error
}

func (f fixedScores) TargetScore(context.Context, models.TargetRef) (int, int, int, error) {
	return f.score, f.upvotes, f.downvotes, f.err
}

func TestEventFanout_HandleVoteEvent(t *testing.T) {
	hub := NewHub()
	fanout := NewEventFanout(hub, fixedScores{score: 4, upvotes: 6, downvotes: 2})

	questionConn := hub.NewConnection(nil, models.Identity{UserID: 1})
	hub.Subscribe(questionConn, models.QuestionTopic(42))
	globalConn := hub.NewConnection(nil, models.Identity{UserID: 2})
	hub.Subscribe(globalConn, models.TopicGlobal)

	err := fanout.HandleVoteEvent(context.Background(), events.Event{
		Kind:    events.VoteCast,
		Target:  models.TargetRef{Kind: models.TargetAnswer, ID: 55},
		ActorID: 7,
		Payload: events.VotePayload{Value: 1, TargetAuthorID: 3, QuestionID: 42},
	})
	assert.NoError(t, err)

	got := drain(questionConn)
	assert.Len(t, got, 1)
	assert.Equal(t, models.MsgVoteUpdate, got[0].Type)
	assert.Equal(t, 4, *got[0].VoteScore)
	assert.Equal(t, 6, *got[0].Upvotes)
	assert.Equal(t, 2, *got[0].Downvotes)
	assert.Equal(t, int64(55), got[0].AnswerID)

	activity := drain(globalConn)
	assert.Len(t, activity, 1)
	assert.Equal(t, models.MsgNewActivity, activity[0].Type)
	assert.Equal(t, "answer:55", activity[0].Activity["target"])
}

func TestEventFanout_HandleAnswerPosted(t *testing.T) {
	hub := NewHub()
	fanout := NewEventFanout(hub, fixedScores{})

	conn := hub.NewConnection(nil, models.Identity{UserID: 1})
	hub.Subscribe(conn, models.QuestionTopic(42))

	err := fanout.HandleAnswerPosted(context.Background(), events.Event{
		Kind:    events.AnswerPosted,
		Target:  models.TargetRef{Kind: models.TargetQuestion, ID: 42},
		ActorID: 7,
		Payload: events.AnswerPayload{
			AnswerID:      55,
			QuestionID:    42,
			AnswerCount:   4,
			ActorUsername: "alice",
		},
	})
	assert.NoError(t, err)

	got := drain(conn)
	assert.Len(t, got, 1)
	assert.Equal(t, models.MsgNewAnswer, got[0].Type)
	assert.Equal(t, 4, *got[0].AnswerCount)
	assert.Equal(t, "alice", got[0].Answer["author"])
}

func TestEventFanout_HandleAnswerAccepted(t *testing.T) {
	hub := NewHub()
	fanout := NewEventFanout(hub, fixedScores{})

	conn := hub.NewConnection(nil, models.Identity{UserID: 1})
	hub.Subscribe(conn, models.QuestionTopic(42))

	err := fanout.HandleAnswerAccepted(context.Background(), events.Event{
		Kind:    events.AnswerAccepted,
		Target:  models.TargetRef{Kind: models.TargetQuestion, ID: 42},
		Payload: events.AnswerPayload{AnswerID: 55, QuestionID: 42},
	})
	assert.NoError(t, err)

	got := drain(conn)
	assert.Len(t, got, 1)
	assert.Equal(t, models.MsgAnswerAccepted, got[0].Type)
	assert.Equal(t, int64(55), got[0].AnswerID)
	assert.True(t, *got[0].QuestionAnswered)
}

func TestEventFanout_HandleReputationChanged(t *testing.T) {
	hub := NewHub()
	fanout := NewEventFanout(hub, fixedScores{})

	conn := hub.NewConnection(nil, models.Identity{UserID: 3})
	hub.Subscribe(conn, models.UserTopic(3))

	err := fanout.HandleReputationChanged(context.Background(), events.Event{
		Kind:   events.ReputationChanged,
		Target: models.TargetRef{Kind: models.TargetAnswer, ID: 55},
		Payload: events.ReputationPayload{
			UserID:        3,
			NewReputation: 110,
			Delta:         10,
			Reason:        "Answer Upvoted",
		},
	})
	assert.NoError(t, err)

	got := drain(conn)
	assert.Len(t, got, 1)
	assert.Equal(t, models.MsgReputationUpdate, got[0].Type)
	assert.Equal(t, 110, *got[0].NewReputation)
	assert.Equal(t, 10, *got[0].Change)
	assert.Equal(t, "Answer Upvoted", got[0].Reason)
}
