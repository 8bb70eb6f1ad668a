package realtime

import (
	"context"
	"fmt"

	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
)

// ScoreSource provides the live aggregates the fan-out attaches to pushes.
type ScoreSource interface {
	TargetScore(ctx context.Context, target models.TargetRef) (score, upvotes, downvotes int, err error)
}

// EventFanout translates domain events into topic publishes. Registered on
// the event bus next to the ledger and notification handlers; its failures
// degrade live delivery only.
type EventFanout struct {
	hub    *Hub
	scores ScoreSource
}

func NewEventFanout(hub *Hub, scores ScoreSource) *EventFanout {
	return &EventFanout{hub: hub, scores: scores}
}

func (f *EventFanout) HandleVoteEvent(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.VotePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}

	score, upvotes, downvotes, err := f.scores.TargetScore(ctx, evt.Target)
	if err != nil {
		return err
	}

	msg := models.NewOutbound(models.MsgVoteUpdate)
	msg.VoteScore = models.IntPtr(score)
	msg.Upvotes = models.IntPtr(upvotes)
	msg.Downvotes = models.IntPtr(downvotes)
	if evt.Target.Kind == models.TargetAnswer {
		msg.AnswerID = evt.Target.ID
	}
	f.hub.Publish(models.QuestionTopic(payload.QuestionID), msg)

	activity := models.NewOutbound(models.MsgNewActivity)
	activity.Activity = map[string]any{
		"type":        evt.Kind,
		"target":      evt.Target.String(),
		"question_id": payload.QuestionID,
		"vote_score":  score,
	}
	f.hub.Publish(models.TopicGlobal, activity)

	return nil
}

func (f *EventFanout) HandleAnswerPosted(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.AnswerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}

	msg := models.NewOutbound(models.MsgNewAnswer)
	msg.Answer = map[string]any{
		"id":          payload.AnswerID,
		"question_id": payload.QuestionID,
		"author":      payload.ActorUsername,
	}
	msg.AnswerCount = models.IntPtr(payload.AnswerCount)
	f.hub.Publish(models.QuestionTopic(payload.QuestionID), msg)

	activity := models.NewOutbound(models.MsgNewActivity)
	activity.Activity = map[string]any{
		"type":        evt.Kind,
		"question_id": payload.QuestionID,
		"answer_id":   payload.AnswerID,
		"author":      payload.ActorUsername,
	}
	f.hub.Publish(models.TopicGlobal, activity)

	return nil
}

func (f *EventFanout) HandleAnswerAccepted(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.AnswerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}

	answered := true
	msg := models.NewOutbound(models.MsgAnswerAccepted)
	msg.AnswerID = payload.AnswerID
	msg.QuestionAnswered = &answered
	f.hub.Publish(models.QuestionTopic(payload.QuestionID), msg)

	return nil
}

func (f *EventFanout) HandleReputationChanged(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(events.ReputationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Kind)
	}

	msg := models.NewOutbound(models.MsgReputationUpdate)
	msg.NewReputation = models.IntPtr(payload.NewReputation)
	msg.Change = models.IntPtr(payload.Delta)
	msg.Reason = payload.Reason
	f.hub.Publish(models.UserTopic(payload.UserID), msg)

	return nil
}
