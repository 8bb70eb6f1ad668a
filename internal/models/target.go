package models

import "fmt"

// TargetKind is the closed set of content kinds that can be voted on and
// referenced by reputation transactions and notifications.
type TargetKind string

const (
	TargetQuestion TargetKind = "question"
	TargetAnswer   TargetKind = "answer"
)

func (k TargetKind) Valid() bool {
	return k == TargetQuestion || k == TargetAnswer
}

// TargetRef identifies one piece of content (a question or an answer).
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   int64      `json:"id"`
}

func (t TargetRef) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}
