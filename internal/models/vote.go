package models

import "time"

// Vote is one user's current stance on one target. At most one row exists
// per (user, target) pair; the vote service enforces this together with a
// unique constraint on (user_id, target_kind, target_id).
type Vote struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	TargetKind TargetKind `json:"target_kind" db:"target_kind"`
	TargetID   int64      `json:"target_id" db:"target_id"`
	Value      int        `json:"value" db:"value"` // +1 or -1
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
