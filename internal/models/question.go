package models

// QuestionSnapshot is the live view of a question sent to subscribers when
// they join the question's topic, so late joiners need no historical replay.
type QuestionSnapshot struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	VoteScore        int    `json:"vote_score"`
	Upvotes          int    `json:"upvotes"`
	Downvotes        int    `json:"downvotes"`
	AnswerCount      int    `json:"answer_count"`
	IsAnswered       bool   `json:"is_answered"`
	AcceptedAnswerID *int64 `json:"accepted_answer_id"`
}
