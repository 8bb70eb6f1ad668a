package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Topics are the named channels live connections subscribe to.
const (
	TopicGlobal = "global"
	TopicAdmin  = "admin"
)

func UserTopic(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func QuestionTopic(questionID int64) string {
	return fmt.Sprintf("question:%d", questionID)
}

// ParseQuestionTopic returns the question id for a question:<id> topic.
func ParseQuestionTopic(topic string) (int64, bool) {
	rest, ok := strings.CutPrefix(topic, "question:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
