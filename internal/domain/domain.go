package domain

import "time"

// Role determines how a message renders and whether it may carry a quiz.
// Only assistant messages carry one.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session represents one ordered conversation thread between user and
// assistant. Messages are append-only; a session is never merged or deleted.
type Session struct {
	SessionID string
	Title     string
	Messages  []Message
}

// Message is immutable once appended to a session.
type Message struct {
	MessageID string
	Role      Role
	Content   string
	Timestamp time.Time
	Quiz      *Quiz
}

// Quiz is a generated set of MCQs attached to exactly one assistant message.
// It is never mutated after creation; answer selections and the evaluation
// are tracked separately.
type Quiz struct {
	QuizID    string
	Topic     string
	Questions []Question
}

type Question struct {
	QuestionID      string
	QuestionText    string
	Options         []Option
	CorrectAnswerID string
	Explanation     string
}

// Option id is a short token (usually a letter key) unique within its
// question and stable across the round-trip to the backend.
type Option struct {
	OptionID   string
	OptionText string
}

// OptionText returns the display text for an option id, or "" when the id is
// not one of the question's options.
func (q Question) OptionText(optionID string) string {
	for _, o := range q.Options {
		if o.OptionID == optionID {
			return o.OptionText
		}
	}
	return ""
}

// Evaluation is the scored outcome of submitting answers to a quiz.
// Results align 1:1 with the quiz's questions, in order.
type Evaluation struct {
	Score      int
	Total      int
	Percentage int
	Results    []Result
}

type Result struct {
	Question      string
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
	Explanation   string
}
