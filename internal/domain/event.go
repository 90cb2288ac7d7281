package domain

const (
	EventNameSessionCreated  = "session.created"
	EventNameMessageAppended = "message.appended"
	EventNameQuizGenerated   = "quiz.generated"
	EventNameQuizCompleted   = "quiz.completed"
)

type EventSessionCreated struct {
	Session Session
}

func (EventSessionCreated) Name() string { return EventNameSessionCreated }

type EventMessageAppended struct {
	SessionID string
	Message   Message
}

func (EventMessageAppended) Name() string { return EventNameMessageAppended }

type EventQuizGenerated struct {
	SessionID string
	Quiz      Quiz
}

func (EventQuizGenerated) Name() string { return EventNameQuizGenerated }

// EventQuizCompleted fires at most once per quiz instance, on the first
// successful evaluation or on skip.
type EventQuizCompleted struct {
	QuizID     string
	Skipped    bool
	Evaluation *Evaluation
}

func (EventQuizCompleted) Name() string { return EventNameQuizCompleted }
