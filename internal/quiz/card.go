package quiz

import (
	"context"
	"fmt"
	"sync"

	"github.com/victornm/mcqtutor/internal/backend"
	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
	"github.com/victornm/mcqtutor/internal/event"
)

// Evaluator scores a completed set of answers. Implemented by the backend
// client.
type Evaluator interface {
	EvaluateQuiz(ctx context.Context, subs []backend.Submission) (*domain.Evaluation, error)
}

// State of a quiz card. Minimized is tracked separately, orthogonal to the
// answering flow.
type State int

const (
	StateAnswering State = iota
	StateSubmitting
	StateEvaluated
)

func (s State) String() string {
	switch s {
	case StateAnswering:
		return "answering"
	case StateSubmitting:
		return "submitting"
	case StateEvaluated:
		return "evaluated"
	}
	return "unknown"
}

// Card holds the ephemeral interaction state of one rendered quiz: selected
// options, submission progress and the evaluation. The quiz itself is never
// mutated. A card lives and dies with its quiz message; nothing here is
// persisted.
type Card struct {
	evaluator Evaluator
	eb        *event.Bus

	mu         sync.Mutex
	quiz       domain.Quiz
	selected   map[string]string
	state      State
	evaluation *domain.Evaluation
	minimized  bool
	signaled   bool
}

func newCard(q domain.Quiz, evaluator Evaluator, eb *event.Bus) *Card {
	return &Card{
		evaluator: evaluator,
		eb:        eb,
		quiz:      q,
		selected:  make(map[string]string),
	}
}

func (c *Card) Quiz() domain.Quiz {
	return c.quiz
}

func (c *Card) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Card) Minimized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.minimized
}

func (c *Card) Evaluation() *domain.Evaluation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evaluation
}

// Selected returns a copy of the current question→option selections.
func (c *Card) Selected() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.selected))
	for k, v := range c.selected {
		out[k] = v
	}
	return out
}

// SelectOption records the choice for one question, overwriting any earlier
// choice. Allowed only while answering.
func (c *Card) SelectOption(questionID, optionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAnswering {
		return errors.Validation("cannot change answers in state %s", c.state)
	}

	q, ok := c.question(questionID)
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: %s", questionID))
	}
	if q.OptionText(optionID) == "" {
		return errors.Validation("question %s has no option %s", questionID, optionID)
	}

	c.selected[questionID] = optionID
	return nil
}

// Submit sends the selections for evaluation. Every question must have an
// answer; otherwise the submission is rejected before any network call and
// the card stays in the answering state. On failure the card also returns to
// answering with nothing retained.
func (c *Card) Submit(ctx context.Context) (*domain.Evaluation, error) {
	c.mu.Lock()

	if c.state != StateAnswering {
		c.mu.Unlock()
		return nil, errors.Validation("cannot submit in state %s", c.state)
	}

	subs := make([]backend.Submission, 0, len(c.quiz.Questions))
	for _, q := range c.quiz.Questions {
		optionID, ok := c.selected[q.QuestionID]
		if !ok {
			c.mu.Unlock()
			return nil, errors.Validation("please answer all questions before submitting")
		}

		subs = append(subs, backend.Submission{
			QuestionID:       q.QuestionID,
			SelectedOptionID: optionID,
			Question:         q,
		})
	}

	c.state = StateSubmitting
	c.mu.Unlock()

	ev, err := c.evaluator.EvaluateQuiz(ctx, subs)

	c.mu.Lock()
	if err != nil {
		c.state = StateAnswering
		c.mu.Unlock()
		return nil, err
	}

	c.state = StateEvaluated
	c.evaluation = ev
	fire := !c.signaled
	// The guard flips before the notification goes out, so a re-entrant
	// handler cannot fire it twice.
	c.signaled = true
	c.mu.Unlock()

	if fire && c.eb != nil {
		c.eb.Publish(ctx, domain.EventQuizCompleted{
			QuizID:     c.quiz.QuizID,
			Evaluation: ev,
		})
	}

	return ev, nil
}

// Retry returns an evaluated card to a blank answering state. The completion
// notification is not re-armed.
func (c *Card) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEvaluated {
		return errors.Validation("cannot retry in state %s", c.state)
	}

	c.selected = make(map[string]string)
	c.evaluation = nil
	c.minimized = false
	c.state = StateAnswering
	return nil
}

// Skip abandons an unanswered quiz: it fires the one-time completion
// notification and minimizes the card.
func (c *Card) Skip(ctx context.Context) error {
	c.mu.Lock()

	if c.state != StateAnswering {
		c.mu.Unlock()
		return errors.Validation("cannot skip in state %s", c.state)
	}

	fire := !c.signaled
	c.signaled = true
	c.minimized = true
	c.mu.Unlock()

	if fire && c.eb != nil {
		c.eb.Publish(ctx, domain.EventQuizCompleted{
			QuizID:  c.quiz.QuizID,
			Skipped: true,
		})
	}

	return nil
}

// ToggleMinimized flips the presentation-only minimized flag of an evaluated
// card.
func (c *Card) ToggleMinimized() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEvaluated {
		return errors.Validation("cannot minimize in state %s", c.state)
	}

	c.minimized = !c.minimized
	return nil
}

// Summary is the one-line result shown for a minimized evaluated card.
func (c *Card) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.evaluation == nil {
		return ""
	}

	ev := c.evaluation
	return fmt.Sprintf("Quiz Results: %s - Score: %d/%d (%d%%)", c.quiz.Topic, ev.Score, ev.Total, ev.Percentage)
}

func (c *Card) question(questionID string) (domain.Question, bool) {
	for _, q := range c.quiz.Questions {
		if q.QuestionID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

// ScoreCategory buckets a percentage for display.
func ScoreCategory(percentage int) string {
	switch {
	case percentage >= 80:
		return "excellent"
	case percentage >= 60:
		return "good"
	case percentage >= 40:
		return "average"
	default:
		return "poor"
	}
}
