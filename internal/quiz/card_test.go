package quiz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/mcqtutor/internal/backend"
	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
	"github.com/victornm/mcqtutor/internal/event"
	"github.com/victornm/mcqtutor/internal/quiz"
)

func TestCard_SelectOption(t *testing.T) {
	r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: &fakeEvaluator{}})
	card := r.Create(makeQuiz())

	t.Run("should record and overwrite a selection", func(t *testing.T) {
		require.NoError(t, card.SelectOption("q1", "a"))
		require.NoError(t, card.SelectOption("q1", "b"))
		require.Equal(t, map[string]string{"q1": "b"}, card.Selected())
	})

	t.Run("should reject an unknown question", func(t *testing.T) {
		err := card.SelectOption("nope", "a")
		require.Error(t, err)
		require.Equal(t, errors.CodeNotFound, errors.Convert(err).Code)
	})

	t.Run("should reject an unknown option", func(t *testing.T) {
		err := card.SelectOption("q1", "z")
		require.Error(t, err)
		require.True(t, errors.IsValidation(err))
	})
}

func TestCard_Submit(t *testing.T) {
	type (
		inputs struct {
			evaluator *fakeEvaluator
			selected  map[string]string
		}

		outputs struct {
			card      *quiz.Card
			evaluator *fakeEvaluator
			ev        *domain.Evaluation
			err       error
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should evaluate a fully answered quiz": {
			arrange: func() inputs {
				return inputs{
					evaluator: &fakeEvaluator{ev: makeEvaluation(2, 2)},
					selected:  map[string]string{"q1": "a", "q2": "d"},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Equal(t, quiz.StateEvaluated, out.card.State())
				require.Equal(t, 2, out.ev.Score)

				require.Len(t, out.evaluator.subs, 2, "every question should be submitted with its snapshot")
				require.Equal(t, "q1", out.evaluator.subs[0].QuestionID)
				require.Equal(t, "a", out.evaluator.subs[0].SelectedOptionID)
			},
		},

		"should reject an incomplete submission before any network call": {
			arrange: func() inputs {
				return inputs{
					evaluator: &fakeEvaluator{ev: makeEvaluation(1, 2)},
					selected:  map[string]string{"q1": "a"},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				require.True(t, errors.IsValidation(out.err))
				require.Zero(t, out.evaluator.calls, "the evaluator must not be reached")
				require.Equal(t, quiz.StateAnswering, out.card.State())
				require.Equal(t, map[string]string{"q1": "a"}, out.card.Selected(), "selections survive a rejected submission")
			},
		},

		"should return to answering with selections intact on an evaluation error": {
			arrange: func() inputs {
				return inputs{
					evaluator: &fakeEvaluator{err: errors.Network(context.DeadlineExceeded)},
					selected:  map[string]string{"q1": "a", "q2": "d"},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				require.True(t, errors.IsNetwork(out.err))
				require.Equal(t, quiz.StateAnswering, out.card.State())
				require.Nil(t, out.card.Evaluation(), "nothing is retained from the failed attempt")
				require.Equal(t, map[string]string{"q1": "a", "q2": "d"}, out.card.Selected())
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()

			r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: in.evaluator})
			card := r.Create(makeQuiz())

			for q, o := range in.selected {
				require.NoError(t, card.SelectOption(q, o))
			}

			ev, err := card.Submit(context.Background())
			tt.assert(t, outputs{card: card, evaluator: in.evaluator, ev: ev, err: err})
		})
	}
}

func TestCard_CompletionNotification(t *testing.T) {
	t.Run("should fire exactly once across submit, retry and submit", func(t *testing.T) {
		eb := event.NewBus()

		var completed []domain.EventQuizCompleted
		eb.Subscribe(domain.EventNameQuizCompleted, func(_ context.Context, e event.Event) error {
			completed = append(completed, e.(domain.EventQuizCompleted))
			return nil
		})

		r := quiz.NewRegistry(quiz.RegistryConfig{
			Evaluator: &fakeEvaluator{ev: makeEvaluation(2, 2)},
			EventBus:  eb,
		})
		card := r.Create(makeQuiz())

		answerAll(t, card)
		_, err := card.Submit(context.Background())
		require.NoError(t, err)

		require.NoError(t, card.Retry())

		answerAll(t, card)
		_, err = card.Submit(context.Background())
		require.NoError(t, err)

		eb.Stop()

		require.Len(t, completed, 1, "the completion notification does not re-arm")
		require.False(t, completed[0].Skipped)
		require.NotNil(t, completed[0].Evaluation)
	})

	t.Run("should fire once with the skipped outcome on skip", func(t *testing.T) {
		eb := event.NewBus()

		var completed []domain.EventQuizCompleted
		eb.Subscribe(domain.EventNameQuizCompleted, func(_ context.Context, e event.Event) error {
			completed = append(completed, e.(domain.EventQuizCompleted))
			return nil
		})

		r := quiz.NewRegistry(quiz.RegistryConfig{
			Evaluator: &fakeEvaluator{ev: makeEvaluation(2, 2)},
			EventBus:  eb,
		})
		card := r.Create(makeQuiz())

		require.NoError(t, card.Skip(context.Background()))
		require.True(t, card.Minimized())

		eb.Stop()

		require.Len(t, completed, 1)
		require.True(t, completed[0].Skipped)
		require.Nil(t, completed[0].Evaluation)
	})
}

func TestCard_Retry(t *testing.T) {
	r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: &fakeEvaluator{ev: makeEvaluation(2, 2)}})
	card := r.Create(makeQuiz())

	require.Error(t, card.Retry(), "retry is only allowed after evaluation")

	answerAll(t, card)
	_, err := card.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, card.ToggleMinimized())
	require.NoError(t, card.Retry())

	require.Equal(t, quiz.StateAnswering, card.State())
	require.Empty(t, card.Selected())
	require.Nil(t, card.Evaluation())
	require.False(t, card.Minimized(), "retry restores the expanded answering view")
}

func TestCard_Skip(t *testing.T) {
	r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: &fakeEvaluator{ev: makeEvaluation(2, 2)}})
	card := r.Create(makeQuiz())

	answerAll(t, card)
	_, err := card.Submit(context.Background())
	require.NoError(t, err)

	require.Error(t, card.Skip(context.Background()), "an evaluated quiz cannot be skipped")
}

func TestCard_ToggleMinimized(t *testing.T) {
	r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: &fakeEvaluator{ev: makeEvaluation(2, 2)}})
	card := r.Create(makeQuiz())

	require.Error(t, card.ToggleMinimized(), "minimize is only allowed after evaluation")

	answerAll(t, card)
	_, err := card.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, card.ToggleMinimized())
	require.True(t, card.Minimized())
	require.NoError(t, card.ToggleMinimized())
	require.False(t, card.Minimized())
}

func TestCard_Summary(t *testing.T) {
	r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: &fakeEvaluator{ev: makeEvaluation(1, 2)}})
	card := r.Create(makeQuiz())

	require.Empty(t, card.Summary(), "no summary before evaluation")

	answerAll(t, card)
	_, err := card.Submit(context.Background())
	require.NoError(t, err)

	require.Equal(t, "Quiz Results: Go - Score: 1/2 (50%)", card.Summary())
}

func TestScoreCategory(t *testing.T) {
	tests := map[string]struct {
		percentage int
		category   string
	}{
		"100 is excellent": {100, "excellent"},
		"80 is excellent":  {80, "excellent"},
		"79 is good":       {79, "good"},
		"60 is good":       {60, "good"},
		"59 is average":    {59, "average"},
		"40 is average":    {40, "average"},
		"39 is poor":       {39, "poor"},
		"0 is poor":        {0, "poor"},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.category, quiz.ScoreCategory(tt.percentage))
		})
	}
}

func TestRegistry(t *testing.T) {
	r := quiz.NewRegistry(quiz.RegistryConfig{Evaluator: &fakeEvaluator{}})

	q := makeQuiz()
	r.Create(q)

	card, err := r.Get(q.QuizID)
	require.NoError(t, err)
	require.Equal(t, q.QuizID, card.Quiz().QuizID)

	r.Drop(q.QuizID)

	_, err = r.Get(q.QuizID)
	require.Error(t, err)
	require.Equal(t, errors.CodeNotFound, errors.Convert(err).Code)
}

func makeQuiz() domain.Quiz {
	return domain.Quiz{
		QuizID: "quiz-1",
		Topic:  "Go",
		Questions: []domain.Question{
			{
				QuestionID:   "q1",
				QuestionText: "What does go vet do?",
				Options: []domain.Option{
					{OptionID: "a", OptionText: "Reports suspicious constructs"},
					{OptionID: "b", OptionText: "Formats"},
				},
				CorrectAnswerID: "a",
			},
			{
				QuestionID:   "q2",
				QuestionText: "Which keyword starts a goroutine?",
				Options: []domain.Option{
					{OptionID: "c", OptionText: "run"},
					{OptionID: "d", OptionText: "go"},
				},
				CorrectAnswerID: "d",
			},
		},
	}
}

func answerAll(t *testing.T, card *quiz.Card) {
	t.Helper()

	require.NoError(t, card.SelectOption("q1", "a"))
	require.NoError(t, card.SelectOption("q2", "d"))
}

func makeEvaluation(score, total int) *domain.Evaluation {
	return &domain.Evaluation{
		Score:      score,
		Total:      total,
		Percentage: score * 100 / total,
	}
}

type fakeEvaluator struct {
	ev  *domain.Evaluation
	err error

	calls int
	subs  []backend.Submission
}

func (e *fakeEvaluator) EvaluateQuiz(_ context.Context, subs []backend.Submission) (*domain.Evaluation, error) {
	e.calls++
	e.subs = subs
	return e.ev, e.err
}
