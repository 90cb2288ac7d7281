package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/mcqtutor/internal/backend"
	"github.com/victornm/mcqtutor/internal/chat"
	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
	"github.com/victornm/mcqtutor/internal/event"
	"github.com/victornm/mcqtutor/internal/quiz"
	"github.com/victornm/mcqtutor/internal/session"
)

func TestService_HandleSendMessage(t *testing.T) {
	type (
		inputs struct {
			text    string
			backend *fakeBackend
		}

		outputs struct {
			session domain.Session
			msg     domain.Message
			err     error
			backend *fakeBackend
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should append the user message and the chat reply": {
			arrange: func() inputs {
				return inputs{
					text:    "What is the capital of France?",
					backend: &fakeBackend{reply: &backend.ChatReply{Content: "Paris."}},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Len(t, out.session.Messages, 2, "one submission should grow the log by exactly two messages")

				require.Equal(t, domain.RoleUser, out.session.Messages[0].Role)
				require.Equal(t, "What is the capital of France?", out.session.Messages[0].Content)

				require.Equal(t, domain.RoleAssistant, out.session.Messages[1].Role)
				require.Equal(t, "Paris.", out.session.Messages[1].Content)
				require.Nil(t, out.session.Messages[1].Quiz)
			},
		},

		"should substitute the fallback reply for an empty chat reply": {
			arrange: func() inputs {
				return inputs{
					text:    "hm",
					backend: &fakeBackend{reply: &backend.ChatReply{}},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Len(t, out.session.Messages, 2)
				require.Equal(t, "I'm not sure how to respond to that.", out.session.Messages[1].Content)
			},
		},

		"should generate a quiz and attach it to the assistant message": {
			arrange: func() inputs {
				return inputs{
					text:    "Generate 2 MCQs on Go",
					backend: &fakeBackend{quiz: makeGeneratedQuiz("Go")},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Len(t, out.session.Messages, 2, "the quiz branch should also grow the log by exactly two messages")

				msg := out.session.Messages[1]
				require.Equal(t, domain.RoleAssistant, msg.Role)
				require.Equal(t, "Here are some multiple choice questions on Go:", msg.Content)
				require.NotNil(t, msg.Quiz)
				require.Equal(t, "Go", msg.Quiz.Topic)
				require.Len(t, msg.Quiz.Questions, 1)
				require.NotEmpty(t, msg.Quiz.QuizID)
				require.NotEmpty(t, msg.Quiz.Questions[0].QuestionID)

				require.Equal(t, "Go", out.backend.generateTopic)
				require.Equal(t, 4, out.backend.generateCount)
			},
		},

		"should append the apology instead of failing the caller on a chat error": {
			arrange: func() inputs {
				return inputs{
					text:    "What is the capital of France?",
					backend: &fakeBackend{err: errors.Network(context.DeadlineExceeded)},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err, "backend failures become visible messages, not errors")
				require.Len(t, out.session.Messages, 2, "the failure path still grows the log by exactly two messages")
				require.Equal(t, "Sorry, there was an error processing your request. Please try again.", out.session.Messages[1].Content)
			},
		},

		"should append the apology and no partial quiz on a generation error": {
			arrange: func() inputs {
				return inputs{
					text:    "Generate MCQs on Go",
					backend: &fakeBackend{err: errors.Network(context.DeadlineExceeded)},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Len(t, out.session.Messages, 2)
				require.Equal(t, "Sorry, there was an error processing your request. Please try again.", out.session.Messages[1].Content)
				require.Nil(t, out.session.Messages[1].Quiz, "no partial quiz after a failure")
			},
		},

		"should treat blank input as a no-op": {
			arrange: func() inputs {
				return inputs{
					text:    "   ",
					backend: &fakeBackend{},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Empty(t, out.msg.MessageID)
				require.Empty(t, out.session.Messages)
				require.Zero(t, out.backend.sendCalls, "blank input should not reach the backend")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()

			store, err := session.NewStore(session.Config{})
			require.NoError(t, err)
			sessionID := store.ActiveID()

			s := chat.NewService(chat.Config{
				Backend: in.backend,
				Store:   store,
			})

			msg, err := s.HandleSendMessage(context.Background(), sessionID, in.text)

			ss, getErr := store.Get(sessionID)
			require.NoError(t, getErr)

			require.False(t, s.Loading(sessionID), "the loading flag should be cleared whatever branch ran")

			tt.assert(t, outputs{session: ss, msg: msg, err: err, backend: in.backend})
		})
	}
}

func TestService_HandleSendMessage_CreatesCard(t *testing.T) {
	b := &fakeBackend{quiz: makeGeneratedQuiz("Go")}

	store, err := session.NewStore(session.Config{})
	require.NoError(t, err)

	cards := quiz.NewRegistry(quiz.RegistryConfig{})

	s := chat.NewService(chat.Config{
		Backend: b,
		Store:   store,
		Cards:   cards,
	})

	msg, err := s.HandleSendMessage(context.Background(), store.ActiveID(), "quiz me on Go")
	require.NoError(t, err)
	require.NotNil(t, msg.Quiz)

	card, err := cards.Get(msg.Quiz.QuizID)
	require.NoError(t, err)
	require.Equal(t, quiz.StateAnswering, card.State())
}

func TestService_HandleSendMessage_PublishesQuizGenerated(t *testing.T) {
	b := &fakeBackend{quiz: makeGeneratedQuiz("Go")}

	eb := event.NewBus()

	var published []domain.EventQuizGenerated
	eb.Subscribe(domain.EventNameQuizGenerated, func(_ context.Context, e event.Event) error {
		published = append(published, e.(domain.EventQuizGenerated))
		return nil
	})

	store, err := session.NewStore(session.Config{})
	require.NoError(t, err)

	s := chat.NewService(chat.Config{
		Backend:  b,
		Store:    store,
		EventBus: eb,
	})

	msg, err := s.HandleSendMessage(context.Background(), store.ActiveID(), "quiz me on Go")
	require.NoError(t, err)

	eb.Stop()

	require.Len(t, published, 1)
	require.Equal(t, msg.Quiz.QuizID, published[0].Quiz.QuizID)
}

func TestService_ReusesEmbeddedQuiz(t *testing.T) {
	// A merged-classification backend returns the quiz inside the chat reply;
	// the controller must not call the generate endpoint again.
	b := &fakeBackend{}

	cls := staticClassifier{cl: chat.Classification{
		IsQuizRequest: true,
		Topic:         "Go",
		Reply: &backend.ChatReply{
			IsQuizRequest: true,
			QuizTopic:     "Go",
			Quiz:          makeGeneratedQuiz("Go"),
		},
	}}

	store, err := session.NewStore(session.Config{})
	require.NoError(t, err)

	s := chat.NewService(chat.Config{
		Backend:    b,
		Store:      store,
		Classifier: cls,
	})

	msg, err := s.HandleSendMessage(context.Background(), store.ActiveID(), "Generate MCQs on Go")
	require.NoError(t, err)

	require.NotNil(t, msg.Quiz)
	require.Zero(t, b.generateCalls, "the embedded quiz should be reused")
}

func makeGeneratedQuiz(topic string) *backend.GeneratedQuiz {
	return &backend.GeneratedQuiz{
		Topic: topic,
		Questions: []backend.GeneratedQuestion{
			{
				Question: "What does go vet do?",
				Options: backend.OptionMap{
					{Key: "a", Text: "Formats"},
					{Key: "b", Text: "Reports suspicious constructs"},
				},
				CorrectAnswer: "b",
			},
		},
	}
}

type fakeBackend struct {
	reply *backend.ChatReply
	quiz  *backend.GeneratedQuiz
	err   error

	sendCalls     int
	generateCalls int
	generateTopic string
	generateCount int
}

func (b *fakeBackend) SendMessage(_ context.Context, _ string) (*backend.ChatReply, error) {
	b.sendCalls++
	return b.reply, b.err
}

func (b *fakeBackend) GenerateQuiz(_ context.Context, topic string, numQuestions int) (*backend.GeneratedQuiz, error) {
	b.generateCalls++
	b.generateTopic = topic
	b.generateCount = numQuestions
	return b.quiz, b.err
}

type staticClassifier struct {
	cl chat.Classification
}

func (c staticClassifier) Classify(_ context.Context, _ string) (chat.Classification, error) {
	return c.cl, nil
}
