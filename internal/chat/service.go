package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/victornm/mcqtutor/internal/backend"
	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/event"
	"github.com/victornm/mcqtutor/internal/quiz"
	"github.com/victornm/mcqtutor/internal/session"
)

const (
	fallbackReply = "I'm not sure how to respond to that."
	errorReply    = "Sorry, there was an error processing your request. Please try again."
)

// Backend is the slice of the API client the controller needs.
type Backend interface {
	SendMessage(ctx context.Context, text string) (*backend.ChatReply, error)
	GenerateQuiz(ctx context.Context, topic string, numQuestions int) (*backend.GeneratedQuiz, error)
}

type Config struct {
	Backend    Backend
	Store      *session.Store
	Cards      *quiz.Registry
	EventBus   *event.Bus
	Classifier Classifier
	// QuestionCount per generated quiz, default 4.
	QuestionCount int
}

// Service turns user input into session updates: it classifies each input as
// plain chat or a quiz request, drives the backend calls, and appends the
// resulting messages. Every backend failure becomes a visible apology
// message, never an error to the caller.
type Service struct {
	backend Backend
	store   *session.Store
	cards   *quiz.Registry
	eb      *event.Bus
	cls     Classifier
	nq      int

	mu      sync.Mutex
	loading map[string]bool
}

func NewService(c Config) *Service {
	nq := c.QuestionCount
	if nq <= 0 {
		nq = 4
	}

	cls := c.Classifier
	if cls == nil {
		cls = PatternClassifier{}
	}

	return &Service{
		backend: c.Backend,
		store:   c.Store,
		cards:   c.Cards,
		eb:      c.EventBus,
		cls:     cls,
		nq:      nq,
		loading: make(map[string]bool),
	}
}

// Loading reports whether a submission is in flight for the session. It is
// the single source of truth the input surface consults to block overlapping
// submissions; the controller itself does not reject them.
func (s *Service) Loading(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading[sessionID]
}

func (s *Service) setLoading(sessionID string, v bool) {
	s.mu.Lock()
	s.loading[sessionID] = v
	s.mu.Unlock()
}

// HandleSendMessage processes one user submission against a session. Blank
// input is a no-op. The user message is appended before any network
// round-trip; exactly one assistant message follows, carrying the chat
// reply, the generated quiz, or the apology. The loading flag is cleared
// unconditionally, whatever branch ran.
func (s *Service) HandleSendMessage(ctx context.Context, sessionID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, nil
	}

	s.setLoading(sessionID, true)
	defer s.setLoading(sessionID, false)

	if _, err := s.store.Apply(ctx, session.AppendUserMessage{
		SessionID: sessionID,
		Content:   text,
	}); err != nil {
		return domain.Message{}, err
	}

	cl, err := s.cls.Classify(ctx, text)
	if err != nil {
		slog.ErrorContext(ctx, "chat: classify failed", "session", sessionID, "error", err)
		return s.appendApology(ctx, sessionID)
	}

	if cl.IsQuizRequest {
		return s.handleQuizRequest(ctx, sessionID, cl)
	}

	return s.handleChat(ctx, sessionID, text, cl.Reply)
}

func (s *Service) handleChat(ctx context.Context, sessionID, text string, reply *backend.ChatReply) (domain.Message, error) {
	if reply == nil {
		var err error
		reply, err = s.backend.SendMessage(ctx, text)
		if err != nil {
			slog.ErrorContext(ctx, "chat: send message failed", "session", sessionID, "error", err)
			return s.appendApology(ctx, sessionID)
		}
	}

	content := reply.Content
	if content == "" {
		content = fallbackReply
	}

	return s.store.Apply(ctx, session.AppendAssistantMessage{
		SessionID: sessionID,
		Content:   content,
	})
}

func (s *Service) handleQuizRequest(ctx context.Context, sessionID string, cl Classification) (domain.Message, error) {
	topic := cl.Topic
	if topic == "" {
		topic = defaultTopic
	}

	raw := rawQuiz(cl)
	if raw == nil {
		var err error
		raw, err = s.backend.GenerateQuiz(ctx, topic, s.nq)
		if err != nil {
			slog.ErrorContext(ctx, "chat: generate quiz failed", "session", sessionID, "topic", topic, "error", err)
			return s.appendApology(ctx, sessionID)
		}
	}

	q := transformQuiz(raw)
	if s.cards != nil {
		s.cards.Create(q)
	}
	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventQuizGenerated{SessionID: sessionID, Quiz: q})
	}

	return s.store.Apply(ctx, session.AppendAssistantMessage{
		SessionID: sessionID,
		Content:   fmt.Sprintf("Here are some multiple choice questions on %s:", topic),
		Quiz:      &q,
	})
}

// appendApology converts a backend failure into the single visible error
// message. A partial quiz is never appended.
func (s *Service) appendApology(ctx context.Context, sessionID string) (domain.Message, error) {
	return s.store.Apply(ctx, session.AppendAssistantMessage{
		SessionID: sessionID,
		Content:   errorReply,
	})
}

func rawQuiz(cl Classification) *backend.GeneratedQuiz {
	if cl.Reply != nil && cl.Reply.Quiz != nil {
		return cl.Reply.Quiz
	}
	return nil
}

// transformQuiz converts the server-shaped quiz into the internal one: fresh
// ids, options kept in the backend's key order, safe defaults for anything
// missing.
func transformQuiz(raw *backend.GeneratedQuiz) domain.Quiz {
	q := domain.Quiz{
		QuizID:    uuid.NewString(),
		Topic:     raw.Topic,
		Questions: make([]domain.Question, 0, len(raw.Questions)),
	}
	if q.Topic == "" {
		q.Topic = "Quiz"
	}

	for _, rq := range raw.Questions {
		question := domain.Question{
			QuestionID:      uuid.NewString(),
			QuestionText:    rq.Question,
			Options:         make([]domain.Option, 0, len(rq.Options)),
			CorrectAnswerID: rq.CorrectAnswer,
			Explanation:     rq.Explanation,
		}
		if question.QuestionText == "" {
			question.QuestionText = "Question"
		}

		for _, o := range rq.Options {
			question.Options = append(question.Options, domain.Option{
				OptionID:   o.Key,
				OptionText: o.Text,
			})
		}

		q.Questions = append(q.Questions, question)
	}

	return q
}
