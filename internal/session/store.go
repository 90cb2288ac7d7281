package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
	"github.com/victornm/mcqtutor/internal/event"
)

const defaultTitle = "New Chat"

type Config struct {
	EventBus *event.Bus
}

// Store owns every chat session for the lifetime of the process. Messages
// are append-only and sessions are never merged or deleted; the only
// mutations are the intents accepted by Apply, so the invariants live in one
// place instead of at each call site.
type Store struct {
	eb *event.Bus

	mu       sync.RWMutex
	order    []string
	sessions map[string]*domain.Session
	activeID string
}

// NewStore creates a store holding one default session, which starts active.
func NewStore(c Config) (*Store, error) {
	s := &Store{
		eb:       c.EventBus,
		sessions: make(map[string]*domain.Session),
	}

	if _, err := s.NewSession(context.Background(), defaultTitle); err != nil {
		return nil, err
	}

	return s, nil
}

// NewSession creates an empty session and makes it active.
func (s *Store) NewSession(ctx context.Context, title string) (domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Session{}, fmt.Errorf("generate session ID: %w", err)
	}

	if title == "" {
		title = defaultTitle
	}

	ss := &domain.Session{
		SessionID: id.String(),
		Title:     title,
	}

	s.mu.Lock()
	s.sessions[ss.SessionID] = ss
	s.order = append(s.order, ss.SessionID)
	s.activeID = ss.SessionID
	s.mu.Unlock()

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventSessionCreated{Session: *ss})
	}

	return snapshot(ss), nil
}

// Select makes an existing session the active one.
func (s *Store) Select(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", sessionID))
	}

	s.activeID = sessionID
	return nil
}

// ActiveID returns the id of the active session.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeID
}

func (s *Store) Get(sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", sessionID))
	}

	return snapshot(ss), nil
}

// List returns all sessions in creation order.
func (s *Store) List() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.sessions[id]))
	}
	return out
}

// Intent is a requested session mutation. The concrete intents are the only
// ways a session's message list changes.
type Intent interface {
	sessionID() string
}

// AppendUserMessage appends one user message.
type AppendUserMessage struct {
	SessionID string
	Content   string
}

func (i AppendUserMessage) sessionID() string { return i.SessionID }

// AppendAssistantMessage appends one assistant message, optionally carrying
// a quiz.
type AppendAssistantMessage struct {
	SessionID string
	Content   string
	Quiz      *domain.Quiz
}

func (i AppendAssistantMessage) sessionID() string { return i.SessionID }

// ReplaceMessages swaps the whole message list. Used only for whole-state
// restores; the list still only ever grows through the append intents.
type ReplaceMessages struct {
	SessionID string
	Messages  []domain.Message
}

func (i ReplaceMessages) sessionID() string { return i.SessionID }

// Apply runs one intent against the store and returns the resulting message,
// if the intent appended one.
func (s *Store) Apply(ctx context.Context, intent Intent) (domain.Message, error) {
	s.mu.Lock()

	ss, ok := s.sessions[intent.sessionID()]
	if !ok {
		s.mu.Unlock()
		return domain.Message{}, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", intent.sessionID()))
	}

	var msg domain.Message
	switch in := intent.(type) {
	case AppendUserMessage:
		msg = domain.Message{
			MessageID: uuid.NewString(),
			Role:      domain.RoleUser,
			Content:   in.Content,
			Timestamp: time.Now(),
		}
		ss.Messages = append(ss.Messages, msg)

	case AppendAssistantMessage:
		msg = domain.Message{
			MessageID: uuid.NewString(),
			Role:      domain.RoleAssistant,
			Content:   in.Content,
			Timestamp: time.Now(),
			Quiz:      in.Quiz,
		}
		ss.Messages = append(ss.Messages, msg)

	case ReplaceMessages:
		ss.Messages = append([]domain.Message(nil), in.Messages...)

	default:
		s.mu.Unlock()
		return domain.Message{}, errors.Internal(fmt.Errorf("unknown intent %T", intent))
	}

	s.mu.Unlock()

	if msg.MessageID != "" && s.eb != nil {
		s.eb.Publish(ctx, domain.EventMessageAppended{
			SessionID: ss.SessionID,
			Message:   msg,
		})
	}

	return msg, nil
}

func snapshot(ss *domain.Session) domain.Session {
	out := *ss
	out.Messages = append([]domain.Message(nil), ss.Messages...)
	return out
}
