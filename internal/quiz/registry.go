package quiz

import (
	"sync"

	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
	"github.com/victornm/mcqtutor/internal/event"
)

type RegistryConfig struct {
	Evaluator Evaluator
	EventBus  *event.Bus
}

// Registry tracks the live card for each quiz by quiz id. A card is created
// when its quiz message is created and dropped when the quiz goes away.
type Registry struct {
	evaluator Evaluator
	eb        *event.Bus

	mu    sync.RWMutex
	cards map[string]*Card
}

func NewRegistry(c RegistryConfig) *Registry {
	return &Registry{
		evaluator: c.Evaluator,
		eb:        c.EventBus,
		cards:     make(map[string]*Card),
	}
}

func (r *Registry) Create(q domain.Quiz) *Card {
	c := newCard(q, r.evaluator, r.eb)

	r.mu.Lock()
	r.cards[q.QuizID] = c
	r.mu.Unlock()

	return c
}

func (r *Registry) Get(quizID string) (*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cards[quizID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: %s", quizID))
	}

	return c, nil
}

func (r *Registry) Drop(quizID string) {
	r.mu.Lock()
	delete(r.cards, quizID)
	r.mu.Unlock()
}
