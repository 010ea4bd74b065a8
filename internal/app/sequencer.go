package app

import (
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// Sequencer materializes the question order for a new session.
type Sequencer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSequencer() *Sequencer {
	return NewSequencerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSequencerWithSource allows deterministic shuffles in tests.
func NewSequencerWithSource(src rand.Source) *Sequencer {
	return &Sequencer{rnd: rand.New(src)}
}

// Order returns a copy of the quiz questions, Fisher-Yates shuffled when the
// quiz asks for it. Call once per session; resumed sessions reuse the
// persisted order.
func (s *Sequencer) Order(def domain.QuizDefinition) []domain.Question {
	order := make([]domain.Question, len(def.Questions))
	copy(order, def.Questions)
	if !def.Features.Randomize {
		return order
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(order) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
