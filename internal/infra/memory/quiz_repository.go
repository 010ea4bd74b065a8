package memory

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz definitions from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// QuizRepository serves validated definitions from process memory. Loaded
// definitions live for a jittered TTL; unknown quiz ids are remembered for a
// tenth of it so reconnect storms on a bad link do not reach the loader.
// Concurrent misses for one quiz share a single load.
type QuizRepository struct {
	loader  QuizLoader
	ttl     time.Duration
	missTTL time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu      sync.Mutex
	entries map[string]definitionEntry
}

type definitionEntry struct {
	def       domain.QuizDefinition
	missing   bool
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		missTTL: ttl / 10,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]definitionEntry),
	}
}

// GetQuiz returns the definition for quizID. Definitions that fail
// validation are never cached and surface domain.ErrInvalidDefinition.
func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	if def, ok, err := r.lookup(quizID); ok {
		return def, err
	}

	v, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if def, ok, err := r.lookup(quizID); ok {
			return def, err
		}
		def, err := r.loader.LoadQuiz(ctx, quizID)
		switch {
		case errors.Is(err, domain.ErrQuizNotFound):
			r.store(quizID, definitionEntry{missing: true}, r.missTTL)
			return domain.QuizDefinition{}, err
		case err != nil:
			return domain.QuizDefinition{}, err
		}
		if err := def.Validate(); err != nil {
			log.Printf("rejecting quiz %s: %v", quizID, err)
			return domain.QuizDefinition{}, err
		}
		r.store(quizID, definitionEntry{def: def}, r.jittered(r.ttl))
		return def, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return v.(domain.QuizDefinition), nil
}

// lookup reports a fresh entry; ok is false when the loader must be asked.
func (r *QuizRepository) lookup(quizID string) (domain.QuizDefinition, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, found := r.entries[quizID]
	if !found || !entry.expiresAt.After(r.clock()) {
		return domain.QuizDefinition{}, false, nil
	}
	if entry.missing {
		return domain.QuizDefinition{}, true, domain.ErrQuizNotFound
	}
	return entry.def, true, nil
}

func (r *QuizRepository) store(quizID string, entry definitionEntry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.expiresAt = r.clock().Add(ttl)
	r.entries[quizID] = entry
}

// jittered adds up to 10% so definitions loaded together do not expire together.
func (r *QuizRepository) jittered(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return ttl + time.Duration(r.rnd.Int63n(int64(ttl)/10+1))
}

// StaticQuizLoader serves definitions from a fixed map.
type StaticQuizLoader struct {
	quizzes map[string]domain.QuizDefinition
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizDefinition) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}
