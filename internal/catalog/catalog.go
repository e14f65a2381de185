package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

// API is the part of the remote quiz API the catalog reads from.
type API interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	GetQuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

type Config struct {
	API API
	// QuestionsTTL is how long a fetched question list is reused. Zero disables caching.
	QuestionsTTL time.Duration
	// LoadTimeout bounds a shared question load, which outlives the caller that started it.
	// Defaults to defaultLoadTimeout.
	LoadTimeout time.Duration
	Now         func() time.Time
}

const defaultLoadTimeout = 30 * time.Second

type Catalog struct {
	api         API
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	sf          singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func New(c Config) *Catalog {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	loadTimeout := c.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}

	return &Catalog{
		api:         c.API,
		ttl:         c.QuestionsTTL,
		loadTimeout: loadTimeout,
		now:         now,
		cache:       make(map[string]cachedQuestions),
	}
}

// Listing is the home page view: quizzes split by their schedule relative to now.
type Listing struct {
	Ongoing  []domain.Quiz
	Upcoming []domain.Quiz
	Past     []domain.Quiz
}

func (c *Catalog) ListQuizzes(ctx context.Context) (Listing, error) {
	quizzes, err := c.api.ListQuizzes(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("list quizzes: %w", err)
	}

	return Categorize(quizzes, c.now()), nil
}

// Categorize splits quizzes into ongoing (start <= now <= end), upcoming (now < start) and past.
func Categorize(quizzes []domain.Quiz, now time.Time) Listing {
	var l Listing
	for _, q := range quizzes {
		switch {
		case !now.Before(q.StartDate) && !now.After(q.EndDate):
			l.Ongoing = append(l.Ongoing, q)
		case now.Before(q.StartDate):
			l.Upcoming = append(l.Upcoming, q)
		default:
			l.Past = append(l.Past, q)
		}
	}
	return l
}

// Questions returns the question list of a quiz. Concurrent loads of the same quiz share one request,
// and an empty or malformed list is rejected.
func (c *Catalog) Questions(ctx context.Context, quizID string) ([]domain.Question, error) {
	if qs, ok := c.cached(quizID); ok {
		return qs, nil
	}

	// Waiters share the load, so it runs detached from the caller that happened to start it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(quizID, func() (any, error) {
		if qs, ok := c.cached(quizID); ok {
			return qs, nil
		}

		ctx, cancel := context.WithTimeout(loadCtx, c.loadTimeout)
		defer cancel()

		qs, err := c.api.GetQuizQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}

		if err := validate(quizID, qs); err != nil {
			return nil, err
		}

		if c.ttl > 0 {
			c.mu.Lock()
			c.cache[quizID] = cachedQuestions{questions: qs, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}

		return qs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return clone(r.Val.([]domain.Question)), nil
	}
}

func (c *Catalog) cached(quizID string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.now()) {
		return nil, false
	}
	return clone(entry.questions), true
}

func validate(quizID string, qs []domain.Question) error {
	if len(qs) == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("quiz %s has no questions", quizID))
	}

	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			return errors.New(errors.CodeUnavailable, errors.WithMessagef("quiz %s: question without id", quizID))
		}
		if _, dup := seen[q.ID]; dup {
			return errors.New(errors.CodeUnavailable, errors.WithMessagef("quiz %s: duplicate question %s", quizID, q.ID))
		}
		seen[q.ID] = struct{}{}

		if len(q.Options) != domain.OptionsPerQuestion {
			return errors.New(errors.CodeUnavailable,
				errors.WithMessagef("quiz %s: question %s has %d options, want %d", quizID, q.ID, len(q.Options), domain.OptionsPerQuestion))
		}
	}
	return nil
}

func clone(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}
