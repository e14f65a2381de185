package relay

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

const DefaultTTL = 10 * time.Minute

var ErrNotFound = errors.New(errors.CodeNotFound, errors.WithMessagef("result handoff not found"))

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// TTL bounds how long a handoff waits for the results view. Defaults to DefaultTTL.
	TTL time.Duration
	// ClearOnRead removes a handoff once it was read, so reloading the results view sends the user home.
	ClearOnRead bool
	Now         func() time.Time
}

// Redis stores handoffs as JSON under <prefix>:handoff:<tab>.
type Redis struct {
	redis       redis.UniversalClient
	prefix      string
	ttl         time.Duration
	clearOnRead bool
}

func NewRedis(c Config) *Redis {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Redis{
		redis:       c.Redis,
		prefix:      c.Prefix,
		ttl:         ttl,
		clearOnRead: c.ClearOnRead,
	}
}

func (r *Redis) Store(ctx context.Context, tabID string, h domain.Handoff) error {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("relay: marshal handoff: %w", err)
	}

	if err := r.redis.Set(ctx, r.key(tabID), b, r.ttl).Err(); err != nil {
		return errors.New(errors.CodeUnavailable, errors.WithCause(err),
			errors.WithMessagef("relay: store handoff: tab=%s", tabID))
	}

	return nil
}

func (r *Redis) Consume(ctx context.Context, tabID string) (domain.Handoff, error) {
	var (
		b   []byte
		err error
	)
	if r.clearOnRead {
		b, err = r.redis.GetDel(ctx, r.key(tabID)).Bytes()
	} else {
		b, err = r.redis.Get(ctx, r.key(tabID)).Bytes()
	}

	if stderrors.Is(err, redis.Nil) {
		return domain.Handoff{}, ErrNotFound
	}
	if err != nil {
		return domain.Handoff{}, errors.New(errors.CodeUnavailable, errors.WithCause(err),
			errors.WithMessagef("relay: consume handoff: tab=%s", tabID))
	}

	var h domain.Handoff
	if err := json.Unmarshal(b, &h); err != nil {
		return domain.Handoff{}, fmt.Errorf("relay: unmarshal handoff: %w", err)
	}

	return h, nil
}

func (r *Redis) key(tabID string) string {
	return fmt.Sprintf("%s:handoff:%s", r.prefix, tabID)
}

// Memory is the single-process relay used when no Redis is configured.
type Memory struct {
	ttl         time.Duration
	clearOnRead bool
	now         func() time.Time

	mu       sync.Mutex
	handoffs map[string]memoryEntry
}

type memoryEntry struct {
	h         domain.Handoff
	expiresAt time.Time
}

func NewMemory(c Config) *Memory {
	m := &Memory{
		ttl:         c.TTL,
		clearOnRead: c.ClearOnRead,
		now:         c.Now,
		handoffs:    make(map[string]memoryEntry),
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Memory) Store(_ context.Context, tabID string, h domain.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for tab, e := range m.handoffs {
		if !now.Before(e.expiresAt) {
			delete(m.handoffs, tab)
		}
	}

	m.handoffs[tabID] = memoryEntry{h: h, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Consume(_ context.Context, tabID string) (domain.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.handoffs[tabID]
	if !ok || !m.now().Before(e.expiresAt) {
		delete(m.handoffs, tabID)
		return domain.Handoff{}, ErrNotFound
	}

	if m.clearOnRead {
		delete(m.handoffs, tabID)
	}
	return e.h, nil
}
