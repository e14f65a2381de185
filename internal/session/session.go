package session

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
)

var (
	ErrNotActive = errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("quiz session is not active"))
	ErrNothingToRetry = errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("quiz session has no failed submission to retry"))
	ErrSessionNotFound = errors.New(errors.CodeNotFound,
		errors.WithMessagef("no quiz session in this tab"))
	ErrSessionExists = errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("a quiz session is already running in this tab"))
)

func isNotActive(err error) bool {
	return stderrors.Is(err, ErrNotActive)
}

// Scorer is the remote scoring endpoint.
type Scorer interface {
	Submit(ctx context.Context, r domain.SubmissionRecord) (domain.Result, error)
}

// Relay hands a submitted attempt over to the results view.
type Relay interface {
	Store(ctx context.Context, tabID string, h domain.Handoff) error
	Consume(ctx context.Context, tabID string) (domain.Handoff, error)
}

type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// View is a point-in-time snapshot of a session, as rendered by a front end.
type View struct {
	TabID      string
	AttemptID  string
	QuizID     string
	Status     domain.Status
	Remaining  int
	Clock      string
	Answered   int
	Total      int
	GuardArmed bool
	// Stalled is set while a failed submission waits for a retry.
	Stalled bool
	Error   string
}

// Session is one timed attempt at a quiz.
type Session struct {
	tabID     string
	attemptID string
	userID    string
	quizID    string
	questions []domain.Question
	index     map[string]int
	budget    int

	// ctx carries request values (auth) for submissions not started by a request.
	ctx           context.Context
	scorer        Scorer
	relay         Relay
	bus           Publisher
	submitTimeout time.Duration
	now           func() time.Time
	log           *slog.Logger

	scope     *Scope
	guard     *Guard
	clockDone chan struct{}
	clockOnce sync.Once

	mu        sync.Mutex
	status    domain.Status
	remaining int
	answers   domain.Answers
	record    *domain.SubmissionRecord
	inflight  bool
	stalled   bool
	lastErr   error
	handoff   *domain.Handoff
	watchers  map[chan View]struct{}
	// settledAt is when the last submission request finished, successfully or not.
	settledAt time.Time
}

func (s *Session) TabID() string     { return s.tabID }
func (s *Session) AttemptID() string { return s.attemptID }
func (s *Session) QuizID() string    { return s.quizID }
func (s *Session) UserID() string    { return s.userID }

// Questions returns the fixed, ordered question list of the attempt.
func (s *Session) Questions() []domain.Question {
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		TabID:      s.tabID,
		AttemptID:  s.attemptID,
		QuizID:     s.quizID,
		Status:     s.status,
		Remaining:  s.remaining,
		Clock:      FormatClock(s.remaining),
		Answered:   len(s.answers),
		Total:      len(s.questions),
		GuardArmed: s.guard.Armed(),
		Stalled:    s.stalled,
	}
	if s.lastErr != nil {
		v.Error = errors.Convert(s.lastErr).Message
	}
	return v
}

// Watch streams views on every change. Slow watchers only see the latest view.
// The caller must invoke cancel; the channel is also closed when the session completes or closes.
func (s *Session) Watch() (<-chan View, func()) {
	ch := make(chan View, 8)

	s.mu.Lock()
	initial := s.viewLocked()
	if s.watchers == nil {
		// Already completed or closed: deliver the final view only.
		ch <- initial
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- initial
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	v := s.viewLocked()
	for ch := range s.watchers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (s *Session) closeWatchersLocked() {
	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil
}

// start acquires the page resources and starts the clock.
func (s *Session) start(nav Navigator, chrome Chrome, newTicker func(time.Duration) Ticker) {
	if chrome == nil {
		chrome = noopChrome{}
	}

	s.scope.Acquire(chrome.Hide, chrome.Restore)
	s.scope.Acquire(func() { s.guard.Arm(nav) }, s.guard.Disarm)
	s.scope.Acquire(func() { go s.runClock(newTicker(tickInterval)) }, s.stopClock)
}

// teardown stops the clock, disarms the guard and restores the chrome. Safe to call from any exit path.
func (s *Session) teardown() {
	s.stopClock()
	s.scope.Close()

	s.mu.Lock()
	s.broadcastLocked()
	s.mu.Unlock()
}

// settledBefore reports whether the session left active and its last submission finished before t.
func (s *Session) settledBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status != domain.StatusActive && !s.inflight && !s.settledAt.IsZero() && s.settledAt.Before(t)
}

// Close is the unmount path: it releases everything without submitting.
func (s *Session) Close() {
	s.teardown()

	s.mu.Lock()
	status := s.status
	s.closeWatchersLocked()
	s.mu.Unlock()

	s.publish(s.ctx, domain.EventSessionClosed{TabID: s.tabID, QuizID: s.quizID, Status: status})
}

func (s *Session) publish(ctx context.Context, e event.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, e)
	}
}
