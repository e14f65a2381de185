package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

var ErrNoResults = errors.New(errors.CodeNotFound,
	errors.WithMessagef("no results to show"))

// QuestionSource loads the ordered question list of a quiz.
type QuestionSource interface {
	Questions(ctx context.Context, quizID string) ([]domain.Question, error)
}

type Config struct {
	Questions QuestionSource
	Scorer    Scorer
	Relay     Relay
	EventBus  Publisher
	// Budget is the time allowed for one attempt, truncated to whole seconds. Defaults to DefaultBudget.
	Budget time.Duration
	// SubmitTimeout bounds one scoring request. Zero means no bound beyond the scorer's own.
	SubmitTimeout time.Duration
	// Retention is how long a submitted or stalled session stays reachable when its tab never comes back
	// for the results or closes it. Defaults to DefaultRetention.
	Retention     time.Duration
	NewTickerFunc func(d time.Duration) Ticker
	Now           func() time.Time
	Logger        *slog.Logger
}

// DefaultRetention matches the lifetime of a result handoff.
const DefaultRetention = 10 * time.Minute

// Service keeps at most one session per tab.
type Service struct {
	questions     QuestionSource
	scorer        Scorer
	relay         Relay
	eb            Publisher
	budget        int
	submitTimeout time.Duration
	retention     time.Duration
	newTicker     func(d time.Duration) Ticker
	now           func() time.Time
	log           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(c Config) *Service {
	s := &Service{
		questions:     c.Questions,
		scorer:        c.Scorer,
		relay:         c.Relay,
		eb:            c.EventBus,
		budget:        int(DefaultBudget / time.Second),
		submitTimeout: c.SubmitTimeout,
		retention:     c.Retention,
		newTicker:     c.NewTickerFunc,
		now:           c.Now,
		log:           c.Logger,
		sessions:      make(map[string]*Session),
	}

	if c.Budget >= time.Second {
		s.budget = int(c.Budget / time.Second)
	}
	if s.retention <= 0 {
		s.retention = DefaultRetention
	}
	if s.newTicker == nil {
		s.newTicker = newTimeTicker
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	return s
}

type StartRequest struct {
	TabID  string
	UserID string
	QuizID string
	// Navigator and Chrome are the front end's page resources. Both are optional.
	Navigator Navigator
	Chrome    Chrome
}

// Start loads the quiz and starts a new attempt in the tab. A tab that already has a running attempt is
// rejected; a finished one is replaced.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if req.TabID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("tab id is required"))
	}
	if req.QuizID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("quiz id is required"))
	}

	if old, ok := s.lookup(req.TabID); ok && old.Status() != domain.StatusSubmitted {
		return nil, ErrSessionExists
	}

	questions, err := s.questions.Questions(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	ss, err := s.newSession(ctx, req, questions)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	old, ok := s.sessions[req.TabID]
	if ok && old.Status() != domain.StatusSubmitted {
		s.mu.Unlock()
		return nil, ErrSessionExists
	}
	s.sessions[req.TabID] = ss
	s.mu.Unlock()

	if ok {
		old.Close()
	}

	ss.start(req.Navigator, req.Chrome, s.newTicker)

	ss.log.InfoContext(ctx, "session: quiz started", "questions", len(questions))
	ss.publish(ctx, domain.EventSessionStarted{
		TabID:     ss.tabID,
		AttemptID: ss.attemptID,
		UserID:    ss.userID,
		QuizID:    ss.quizID,
		Questions: len(questions),
	})

	return ss, nil
}

func (s *Service) newSession(ctx context.Context, req StartRequest, questions []domain.Question) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate attempt ID: %w", err)
	}

	index := make(map[string]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	ss := &Session{
		tabID:         req.TabID,
		attemptID:     id.String(),
		userID:        req.UserID,
		quizID:        req.QuizID,
		questions:     questions,
		index:         index,
		budget:        s.budget,
		ctx:           context.WithoutCancel(ctx),
		scorer:        s.scorer,
		relay:         s.relay,
		bus:           s.eb,
		submitTimeout: s.submitTimeout,
		now:           s.now,
		log:           s.log.With("tab_id", req.TabID, "quiz_id", req.QuizID, "attempt_id", id.String()),
		scope:         &Scope{},
		clockDone:     make(chan struct{}),
		status:        domain.StatusActive,
		remaining:     s.budget,
		answers:       make(domain.Answers),
		watchers:      make(map[chan View]struct{}),
	}

	// Confirmed exits submit on the session context, as expiry does.
	ss.guard = NewGuard(func(context.Context) error {
		_, err := ss.Submit(ss.ctx, domain.TriggerExit)
		if isNotActive(err) {
			// Already submitted by the clock or the user: leaving is still fine.
			return nil
		}
		return err
	})

	return ss, nil
}

func (s *Service) lookup(tabID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[tabID]
	return ss, ok
}

// Session returns the session of the tab.
func (s *Service) Session(tabID string) (*Session, error) {
	ss, ok := s.lookup(tabID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ss, nil
}

type SetAnswerRequest struct {
	TabID      string
	QuestionID string
	Option     string
}

func (s *Service) SetAnswer(_ context.Context, req SetAnswerRequest) error {
	ss, err := s.Session(req.TabID)
	if err != nil {
		return err
	}
	return ss.SetAnswer(req.QuestionID, req.Option)
}

// Submit is the manual submission of the tab's attempt.
func (s *Service) Submit(ctx context.Context, tabID string) (domain.Result, error) {
	ss, err := s.Session(tabID)
	if err != nil {
		return domain.Result{}, err
	}
	return ss.Submit(ctx, domain.TriggerManual)
}

func (s *Service) Retry(ctx context.Context, tabID string) (domain.Result, error) {
	ss, err := s.Session(tabID)
	if err != nil {
		return domain.Result{}, err
	}
	return ss.Retry(ctx)
}

// Exit runs the back-navigation guard of the tab. A tab without a session may always leave.
func (s *Service) Exit(ctx context.Context, tabID string, p Prompter) (ExitOutcome, error) {
	ss, ok := s.lookup(tabID)
	if !ok {
		return ExitAllowed, nil
	}
	return ss.Exit(ctx, p)
}

// Close unmounts the tab's session without submitting it.
func (s *Service) Close(tabID string) {
	s.mu.Lock()
	ss, ok := s.sessions[tabID]
	delete(s.sessions, tabID)
	s.mu.Unlock()

	if ok {
		ss.Close()
	}
}

// Results returns the handoff of the tab's last submitted attempt. ErrNoResults tells the results view
// to send the user home. A submitted session is released once its results are handed off.
func (s *Service) Results(ctx context.Context, tabID string) (domain.Handoff, error) {
	h, err := s.results(ctx, tabID)
	if err != nil {
		return h, err
	}

	s.evict(tabID, func(ss *Session) bool { return ss.Status() == domain.StatusSubmitted })
	return h, nil
}

func (s *Service) results(ctx context.Context, tabID string) (domain.Handoff, error) {
	if s.relay != nil {
		h, err := s.relay.Consume(ctx, tabID)
		if err == nil {
			return h, nil
		}
		if errors.CodeOf(err) != errors.CodeNotFound {
			s.log.WarnContext(ctx, "session: consume result handoff", "tab_id", tabID, "error", err)
		}
	}

	if ss, ok := s.lookup(tabID); ok {
		if h, ok := ss.takeHandoff(); ok {
			return h, nil
		}
	}

	return domain.Handoff{}, ErrNoResults
}

// evict removes the tab's session when match accepts it, and closes it.
func (s *Service) evict(tabID string, match func(ss *Session) bool) bool {
	s.mu.Lock()
	ss, ok := s.sessions[tabID]
	if !ok || !match(ss) {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, tabID)
	s.mu.Unlock()

	ss.Close()
	return true
}

// Sweep releases the sessions that settled, submitted or stalled, longer than the retention ago.
// It returns how many were released.
func (s *Service) Sweep() int {
	now := s.now()

	s.mu.Lock()
	tabs := make([]string, 0, len(s.sessions))
	for tab, ss := range s.sessions {
		if ss.settledBefore(now.Add(-s.retention)) {
			tabs = append(tabs, tab)
		}
	}
	s.mu.Unlock()

	var n int
	for _, tab := range tabs {
		if s.evict(tab, func(ss *Session) bool { return ss.settledBefore(now.Add(-s.retention)) }) {
			n++
		}
	}
	if n > 0 {
		s.log.Info("session: swept settled sessions", "count", n)
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := s.newTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.Sweep()
		}
	}
}

// Shutdown closes every session. Sessions in flight finish their submission on their own.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, ss := range sessions {
		ss.Close()
	}
}
