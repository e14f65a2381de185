package session_test

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/session"
)

const tab = "tab-1"

func TestService_ClockExpiry(t *testing.T) {
	tests := map[string]struct {
		ticks         int
		wantRemaining int
		wantCalls     int
		wantTimeTaken string
	}{
		"one tick consumes one second": {
			ticks:         1,
			wantRemaining: 899,
		},
		"61 ticks": {
			ticks:         61,
			wantRemaining: 839,
		},
		"budget exhausted submits once": {
			ticks:         900,
			wantRemaining: 0,
			wantCalls:     1,
			wantTimeTaken: "15:00",
		},
		"ticks after zero are ignored": {
			ticks:         905,
			wantRemaining: 0,
			wantCalls:     1,
			wantTimeTaken: "15:00",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ss := f.start(t)

			f.tick(t, tt.ticks)

			require.Eventually(t, func() bool {
				return ss.View().Remaining == tt.wantRemaining
			}, time.Second, time.Millisecond)

			if tt.wantCalls == 0 {
				assert.Equal(t, domain.StatusActive, ss.Status())
				assert.Empty(t, f.scorer.records())
				return
			}

			require.Eventually(t, func() bool {
				return ss.Status() == domain.StatusSubmitted
			}, time.Second, time.Millisecond)

			records := f.scorer.records()
			require.Len(t, records, tt.wantCalls)
			assert.Equal(t, tt.wantTimeTaken, records[0].TimeTaken)
			assert.False(t, ss.View().GuardArmed)
			assert.EqualValues(t, 1, f.chrome.restored.Load())
		})
	}
}

func TestService_Submit(t *testing.T) {
	type outputs struct {
		record domain.SubmissionRecord
		err    error
	}

	tests := map[string]struct {
		arrange func(t *testing.T, f *fixture, ss *session.Session)
		assert  func(t *testing.T, out outputs)
	}{
		"manual submit right after start takes 0:00": {
			arrange: func(t *testing.T, f *fixture, ss *session.Session) {
				require.NoError(t, ss.SetAnswer("q1", "B"))
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, "0:00", out.record.TimeTaken)
				assert.Equal(t, domain.Answers{"q1": "B"}, out.record.Answers)
			},
		},
		"time taken counts consumed seconds": {
			arrange: func(t *testing.T, f *fixture, ss *session.Session) {
				f.tick(t, 65)
				require.Eventually(t, func() bool { return ss.View().Remaining == 835 }, time.Second, time.Millisecond)
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, "1:05", out.record.TimeTaken)
			},
		},
		"only the latest answer of a question is sent": {
			arrange: func(t *testing.T, f *fixture, ss *session.Session) {
				require.NoError(t, ss.SetAnswer("q1", "A"))
				require.NoError(t, ss.SetAnswer("q2", "D"))
				require.NoError(t, ss.SetAnswer("q1", "C"))
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, domain.Answers{"q1": "C", "q2": "D"}, out.record.Answers)
			},
		},
		"no answers is a valid submission": {
			arrange: func(t *testing.T, f *fixture, ss *session.Session) {},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Empty(t, out.record.Answers)
				assert.NotNil(t, out.record.Answers)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ss := f.start(t)
			tt.arrange(t, f, ss)

			_, err := f.svc.Submit(context.Background(), tab)

			out := outputs{err: err}
			if records := f.scorer.records(); len(records) > 0 {
				out.record = records[0]
				assert.Equal(t, ss.AttemptID(), out.record.AttemptID)
				assert.Equal(t, "quiz-1", out.record.QuizID)
				assert.Equal(t, "user-1", out.record.UserID)
			}
			tt.assert(t, out)
		})
	}
}

func TestService_SetAnswer(t *testing.T) {
	tests := map[string]struct {
		questionID string
		option     string
		submitted  bool
		wantCode   errors.Code
	}{
		"valid option": {
			questionID: "q1",
			option:     "A",
		},
		"unknown question": {
			questionID: "q9",
			option:     "A",
			wantCode:   errors.CodeInvalidArgument,
		},
		"option not offered by the question": {
			questionID: "q1",
			option:     "E",
			wantCode:   errors.CodeInvalidArgument,
		},
		"ledger is frozen after submission": {
			questionID: "q1",
			option:     "A",
			submitted:  true,
			wantCode:   errors.CodeFailedPrecondition,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ss := f.start(t)
			if tt.submitted {
				_, err := ss.Submit(context.Background(), domain.TriggerManual)
				require.NoError(t, err)
			}

			err := f.svc.SetAnswer(context.Background(), session.SetAnswerRequest{
				TabID:      tab,
				QuestionID: tt.questionID,
				Option:     tt.option,
			})
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.Answers{tt.questionID: tt.option}, ss.Answers())
		})
	}
}

func TestService_Exit(t *testing.T) {
	t.Run("cancel keeps the attempt running", func(t *testing.T) {
		f := newFixture(t)
		ss := f.start(t)

		outcome, err := f.svc.Exit(context.Background(), tab, session.Decision(false))
		require.NoError(t, err)

		assert.Equal(t, session.ExitCancelled, outcome)
		assert.Equal(t, domain.StatusActive, ss.Status())
		assert.True(t, ss.View().GuardArmed)
		assert.EqualValues(t, 1, f.nav.restored.Load())
		assert.Empty(t, f.scorer.records())

		// The clock keeps running after a cancelled exit.
		f.tick(t, 3)
		require.Eventually(t, func() bool { return ss.View().Remaining == 897 }, time.Second, time.Millisecond)
	})

	t.Run("confirm submits the attempt", func(t *testing.T) {
		f := newFixture(t)
		ss := f.start(t)
		require.NoError(t, ss.SetAnswer("q2", "B"))

		outcome, err := f.svc.Exit(context.Background(), tab, session.Decision(true))
		require.NoError(t, err)

		assert.Equal(t, session.ExitConfirmed, outcome)
		assert.Equal(t, domain.StatusSubmitted, ss.Status())
		require.Len(t, f.scorer.records(), 1)
		assert.Equal(t, domain.Answers{"q2": "B"}, f.scorer.records()[0].Answers)
		assert.EqualValues(t, 1, f.nav.released.Load())
		assert.EqualValues(t, 1, f.chrome.restored.Load())
	})

	t.Run("prompt error is treated as cancel", func(t *testing.T) {
		f := newFixture(t)
		ss := f.start(t)

		outcome, err := f.svc.Exit(context.Background(), tab, session.PromptFunc(func(context.Context, string) (bool, error) {
			return false, stderrors.New("stdin closed")
		}))
		require.Error(t, err)

		assert.Equal(t, session.ExitCancelled, outcome)
		assert.Equal(t, domain.StatusActive, ss.Status())
	})

	t.Run("exit after submission is allowed without prompt", func(t *testing.T) {
		f := newFixture(t)
		ss := f.start(t)
		_, err := ss.Submit(context.Background(), domain.TriggerManual)
		require.NoError(t, err)

		outcome, err := f.svc.Exit(context.Background(), tab, session.PromptFunc(func(context.Context, string) (bool, error) {
			t.Fatal("should not prompt")
			return false, nil
		}))
		require.NoError(t, err)
		assert.Equal(t, session.ExitAllowed, outcome)
	})
}

func TestService_ConcurrentTriggersSubmitOnce(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.scorer.block = release
	ss := f.start(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Submit(context.Background(), tab)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.Exit(context.Background(), tab, session.Decision(true))
		}()
	}
	f.tick(t, 900)

	require.Eventually(t, func() bool { return ss.Status() == domain.StatusSubmitting }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.Eventually(t, func() bool { return ss.Status() == domain.StatusSubmitted }, time.Second, time.Millisecond)
	assert.Len(t, f.scorer.records(), 1)
}

func TestService_Retry(t *testing.T) {
	f := newFixture(t)
	f.scorer.errs = []error{errors.New(errors.CodeUnavailable)}
	ss := f.start(t)
	require.NoError(t, ss.SetAnswer("q1", "A"))

	_, err := f.svc.Submit(context.Background(), tab)
	require.Error(t, err)

	v := ss.View()
	assert.Equal(t, domain.StatusSubmitting, v.Status)
	assert.True(t, v.Stalled)
	assert.False(t, v.GuardArmed)
	assert.EqualValues(t, 1, f.chrome.restored.Load())

	// A stalled attempt is neither editable nor submittable again.
	assert.ErrorIs(t, ss.SetAnswer("q1", "B"), session.ErrNotActive)
	_, err = f.svc.Submit(context.Background(), tab)
	assert.ErrorIs(t, err, session.ErrNotActive)

	res, err := f.svc.Retry(context.Background(), tab)
	require.NoError(t, err)
	assert.Equal(t, "Quiz 1", res.QuizName)
	assert.Equal(t, domain.StatusSubmitted, ss.Status())

	records := f.scorer.records()
	require.Len(t, records, 2)
	assert.Equal(t, records[0], records[1], "retry should send the frozen record")

	_, err = f.svc.Retry(context.Background(), tab)
	assert.ErrorIs(t, err, session.ErrNothingToRetry)
	assert.EqualValues(t, 1, f.chrome.restored.Load())
}

func TestService_Results(t *testing.T) {
	t.Run("results are handed off once", func(t *testing.T) {
		f := newFixture(t)
		ss := f.start(t)
		require.NoError(t, ss.SetAnswer("q1", "A"))
		_, err := f.svc.Submit(context.Background(), tab)
		require.NoError(t, err)

		h, err := f.svc.Results(context.Background(), tab)
		require.NoError(t, err)
		assert.Equal(t, "quiz-1", h.QuizID)
		assert.Equal(t, domain.Answers{"q1": "A"}, h.Answers)
		assert.Len(t, h.Questions, 2)

		_, err = f.svc.Results(context.Background(), tab)
		assert.ErrorIs(t, err, session.ErrNoResults)
	})

	t.Run("no submission means no results", func(t *testing.T) {
		f := newFixture(t)
		f.start(t)

		_, err := f.svc.Results(context.Background(), tab)
		assert.ErrorIs(t, err, session.ErrNoResults)
	})

	t.Run("relay failure falls back to the session copy", func(t *testing.T) {
		f := newFixture(t)
		f.relay.storeErr = stderrors.New("redis down")
		f.start(t)
		_, err := f.svc.Submit(context.Background(), tab)
		require.NoError(t, err)

		h, err := f.svc.Results(context.Background(), tab)
		require.NoError(t, err)
		assert.Equal(t, "quiz-1", h.QuizID)
		assert.Len(t, f.scorer.records(), 1, "should not resubmit")

		_, err = f.svc.Results(context.Background(), tab)
		assert.ErrorIs(t, err, session.ErrNoResults)
	})
}

func TestService_ResultsReleaseSession(t *testing.T) {
	eb := event.NewBus()
	var closed atomic.Int32
	eb.Subscribe(domain.EventNameSessionClosed, func(context.Context, event.Event) error {
		closed.Add(1)
		return nil
	})

	f := newFixture(t, withEventBus(eb))
	f.start(t)
	_, err := f.svc.Submit(context.Background(), tab)
	require.NoError(t, err)

	_, err = f.svc.Session(tab)
	require.NoError(t, err, "a submitted session waits for its results")

	_, err = f.svc.Results(context.Background(), tab)
	require.NoError(t, err)

	_, err = f.svc.Session(tab)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	eb.Stop()
	assert.EqualValues(t, 1, closed.Load())
	assert.EqualValues(t, 1, f.chrome.restored.Load())
}

func TestService_Sweep(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	f := newFixture(t, withClock(clock))
	f.scorer.errs = []error{errors.New(errors.CodeUnavailable)}

	start := func(tabID string) *session.Session {
		ss, err := f.svc.Start(context.Background(), session.StartRequest{TabID: tabID, QuizID: "quiz-1"})
		require.NoError(t, err)
		<-f.tickers
		return ss
	}

	stalled := start("stalled")
	_, err := stalled.Submit(context.Background(), domain.TriggerManual)
	require.Error(t, err)

	submitted := start("submitted")
	_, err = submitted.Submit(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	start("active")

	assert.Zero(t, f.svc.Sweep(), "settled sessions are kept within the retention")

	advance(10*time.Minute + time.Second)
	assert.Equal(t, 2, f.svc.Sweep())

	for tabID, want := range map[string]error{
		"stalled":   session.ErrSessionNotFound,
		"submitted": session.ErrSessionNotFound,
		"active":    nil,
	} {
		_, err := f.svc.Session(tabID)
		if want == nil {
			assert.NoError(t, err, tabID)
		} else {
			assert.ErrorIs(t, err, want, tabID)
		}
	}
}

func TestService_Start(t *testing.T) {
	t.Run("running attempt blocks a new one", func(t *testing.T) {
		f := newFixture(t)
		f.start(t)

		_, err := f.svc.Start(context.Background(), session.StartRequest{TabID: tab, QuizID: "quiz-1"})
		assert.ErrorIs(t, err, session.ErrSessionExists)
	})

	t.Run("submitted attempt is replaced", func(t *testing.T) {
		f := newFixture(t)
		old := f.start(t)
		_, err := old.Submit(context.Background(), domain.TriggerManual)
		require.NoError(t, err)

		ss := f.start(t)
		assert.NotEqual(t, old.AttemptID(), ss.AttemptID())
		assert.Equal(t, domain.StatusActive, ss.Status())
	})

	t.Run("question fetch failure starts nothing", func(t *testing.T) {
		f := newFixture(t)
		f.questions.err = errors.New(errors.CodeNotFound)

		_, err := f.svc.Start(context.Background(), session.StartRequest{TabID: tab, QuizID: "quiz-1"})
		assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))

		_, err = f.svc.Session(tab)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
		assert.EqualValues(t, 0, f.chrome.hidden.Load())
	})

	t.Run("start publishes session.started", func(t *testing.T) {
		eb := event.NewBus()
		var got atomic.Value
		eb.Subscribe(domain.EventNameSessionStarted, func(_ context.Context, e event.Event) error {
			got.Store(e)
			return nil
		})

		f := newFixture(t, withEventBus(eb))
		ss := f.start(t)
		eb.Stop()

		e, ok := got.Load().(domain.EventSessionStarted)
		require.True(t, ok)
		assert.Equal(t, ss.AttemptID(), e.AttemptID)
		assert.Equal(t, 2, e.Questions)
	})
}

func TestService_Close(t *testing.T) {
	f := newFixture(t)
	ss := f.start(t)
	assert.EqualValues(t, 1, f.chrome.hidden.Load())
	assert.EqualValues(t, 1, f.nav.blocked.Load())

	f.svc.Close(tab)

	assert.EqualValues(t, 1, f.chrome.restored.Load())
	assert.EqualValues(t, 1, f.nav.released.Load())
	assert.False(t, ss.View().GuardArmed)

	f.tick(t, 900)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 900, ss.View().Remaining)
	assert.Empty(t, f.scorer.records(), "closing should not submit")

	_, err := f.svc.Session(tab)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSession_Watch(t *testing.T) {
	f := newFixture(t)
	ss := f.start(t)

	views, cancel := ss.Watch()
	defer cancel()

	v := <-views
	assert.Equal(t, "15:00", v.Clock)

	f.tick(t, 1)
	v = <-views
	assert.Equal(t, "14:59", v.Clock)

	_, err := ss.Submit(context.Background(), domain.TriggerManual)
	require.NoError(t, err)

	var last session.View
	for v := range views {
		last = v
	}
	assert.Equal(t, domain.StatusSubmitted, last.Status)
}

func TestFormatClock(t *testing.T) {
	tests := map[int]string{
		0:   "0:00",
		5:   "0:05",
		59:  "0:59",
		60:  "1:00",
		65:  "1:05",
		900: "15:00",
		905: "15:05",
		-3:  "0:00",
	}

	for in, want := range tests {
		assert.Equal(t, want, session.FormatClock(in), "seconds=%d", in)
	}
}

type fixture struct {
	svc       *session.Service
	scorer    *fakeScorer
	relay     *fakeRelay
	questions *fakeQuestions
	chrome    *fakeChrome
	nav       *fakeNavigator
	tickers   chan *fakeTicker
	ticker    *fakeTicker
}

type option func(c *session.Config)

func withEventBus(eb *event.Bus) option {
	return func(c *session.Config) {
		c.EventBus = eb
	}
}

func withClock(now func() time.Time) option {
	return func(c *session.Config) {
		c.Now = now
		c.Retention = 10 * time.Minute
	}
}

func newFixture(t *testing.T, opts ...option) *fixture {
	f := &fixture{
		scorer: &fakeScorer{},
		relay:  &fakeRelay{handoffs: make(map[string]domain.Handoff)},
		questions: &fakeQuestions{questions: []domain.Question{
			{ID: "q1", Text: "One?", Options: []string{"A", "B", "C", "D"}},
			{ID: "q2", Text: "Two?", Options: []string{"A", "B", "C", "D"}},
		}},
		chrome:  &fakeChrome{},
		nav:     &fakeNavigator{},
		tickers: make(chan *fakeTicker, 4),
	}

	c := session.Config{
		Questions: f.questions,
		Scorer:    f.scorer,
		Relay:     f.relay,
		Budget:    session.DefaultBudget,
		NewTickerFunc: func(time.Duration) session.Ticker {
			ft := &fakeTicker{c: make(chan time.Time, 1024)}
			f.tickers <- ft
			return ft
		},
	}
	for _, opt := range opts {
		opt(&c)
	}

	f.svc = session.NewService(c)
	t.Cleanup(f.svc.Shutdown)
	return f
}

func (f *fixture) start(t *testing.T) *session.Session {
	t.Helper()

	ss, err := f.svc.Start(context.Background(), session.StartRequest{
		TabID:     tab,
		UserID:    "user-1",
		QuizID:    "quiz-1",
		Navigator: f.nav,
		Chrome:    f.chrome,
	})
	require.NoError(t, err)

	f.ticker = <-f.tickers
	return ss
}

func (f *fixture) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.ticker.c <- time.Now()
	}
}

type fakeTicker struct {
	c chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               {}

type fakeScorer struct {
	block chan struct{}

	mu   sync.Mutex
	errs []error
	recs []domain.SubmissionRecord
}

func (s *fakeScorer) Submit(ctx context.Context, r domain.SubmissionRecord) (domain.Result, error) {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs = append(s.recs, r)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return domain.Result{}, err
	}

	return domain.Result{
		QuizName:        "Quiz 1",
		CorrectCount:    1,
		ScorePercentage: decimal.NewFromInt(50),
		CorrectAnswers:  map[string]string{"q1": "A", "q2": "C"},
	}, nil
}

func (s *fakeScorer) records() []domain.SubmissionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SubmissionRecord(nil), s.recs...)
}

type fakeRelay struct {
	storeErr error

	mu       sync.Mutex
	handoffs map[string]domain.Handoff
}

func (r *fakeRelay) Store(_ context.Context, tabID string, h domain.Handoff) error {
	if r.storeErr != nil {
		return r.storeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handoffs[tabID] = h
	return nil
}

func (r *fakeRelay) Consume(_ context.Context, tabID string) (domain.Handoff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handoffs[tabID]
	if !ok {
		return domain.Handoff{}, errors.New(errors.CodeNotFound)
	}
	delete(r.handoffs, tabID)
	return h, nil
}

type fakeQuestions struct {
	questions []domain.Question
	err       error
}

func (q *fakeQuestions) Questions(context.Context, string) ([]domain.Question, error) {
	return q.questions, q.err
}

type fakeChrome struct {
	hidden, restored atomic.Int32
}

func (c *fakeChrome) Hide()    { c.hidden.Add(1) }
func (c *fakeChrome) Restore() { c.restored.Add(1) }

type fakeNavigator struct {
	blocked, restored, released atomic.Int32
}

func (n *fakeNavigator) Block()   { n.blocked.Add(1) }
func (n *fakeNavigator) Restore() { n.restored.Add(1) }
func (n *fakeNavigator) Release() { n.released.Add(1) }
