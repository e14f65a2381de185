package session

import (
	"context"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

var ErrSubmissionInFlight = errors.New(errors.CodeFailedPrecondition,
	errors.WithMessagef("a submission is already in flight"))

// Submit freezes the ledger and sends it to the scoring API. Only the first trigger of a session
// produces a request; later triggers get ErrNotActive.
func (s *Session) Submit(ctx context.Context, trigger domain.Trigger) (domain.Result, error) {
	s.mu.Lock()
	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return domain.Result{}, ErrNotActive
	}

	s.status = domain.StatusSubmitting
	s.inflight = true
	s.record = &domain.SubmissionRecord{
		AttemptID: s.attemptID,
		UserID:    s.userID,
		QuizID:    s.quizID,
		TimeTaken: FormatClock(s.budget - s.remaining),
		Answers:   s.answers.Clone(),
	}
	record := *s.record
	s.broadcastLocked()
	s.mu.Unlock()

	s.stopClock()

	return s.send(ctx, trigger, record)
}

// Retry re-sends the frozen record of a stalled submission. The ledger is not re-read.
func (s *Session) Retry(ctx context.Context) (domain.Result, error) {
	s.mu.Lock()
	switch {
	case s.status != domain.StatusSubmitting:
		s.mu.Unlock()
		return domain.Result{}, ErrNothingToRetry
	case s.inflight:
		s.mu.Unlock()
		return domain.Result{}, ErrSubmissionInFlight
	}

	s.inflight = true
	s.stalled = false
	s.lastErr = nil
	record := *s.record
	s.broadcastLocked()
	s.mu.Unlock()

	return s.send(ctx, domain.TriggerRetry, record)
}

// Exit handles a back-navigation attempt. A confirmed exit submits the attempt like an expiry would.
func (s *Session) Exit(ctx context.Context, p Prompter) (ExitOutcome, error) {
	return s.guard.Intercept(ctx, p)
}

func (s *Session) send(ctx context.Context, trigger domain.Trigger, record domain.SubmissionRecord) (domain.Result, error) {
	// The request outlives the caller: a closed tab must not abort a submission already on the wire.
	ctx = context.WithoutCancel(ctx)
	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}

	log := s.log.With("trigger", trigger, "time_taken", record.TimeTaken, "answered", len(record.Answers))

	result, err := s.scorer.Submit(ctx, record)
	if err != nil {
		s.mu.Lock()
		s.inflight = false
		s.stalled = true
		s.lastErr = err
		s.settledAt = s.now()
		s.mu.Unlock()

		log.ErrorContext(ctx, "session: submit quiz", "error", err)
		s.publish(ctx, domain.EventSessionSubmitFailed{
			TabID:   s.tabID,
			Trigger: trigger,
			Record:  record,
			Reason:  errors.Convert(err).Message,
		})
		s.teardown()
		return domain.Result{}, err
	}

	h := domain.Handoff{
		QuizID:    s.quizID,
		Result:    result,
		Answers:   record.Answers,
		Questions: s.Questions(),
	}

	s.mu.Lock()
	s.inflight = false
	s.stalled = false
	s.lastErr = nil
	s.status = domain.StatusSubmitted
	s.settledAt = s.now()
	s.mu.Unlock()

	if err := s.storeHandoff(ctx, h); err != nil {
		// The attempt is already scored; the results view falls back to the session's copy.
		log.WarnContext(ctx, "session: store result handoff", "error", err)
		s.mu.Lock()
		s.handoff = &h
		s.mu.Unlock()
	}

	log.InfoContext(ctx, "session: quiz submitted", "score", result.ScorePercentage.String())
	s.publish(ctx, domain.EventSessionSubmitted{
		TabID:   s.tabID,
		Trigger: trigger,
		Record:  record,
		Result:  result,
	})

	s.teardown()

	s.mu.Lock()
	s.closeWatchersLocked()
	s.mu.Unlock()

	return result, nil
}

func (s *Session) storeHandoff(ctx context.Context, h domain.Handoff) error {
	if s.relay == nil {
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("no result relay configured"))
	}
	return s.relay.Store(ctx, s.tabID, h)
}

// takeHandoff returns the in-memory handoff kept when the relay could not store it. It is returned at most once.
func (s *Session) takeHandoff() (domain.Handoff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handoff == nil {
		return domain.Handoff{}, false
	}
	h := *s.handoff
	s.handoff = nil
	return h, true
}
