package session

import (
	"fmt"
	"time"

	"github.com/victornm/quizdesk/internal/domain"
)

const (
	DefaultBudget = 15 * time.Minute
	tickInterval  = time.Second
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// FormatClock renders seconds as M:SS, e.g. 905 -> "15:05".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// tick consumes one second of the budget. It reports true exactly once: on the tick that reaches zero.
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive || s.remaining == 0 {
		return false
	}

	s.remaining--
	s.broadcastLocked()
	return s.remaining == 0
}

func (s *Session) runClock(t Ticker) {
	defer t.Stop()

	for {
		select {
		case <-s.clockDone:
			return
		case <-t.C():
			select {
			case <-s.clockDone:
				return
			default:
			}

			if !s.tick() {
				continue
			}

			s.publish(s.ctx, domain.EventSessionExpired{TabID: s.tabID, QuizID: s.quizID})
			// Expiry is not cancelable: the submission runs even if nobody is watching.
			if _, err := s.Submit(s.ctx, domain.TriggerTimeout); err != nil && !isNotActive(err) {
				s.log.ErrorContext(s.ctx, "session: automatic submission failed", "error", err)
			}
			return
		}
	}
}

func (s *Session) stopClock() {
	s.clockOnce.Do(func() { close(s.clockDone) })
}
