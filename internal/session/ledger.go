package session

import (
	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

// SetAnswer records option as the answer to question, replacing any previous answer.
func (s *Session) SetAnswer(questionID, option string) error {
	i, ok := s.index[questionID]
	if !ok {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown question %q", questionID))
	}
	if !s.questions[i].HasOption(option) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%q is not an option of question %q", option, questionID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The ledger is frozen once the session leaves active.
	if s.status != domain.StatusActive {
		return ErrNotActive
	}

	s.answers[questionID] = option
	s.broadcastLocked()
	return nil
}

// Answers returns a copy of the ledger.
func (s *Session) Answers() domain.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}
