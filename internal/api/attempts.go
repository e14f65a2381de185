package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/journal"
)

const (
	defaultAttemptsLimit = 20
	maxAttemptsLimit     = 100
)

// Journal reads back the recorded submission outcomes.
type Journal interface {
	List(ctx context.Context, attemptID string) ([]journal.Entry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]journal.Entry, error)
}

type AttemptOutcome struct {
	AttemptID  string           `json:"attemptId"`
	Seq        int              `json:"seq"`
	QuizID     string           `json:"quizId"`
	Trigger    domain.Trigger   `json:"trigger"`
	Outcome    journal.Outcome  `json:"outcome"`
	TimeTaken  string           `json:"timeTaken"`
	Score      *decimal.Decimal `json:"score,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	CreateTime time.Time        `json:"createTime"`
}

func toAttemptOutcomes(entries []journal.Entry) []AttemptOutcome {
	out := make([]AttemptOutcome, 0, len(entries))
	for _, e := range entries {
		o := AttemptOutcome{
			AttemptID:  e.AttemptID,
			Seq:        e.Seq,
			QuizID:     e.QuizID,
			Trigger:    e.Trigger,
			Outcome:    e.Outcome,
			TimeTaken:  e.TimeTaken,
			Reason:     e.Reason,
			CreateTime: e.CreateTime,
		}
		if e.Score.Valid {
			score := e.Score.Decimal
			o.Score = &score
		}
		out = append(out, o)
	}
	return out
}

// ListAttempts returns the latest submission outcomes of the signed-in user, newest first.
func (a *API) ListAttempts(c *gin.Context) {
	limit := defaultAttemptsLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxAttemptsLimit {
			abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("limit must be between 1 and %d", maxAttemptsLimit)))
			return
		}
		limit = n
	}

	ctx, user, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	entries, err := a.journal.ListByUser(ctx, user.ID, limit)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": toAttemptOutcomes(entries)})
}

// GetAttempt returns every outcome of one attempt. Attempts of other users are not found.
func (a *API) GetAttempt(c *gin.Context) {
	ctx, user, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	entries, err := a.journal.List(ctx, c.Param("attemptID"))
	if err != nil {
		abort(c, err)
		return
	}
	if len(entries) == 0 || entries[0].UserID != user.ID {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("attempt not found")))
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcomes": toAttemptOutcomes(entries)})
}
