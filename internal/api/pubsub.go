package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizdesk/internal/domain"
)

const maxConcurrent = 10

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	// Toast is a transient message shown by the front end.
	Toast struct {
		Level    string           `json:"level"`
		Message  string           `json:"message"`
		QuizID   string           `json:"quizId"`
		Score    *decimal.Decimal `json:"scorePercentage,omitempty"`
		Redirect string           `json:"redirect,omitempty"`
	}
)

func (a *API) PublishSessionSubmitted(ctx context.Context, e domain.EventSessionSubmitted) error {
	score := e.Result.ScorePercentage
	return a.notify(ctx, e.TabID, e.Record.UserID, e.Name(), Toast{
		Level:    "success",
		Message:  "Quiz submitted successfully!",
		QuizID:   e.Record.QuizID,
		Score:    &score,
		Redirect: resultRedirect(e.Record.QuizID),
	})
}

func (a *API) PublishSessionSubmitFailed(ctx context.Context, e domain.EventSessionSubmitFailed) error {
	return a.notify(ctx, e.TabID, e.Record.UserID, e.Name(), Toast{
		Level:   "error",
		Message: "Failed to submit quiz",
		QuizID:  e.Record.QuizID,
	})
}

// notify publishes to the tab and, when known, to every tab of the user.
func (a *API) notify(ctx context.Context, tab, user, event string, data any) error {
	channels := []string{fmt.Sprintf("%s:tab:%s", a.prefix, tab)}
	if user != "" {
		channels = append(channels, fmt.Sprintf("%s:user:%s", a.prefix, user))
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, ch := range channels {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, event, data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
