//go:build integration_test

package journal_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/journal"
)

func TestJournal_Record(t *testing.T) {
	ctx := context.Background()
	j := journal.New(journal.Config{DB: startPostgres(ctx, t)})

	failed := journal.Entry{
		AttemptID: "a1",
		TabID:     "tab-1",
		UserID:    "u1",
		QuizID:    "quiz-1",
		Trigger:   domain.TriggerManual,
		Outcome:   journal.OutcomeFailed,
		TimeTaken: "2:10",
		Answers:   domain.Answers{"q1": "A"},
		Reason:    "unavailable",
	}
	seq, err := j.Record(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	submitted := failed
	submitted.Trigger = domain.TriggerRetry
	submitted.Outcome = journal.OutcomeSubmitted
	submitted.Reason = ""
	submitted.Score = decimal.NewNullDecimal(decimal.NewFromFloat(62.5))
	seq, err = j.Record(ctx, submitted)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	_, err = j.Record(ctx, submitted)
	assert.Equal(t, errors.CodeAlreadyExists, errors.CodeOf(err), "an attempt is scored once")

	entries, err := j.List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, domain.Answers{"q1": "A"}, entries[1].Answers)
	assert.True(t, entries[1].Score.Valid)
	assert.True(t, decimal.NewFromFloat(62.5).Equal(entries[1].Score.Decimal))

	byUser, err := j.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
}

func TestJournal_RecordConcurrentOutcomes(t *testing.T) {
	ctx := context.Background()
	j := journal.New(journal.Config{DB: startPostgres(ctx, t)})

	const n = 4
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			_, err := j.Record(ctx, journal.Entry{
				AttemptID: "a2",
				TabID:     "tab-2",
				UserID:    "u2",
				QuizID:    "quiz-1",
				Trigger:   domain.TriggerRetry,
				Outcome:   journal.OutcomeFailed,
				TimeTaken: "1:00",
				Reason:    fmt.Sprintf("attempt %d", i),
			})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	entries, err := j.List(ctx, "a2")
	require.NoError(t, err)
	require.Len(t, entries, n)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Seq)
	}
}

func startPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "quizdesk",
			"POSTGRES_PASSWORD": "quizdesk",
			"POSTGRES_DB":       "quizdesk",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pg.Terminate(ctx)) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://quizdesk:quizdesk@%s:%s/quizdesk?sslmode=disable", host, port.Port())

	_, err = journal.Migrate(ctx, dsn)
	require.NoError(t, err)

	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}
