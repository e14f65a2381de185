package journal

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
)

type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one submission outcome of an attempt. A stalled attempt has one failed entry per failed request.
type Entry struct {
	AttemptID  string
	Seq        int
	TabID      string
	UserID     string
	QuizID     string
	Trigger    domain.Trigger
	Outcome    Outcome
	TimeTaken  string
	Answers    domain.Answers
	Score      decimal.NullDecimal
	Reason     string
	CreateTime time.Time
}

type Config struct {
	DB       *pgxpool.Pool
	EventBus *event.Bus
}

// Journal is the audit trail of submission outcomes.
type Journal struct {
	db *pgxpool.Pool
}

func New(c Config) *Journal {
	j := &Journal{db: c.DB}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameSessionSubmitted, func(ctx context.Context, e event.Event) error {
			_, err := j.Record(ctx, submittedEntry(e.(domain.EventSessionSubmitted)))
			return err
		})
		c.EventBus.Subscribe(domain.EventNameSessionSubmitFailed, func(ctx context.Context, e event.Event) error {
			_, err := j.Record(ctx, failedEntry(e.(domain.EventSessionSubmitFailed)))
			return err
		})
	}

	return j
}

func submittedEntry(e domain.EventSessionSubmitted) Entry {
	return Entry{
		AttemptID: e.Record.AttemptID,
		TabID:     e.TabID,
		UserID:    e.Record.UserID,
		QuizID:    e.Record.QuizID,
		Trigger:   e.Trigger,
		Outcome:   OutcomeSubmitted,
		TimeTaken: e.Record.TimeTaken,
		Answers:   e.Record.Answers,
		Score:     decimal.NewNullDecimal(e.Result.ScorePercentage),
	}
}

func failedEntry(e domain.EventSessionSubmitFailed) Entry {
	return Entry{
		AttemptID: e.Record.AttemptID,
		TabID:     e.TabID,
		UserID:    e.Record.UserID,
		QuizID:    e.Record.QuizID,
		Trigger:   e.Trigger,
		Outcome:   OutcomeFailed,
		TimeTaken: e.Record.TimeTaken,
		Answers:   e.Record.Answers,
		Reason:    e.Reason,
	}
}

// Record appends an outcome to the attempt and returns its sequence number. A second submitted outcome for
// the same attempt is rejected with CodeAlreadyExists.
func (j *Journal) Record(ctx context.Context, e Entry) (int, error) {
	const stmt = `
INSERT INTO submission_outcomes
	(attempt_id, outcome_seq, tab_id, user_id, quiz_id, trigger, outcome, time_taken, answers, score, reason)
SELECT $1::text, COALESCE(MAX(outcome_seq), 0) + 1, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text,
	$8::jsonb, $9::numeric, $10::text
FROM submission_outcomes WHERE attempt_id = $1::text
RETURNING outcome_seq;`

	answers := e.Answers
	if answers == nil {
		answers = domain.Answers{}
	}

	for attempt := 1; ; attempt++ {
		var seq int
		err := j.db.QueryRow(ctx, stmt,
			e.AttemptID, e.TabID, e.UserID, e.QuizID, string(e.Trigger), string(e.Outcome),
			e.TimeTaken, answers, e.Score, e.Reason,
		).Scan(&seq)

		switch conflictOf(err) {
		case conflictNone:
			if err != nil {
				return 0, err
			}
			return seq, nil
		case conflictSeq:
			// Another outcome of the attempt took the same sequence number.
			if attempt < maxRecordAttempts {
				continue
			}
			return 0, errors.New(errors.CodeUnavailable,
				errors.WithCause(err),
				errors.WithMessagef("outcome sequence contended: attempt=%s", e.AttemptID))
		default:
			return 0, errors.New(errors.CodeAlreadyExists,
				errors.WithCause(err),
				errors.WithMessagef("outcome already recorded: attempt=%s", e.AttemptID))
		}
	}
}

const (
	maxRecordAttempts = 5

	codeUniqueViolation = "23505"
	constraintSeq       = "submission_outcomes_pkey"
)

type conflict int

const (
	conflictNone conflict = iota
	conflictSeq
	conflictSubmitted
)

// conflictOf tells a lost race on outcome_seq apart from a second submitted outcome.
func conflictOf(err error) conflict {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return conflictNone
	}
	if pgErr.ConstraintName == constraintSeq {
		return conflictSeq
	}
	return conflictSubmitted
}

// List returns the outcomes of an attempt in order.
func (j *Journal) List(ctx context.Context, attemptID string) ([]Entry, error) {
	const stmt = `
SELECT attempt_id, outcome_seq, tab_id, user_id, quiz_id, trigger, outcome, time_taken, answers, score, reason, create_time
FROM submission_outcomes
WHERE attempt_id = $1
ORDER BY outcome_seq;`

	rows, err := j.db.Query(ctx, stmt, attemptID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, scanEntry)
}

// ListByUser returns the latest outcomes of a user, newest first.
func (j *Journal) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	const stmt = `
SELECT attempt_id, outcome_seq, tab_id, user_id, quiz_id, trigger, outcome, time_taken, answers, score, reason, create_time
FROM submission_outcomes
WHERE user_id = $1
ORDER BY create_time DESC
LIMIT $2;`

	rows, err := j.db.Query(ctx, stmt, userID, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, scanEntry)
}

func scanEntry(r pgx.CollectableRow) (Entry, error) {
	var (
		e                Entry
		trigger, outcome string
	)
	if err := r.Scan(&e.AttemptID, &e.Seq, &e.TabID, &e.UserID, &e.QuizID, &trigger, &outcome,
		&e.TimeTaken, &e.Answers, &e.Score, &e.Reason, &e.CreateTime); err != nil {
		return Entry{}, err
	}
	e.Trigger = domain.Trigger(trigger)
	e.Outcome = Outcome(outcome)
	return e, nil
}
