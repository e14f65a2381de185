package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionsPerQuestion is the number of choices every question carries.
const OptionsPerQuestion = 4

// Status is the lifecycle state of a quiz attempt.
// Transitions are one-directional: active -> submitting -> submitted.
type Status string

const (
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
)

// Trigger identifies what asked for a submission.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
	TriggerExit    Trigger = "exit"
	TriggerRetry   Trigger = "retry"
)

// Quiz is the catalog entry of a quiz as listed on the home page.
type Quiz struct {
	ID          string
	Title       string
	Description string
	ImageLink   string
	Categories  []string
	IsBasic     bool
	StartDate   time.Time
	EndDate     time.Time
}

type Question struct {
	ID        string
	Text      string
	ImageLink string
	Options   []string
}

// HasOption reports whether o is one of the declared options of the question.
func (q Question) HasOption(o string) bool {
	for _, opt := range q.Options {
		if opt == o {
			return true
		}
	}
	return false
}

// Answers maps a question ID to the selected option text. A question absent from the map is skipped.
type Answers map[string]string

// Clone returns an independent copy of the answers.
func (a Answers) Clone() Answers {
	c := make(Answers, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// SubmissionRecord is the payload sent to the scoring API. It is frozen when a submission starts.
type SubmissionRecord struct {
	AttemptID string
	UserID    string
	QuizID    string
	TimeTaken string
	Answers   Answers
}

// Result is the scoring response of a submitted attempt.
type Result struct {
	UserName        string
	QuizName        string
	SkippedCount    int
	IncorrectCount  int
	CorrectCount    int
	ScorePercentage decimal.Decimal
	CorrectAnswers  map[string]string
}

// Handoff carries everything the results view needs after a successful submission.
type Handoff struct {
	QuizID    string
	Result    Result
	Answers   Answers
	Questions []Question
}

// Verdict is the outcome of one question in the results view.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictSkipped   Verdict = "skipped"
)

type QuestionReview struct {
	Question        Question
	SubmittedAnswer string
	CorrectAnswer   string
	Verdict         Verdict
}

// Review builds the per-question breakdown shown on the results page, in question order.
func (h Handoff) Review() []QuestionReview {
	reviews := make([]QuestionReview, 0, len(h.Questions))
	for _, q := range h.Questions {
		r := QuestionReview{
			Question:        q,
			SubmittedAnswer: h.Answers[q.ID],
			CorrectAnswer:   h.Result.CorrectAnswers[q.ID],
		}

		switch {
		case r.SubmittedAnswer == "":
			r.Verdict = VerdictSkipped
		case r.SubmittedAnswer == r.CorrectAnswer:
			r.Verdict = VerdictCorrect
		default:
			r.Verdict = VerdictIncorrect
		}

		reviews = append(reviews, r)
	}
	return reviews
}

// User is the signed-in account as returned by the auth API.
type User struct {
	ID    string
	Name  string
	Email string
}

// PastQuiz is one entry of the user's attempt history.
type PastQuiz struct {
	ID          string
	QuizName    string
	Categories  []string
	Percentage  decimal.Decimal
	SubmittedAt time.Time
	TimeTaken   string
}

// Analytics is the aggregated dashboard of a quiz, computed by the remote API.
type Analytics struct {
	TotalParticipants   int
	CompletionRatio     decimal.Decimal
	AverageScore        decimal.Decimal
	ParticipationByStd  map[string]int
	ParticipationByCity map[string]int
	TopPerformers       []Performer
}

type Performer struct {
	Name      string
	City      string
	Std       string
	TimeTaken string
}
