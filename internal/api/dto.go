package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizdesk/internal/catalog"
	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/session"
)

type (
	Question struct {
		ID        string   `json:"id"`
		Text      string   `json:"question"`
		ImageLink string   `json:"imageLink,omitempty"`
		Options   []string `json:"options"`
	}

	Session struct {
		AttemptID  string            `json:"attemptId"`
		QuizID     string            `json:"quizId"`
		Status     domain.Status     `json:"status"`
		Remaining  int               `json:"remaining"`
		Clock      string            `json:"clock"`
		Answered   int               `json:"answered"`
		Total      int               `json:"total"`
		GuardArmed bool              `json:"guardArmed"`
		Stalled    bool              `json:"stalled"`
		Error      string            `json:"error,omitempty"`
		Questions  []Question        `json:"questions,omitempty"`
		Answers    map[string]string `json:"answers,omitempty"`
	}

	Result struct {
		UserName        string            `json:"userName"`
		QuizName        string            `json:"quizName"`
		SkippedCount    int               `json:"skippedQuestions"`
		IncorrectCount  int               `json:"incorrectAnswers"`
		CorrectCount    int               `json:"correctAnswers"`
		ScorePercentage decimal.Decimal   `json:"scorePercentage"`
		CorrectAnswers  map[string]string `json:"correctAnswersList"`
	}

	// Submitted tells the browser where to go after a completed attempt.
	Submitted struct {
		Result   Result `json:"result"`
		Redirect string `json:"redirect"`
	}

	ExitResponse struct {
		Outcome  session.ExitOutcome `json:"outcome"`
		Redirect string              `json:"redirect,omitempty"`
	}

	Review struct {
		Question
		SubmittedAnswer string         `json:"submittedAnswer,omitempty"`
		CorrectAnswer   string         `json:"correctAnswer"`
		Verdict         domain.Verdict `json:"verdict"`
	}

	Results struct {
		QuizID string   `json:"quizId"`
		Result Result   `json:"result"`
		Review []Review `json:"review"`
	}

	Quiz struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		ImageLink   string    `json:"imageLink,omitempty"`
		Categories  []string  `json:"categories"`
		IsBasic     bool      `json:"isBasic"`
		StartDate   time.Time `json:"startDate"`
		EndDate     time.Time `json:"endDate"`
	}

	Listing struct {
		Ongoing  []Quiz `json:"ongoing"`
		Upcoming []Quiz `json:"upcoming"`
		Past     []Quiz `json:"past"`
	}

	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
)

func resultRedirect(quizID string) string {
	return "/result/" + quizID
}

func toQuestions(qs []domain.Question) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		out = append(out, Question{ID: q.ID, Text: q.Text, ImageLink: q.ImageLink, Options: q.Options})
	}
	return out
}

func toSession(v session.View) Session {
	return Session{
		AttemptID:  v.AttemptID,
		QuizID:     v.QuizID,
		Status:     v.Status,
		Remaining:  v.Remaining,
		Clock:      v.Clock,
		Answered:   v.Answered,
		Total:      v.Total,
		GuardArmed: v.GuardArmed,
		Stalled:    v.Stalled,
		Error:      v.Error,
	}
}

func toFullSession(ss *session.Session) Session {
	s := toSession(ss.View())
	s.Questions = toQuestions(ss.Questions())
	s.Answers = ss.Answers()
	return s
}

func toResult(r domain.Result) Result {
	return Result{
		UserName:        r.UserName,
		QuizName:        r.QuizName,
		SkippedCount:    r.SkippedCount,
		IncorrectCount:  r.IncorrectCount,
		CorrectCount:    r.CorrectCount,
		ScorePercentage: r.ScorePercentage,
		CorrectAnswers:  r.CorrectAnswers,
	}
}

func toResults(h domain.Handoff) Results {
	reviews := h.Review()
	out := Results{
		QuizID: h.QuizID,
		Result: toResult(h.Result),
		Review: make([]Review, 0, len(reviews)),
	}
	for _, r := range reviews {
		out.Review = append(out.Review, Review{
			Question:        toQuestions([]domain.Question{r.Question})[0],
			SubmittedAnswer: r.SubmittedAnswer,
			CorrectAnswer:   r.CorrectAnswer,
			Verdict:         r.Verdict,
		})
	}
	return out
}

func toQuizzes(qs []domain.Quiz) []Quiz {
	out := make([]Quiz, 0, len(qs))
	for _, q := range qs {
		out = append(out, Quiz{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			ImageLink:   q.ImageLink,
			Categories:  q.Categories,
			IsBasic:     q.IsBasic,
			StartDate:   q.StartDate,
			EndDate:     q.EndDate,
		})
	}
	return out
}

func toListing(l catalog.Listing) Listing {
	return Listing{
		Ongoing:  toQuizzes(l.Ongoing),
		Upcoming: toQuizzes(l.Upcoming),
		Past:     toQuizzes(l.Past),
	}
}

func toUser(u domain.User) User {
	return User{ID: u.ID, Name: u.Name, Email: u.Email}
}
