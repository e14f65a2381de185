package quizapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizdesk/internal/domain"
)

type (
	envelope struct {
		Success *bool  `json:"success,omitempty"`
		Message string `json:"message,omitempty"`
	}

	questionItem struct {
		ID        string   `json:"id"`
		Question  string   `json:"question"`
		ImageLink string   `json:"imageLink,omitempty"`
		Options   []string `json:"options"`
	}

	questionsResponse struct {
		envelope
		QuizQuestions []questionItem `json:"quizQuestions"`
	}

	submitRequest struct {
		UserID    string            `json:"userId"`
		QuizID    string            `json:"quizId"`
		TimeTaken string            `json:"timeTaken"`
		Answers   map[string]string `json:"answers"`
	}

	resultPayload struct {
		UserName           string            `json:"userName"`
		QuizName           string            `json:"quizName"`
		SkippedQuestions   int               `json:"skippedQuestions"`
		IncorrectAnswers   int               `json:"incorrectAnswers"`
		CorrectAnswers     int               `json:"correctAnswers"`
		ScorePercentage    decimal.Decimal   `json:"scorePercentage"`
		CorrectAnswersList map[string]string `json:"correctAnswersList"`
	}

	submitResponse struct {
		envelope
		Data *resultPayload `json:"data"`
	}

	quizItem struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		ImageLink   string    `json:"imageLink"`
		Categories  []string  `json:"categories"`
		IsBasic     bool      `json:"isBasic"`
		StartDate   time.Time `json:"startDate"`
		EndDate     time.Time `json:"endDate"`
	}

	quizzesResponse struct {
		envelope
		Quizzes []quizItem `json:"quizzes"`
	}

	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	userItem struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}

	loginResponse struct {
		envelope
		Token string   `json:"token"`
		User  userItem `json:"user"`
	}

	SignUpRequest struct {
		FirstName    string `json:"firstName"`
		MiddleName   string `json:"middleName"`
		LastName     string `json:"lastName"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		MobileNumber string `json:"mobileNumber"`
		DateOfBirth  string `json:"dateOfBirth"`
		SchoolName   string `json:"schoolName"`
		Standard     string `json:"standard"`
		City         string `json:"city"`
	}

	signUpResponse struct {
		envelope
		Token string `json:"token"`
	}

	pastQuizItem struct {
		ID          string          `json:"id"`
		QuizName    string          `json:"quizName"`
		Categories  []string        `json:"categories"`
		Percentage  decimal.Decimal `json:"percentage"`
		SubmittedAt time.Time       `json:"submittedAt"`
		TimeTaken   string          `json:"timeTaken"`
	}

	pastQuizzesResponse struct {
		envelope
		PastQuizzes []pastQuizItem `json:"pastQuizzes"`
	}

	performerItem struct {
		Name      string `json:"name"`
		City      string `json:"city"`
		Std       string `json:"std"`
		TimeTaken string `json:"timeTaken"`
	}

	analyticsPayload struct {
		TotalParticipants   int             `json:"totalParticipants"`
		CompletionRatio     decimal.Decimal `json:"completionRatio"`
		AverageScore        decimal.Decimal `json:"averageScore"`
		ParticipationByStd  map[string]int  `json:"participationByStd"`
		ParticipationByCity map[string]int  `json:"participationByCity"`
		TopPerformers       []performerItem `json:"topPerformers"`
	}

	analyticsResponse struct {
		envelope
		Data *analyticsPayload `json:"data"`
	}

	CertificateRequest struct {
		StudentName string          `json:"studentName"`
		QuizName    string          `json:"quizName"`
		Percentage  decimal.Decimal `json:"percentage"`
		Email       string          `json:"email"`
	}

	certificateResponse struct {
		envelope
	}
)

// failed reports a logical failure: the server answered but said success=false.
func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

func (q questionItem) toDomain() domain.Question {
	return domain.Question{
		ID:        q.ID,
		Text:      q.Question,
		ImageLink: q.ImageLink,
		Options:   q.Options,
	}
}

func (r resultPayload) toDomain() domain.Result {
	return domain.Result{
		UserName:        r.UserName,
		QuizName:        r.QuizName,
		SkippedCount:    r.SkippedQuestions,
		IncorrectCount:  r.IncorrectAnswers,
		CorrectCount:    r.CorrectAnswers,
		ScorePercentage: r.ScorePercentage,
		CorrectAnswers:  r.CorrectAnswersList,
	}
}

func (q quizItem) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		ImageLink:   q.ImageLink,
		Categories:  q.Categories,
		IsBasic:     q.IsBasic,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
	}
}

func (u userItem) toDomain() domain.User {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return domain.User{
		ID:    u.ID,
		Name:  name,
		Email: u.Email,
	}
}

func (p pastQuizItem) toDomain() domain.PastQuiz {
	return domain.PastQuiz{
		ID:          p.ID,
		QuizName:    p.QuizName,
		Categories:  p.Categories,
		Percentage:  p.Percentage,
		SubmittedAt: p.SubmittedAt,
		TimeTaken:   p.TimeTaken,
	}
}

func (a analyticsPayload) toDomain() domain.Analytics {
	out := domain.Analytics{
		TotalParticipants:   a.TotalParticipants,
		CompletionRatio:     a.CompletionRatio,
		AverageScore:        a.AverageScore,
		ParticipationByStd:  a.ParticipationByStd,
		ParticipationByCity: a.ParticipationByCity,
		TopPerformers:       make([]domain.Performer, 0, len(a.TopPerformers)),
	}
	for _, p := range a.TopPerformers {
		out.TopPerformers = append(out.TopPerformers, domain.Performer(p))
	}
	return out
}
