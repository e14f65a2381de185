package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizdesk/internal/auth"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/quizapi"
)

func (a *API) ListQuizzes(c *gin.Context) {
	l, err := a.catalog.ListQuizzes(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toListing(l))
}

func (a *API) Login(c *gin.Context) {
	var req quizapi.LoginRequest
	if !bind(c, &req) {
		return
	}

	u, err := a.auth.Login(c.Request.Context(), tabID(c), req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toUser(u))
}

func (a *API) SignUp(c *gin.Context) {
	var req quizapi.SignUpRequest
	if !bind(c, &req) {
		return
	}

	u, err := a.auth.SignUp(c.Request.Context(), tabID(c), req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUser(u))
}

func (a *API) Logout(c *gin.Context) {
	a.auth.Logout(tabID(c))
	c.Status(http.StatusNoContent)
}

type PastQuiz struct {
	ID          string          `json:"id"`
	QuizName    string          `json:"quizName"`
	Categories  []string        `json:"categories"`
	Percentage  decimal.Decimal `json:"percentage"`
	SubmittedAt string          `json:"submittedAt"`
	TimeTaken   string          `json:"timeTaken"`
}

func (a *API) PastQuizzes(c *gin.Context) {
	ctx, _, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	quizzes, err := a.remote.PastQuizzes(ctx)
	if err != nil {
		abort(c, err)
		return
	}

	out := make([]PastQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, PastQuiz{
			ID:          q.ID,
			QuizName:    q.QuizName,
			Categories:  q.Categories,
			Percentage:  q.Percentage,
			SubmittedAt: q.SubmittedAt.Format("2006-01-02"),
			TimeTaken:   q.TimeTaken,
		})
	}

	c.JSON(http.StatusOK, gin.H{"pastQuizzes": out})
}

func (a *API) Analytics(c *gin.Context) {
	ctx, _, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	an, err := a.remote.Analytics(ctx, c.Param("quizID"))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, an)
}

type CertificateRequest struct {
	QuizName   string          `json:"quizName" binding:"required"`
	Percentage decimal.Decimal `json:"percentage"`
	Email      string          `json:"email"`
}

// SendCertificate e-mails a certificate for a result the user is looking at.
func (a *API) SendCertificate(c *gin.Context) {
	var req CertificateRequest
	if !bind(c, &req) {
		return
	}

	ctx, user, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = user.Email
	}
	if !auth.ValidEmail(email) {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid email address")))
		return
	}

	err = a.remote.SendCertificate(ctx, quizapi.CertificateRequest{
		StudentName: user.Name,
		QuizName:    req.QuizName,
		Percentage:  req.Percentage,
		Email:       email,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Certificate sent to " + email})
}
