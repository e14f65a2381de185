package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/session"
)

func (a *API) StartSession(c *gin.Context) {
	ctx, user, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	// The browser keeps its own history entry and hides its own chrome from the session view.
	ss, err := a.ss.Start(ctx, session.StartRequest{
		TabID:  tabID(c),
		UserID: user.ID,
		QuizID: c.Param("quizID"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toFullSession(ss))
}

func (a *API) GetSession(c *gin.Context) {
	ss, err := a.ss.Session(tabID(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toFullSession(ss))
}

type SetAnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	Option     string `json:"option" binding:"required"`
}

func (a *API) SetAnswer(c *gin.Context) {
	var req SetAnswerRequest
	if !bind(c, &req) {
		return
	}

	err := a.ss.SetAnswer(c.Request.Context(), session.SetAnswerRequest{
		TabID:      tabID(c),
		QuestionID: req.QuestionID,
		Option:     req.Option,
	})
	if err != nil {
		abort(c, err)
		return
	}

	ss, err := a.ss.Session(tabID(c))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toSession(ss.View()))
}

func (a *API) Submit(c *gin.Context) {
	ctx, _, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	ss, err := a.ss.Session(tabID(c))
	if err != nil {
		abort(c, err)
		return
	}

	res, err := a.ss.Submit(ctx, tabID(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Submitted{Result: toResult(res), Redirect: resultRedirect(ss.QuizID())})
}

func (a *API) Retry(c *gin.Context) {
	ctx, _, err := a.authorize(c)
	if err != nil {
		abort(c, err)
		return
	}

	ss, err := a.ss.Session(tabID(c))
	if err != nil {
		abort(c, err)
		return
	}

	res, err := a.ss.Retry(ctx, tabID(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Submitted{Result: toResult(res), Redirect: resultRedirect(ss.QuizID())})
}

type ExitRequest struct {
	Confirm bool `json:"confirm"`
}

// Exit receives the answer of the browser's leave prompt.
func (a *API) Exit(c *gin.Context) {
	var req ExitRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	outcome, err := a.ss.Exit(ctx, tabID(c), session.Decision(req.Confirm))
	if err != nil && outcome != session.ExitConfirmed {
		abort(c, err)
		return
	}

	resp := ExitResponse{Outcome: outcome}
	if outcome == session.ExitConfirmed {
		if err != nil {
			// The attempt is stalled; the user may retry from the session view.
			a.log.WarnContext(ctx, "api: exit submission failed", "tab_id", tabID(c), "error", err)
			resp.Redirect = "/session"
		} else if ss, lerr := a.ss.Session(tabID(c)); lerr == nil {
			resp.Redirect = resultRedirect(ss.QuizID())
		}
	}

	c.JSON(http.StatusOK, resp)
}

// CloseSession is the unmount of the quiz view. It never submits.
func (a *API) CloseSession(c *gin.Context) {
	a.ss.Close(tabID(c))
	c.Status(http.StatusNoContent)
}

// GetResults hands the last submitted attempt to the results view, or sends the user home.
func (a *API) GetResults(c *gin.Context) {
	h, err := a.ss.Results(c.Request.Context(), tabID(c))
	if errors.CodeOf(err) == errors.CodeNotFound {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toResults(h))
}
