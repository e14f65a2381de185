package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizdesk/internal/catalog"
	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/quizapi"
	"github.com/victornm/quizdesk/internal/session"
)

const (
	tabHeader = "X-Tab-ID"
	tabCookie = "tab"
	tabKey    = "tab_id"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Catalog      Catalog
	Auth         Auth
	Remote       Remote
	Journal      Journal
	Redis        Redis
	PubsubPrefix string
	Logger       *slog.Logger
}

type Catalog interface {
	ListQuizzes(ctx context.Context) (catalog.Listing, error)
}

type Auth interface {
	Login(ctx context.Context, tabID string, req quizapi.LoginRequest) (domain.User, error)
	SignUp(ctx context.Context, tabID string, req quizapi.SignUpRequest) (domain.User, error)
	Authorize(ctx context.Context, tabID string) (context.Context, domain.User, error)
	Logout(tabID string)
}

// Remote is the part of the quiz API served through without local state.
type Remote interface {
	PastQuizzes(ctx context.Context) ([]domain.PastQuiz, error)
	Analytics(ctx context.Context, quizID string) (domain.Analytics, error)
	SendCertificate(ctx context.Context, req quizapi.CertificateRequest) error
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ss      *session.Service
	catalog Catalog
	auth    Auth
	remote  Remote
	journal Journal

	redis  Redis
	prefix string

	upgrader websocket.Upgrader
	log      *slog.Logger
}

func New(c Config) *API {
	a := &API{
		ss:      c.Session,
		catalog: c.Catalog,
		auth:    c.Auth,
		remote:  c.Remote,
		journal: c.Journal,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: c.Logger,
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	// HTTP APIs
	r := c.Router.Group("/", withTab)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.GET("/quizzes", a.ListQuizzes)
	r.POST("/quizzes/:quizID/sessions", a.StartSession)

	r.GET("/session", a.GetSession)
	r.PUT("/session/answers", a.SetAnswer)
	r.POST("/session/submit", a.Submit)
	r.POST("/session/exit", a.Exit)
	r.POST("/session/retry", a.Retry)
	r.DELETE("/session", a.CloseSession)
	r.GET("/session/ws", a.WatchSession)

	r.GET("/results", a.GetResults)
	r.POST("/results/certificate", a.SendCertificate)

	r.POST("/auth/login", a.Login)
	r.POST("/auth/signup", a.SignUp)
	r.POST("/auth/logout", a.Logout)
	r.GET("/me/past-quizzes", a.PastQuizzes)
	r.GET("/analytics/:quizID", a.Analytics)
	if a.journal != nil {
		r.GET("/me/attempts", a.ListAttempts)
		r.GET("/me/attempts/:attemptID", a.GetAttempt)
	}

	// Register event handlers
	if a.redis != nil && c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameSessionSubmitted, func(ctx context.Context, e event.Event) error {
			return a.PublishSessionSubmitted(ctx, e.(domain.EventSessionSubmitted))
		})
		c.EventBus.Subscribe(domain.EventNameSessionSubmitFailed, func(ctx context.Context, e event.Event) error {
			return a.PublishSessionSubmitFailed(ctx, e.(domain.EventSessionSubmitFailed))
		})
	}

	return a
}

// withTab resolves the browser tab of the request. A tab without an id gets a new one as a session cookie.
func withTab(c *gin.Context) {
	id := c.GetHeader(tabHeader)
	if id == "" {
		id, _ = c.Cookie(tabCookie)
	}
	if id == "" {
		id = uuid.NewString()
		c.SetCookie(tabCookie, id, 0, "/", "", false, true)
	}

	c.Header(tabHeader, id)
	c.Set(tabKey, id)
	c.Next()
}

func tabID(c *gin.Context) string {
	return c.GetString(tabKey)
}

// authorize returns a context carrying the tab's bearer token.
func (a *API) authorize(c *gin.Context) (context.Context, domain.User, error) {
	return a.auth.Authorize(c.Request.Context(), tabID(c))
}

// abort writes err as the response, using its code to pick the HTTP status.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err), errors.WithMessagef("invalid request body")))
		return false
	}
	return true
}
