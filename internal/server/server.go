package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizdesk/internal/api"
	"github.com/victornm/quizdesk/internal/auth"
	"github.com/victornm/quizdesk/internal/catalog"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/journal"
	"github.com/victornm/quizdesk/internal/quizapi"
	"github.com/victornm/quizdesk/internal/relay"
	"github.com/victornm/quizdesk/internal/session"
	"github.com/victornm/quizdesk/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	QuizAPI struct {
		BaseURL string
		Timeout time.Duration
	}

	Session struct {
		Budget        time.Duration
		SubmitTimeout time.Duration
		// Retention and SweepInterval release sessions whose tab never fetched the results or closed them.
		Retention     time.Duration
		SweepInterval time.Duration
	}

	Catalog struct {
		QuestionsTTL time.Duration
	}

	Relay struct {
		TTL         time.Duration
		ClearOnRead bool
	}

	// Redis is optional. Without it handoffs stay in memory and no notifications are published.
	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Postgres struct {
		// Journal is optional. Without it submission outcomes are only logged.
		Journal PostgresConfig
	}
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

func (c PostgresConfig) DSN() string {
	if c.Addr == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", c.User, c.Pass, c.Addr, c.Name)
}

// DefaultConfig holds the values used when neither the config file nor the environment sets them.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.QuizAPI.BaseURL = "http://127.0.0.1:5000"
	c.QuizAPI.Timeout = 10 * time.Second
	c.Session.Budget = session.DefaultBudget
	c.Session.SubmitTimeout = 30 * time.Second
	c.Session.Retention = session.DefaultRetention
	c.Session.SweepInterval = time.Minute
	c.Catalog.QuestionsTTL = time.Minute
	c.Relay.TTL = relay.DefaultTTL
	c.Relay.ClearOnRead = true
	c.Redis.Addrs = []string{}
	c.Redis.Prefix = "quizdesk"
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		quizapi *quizapi.Client
		catalog *catalog.Catalog
		auth    *auth.Service
		session *session.Service
		journal *journal.Journal
	}

	http *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	if len(s.c.Redis.Addrs) == 0 {
		slog.Info("server: redis not configured, result handoffs stay in memory")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r, "main"); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	dsn := s.c.Postgres.Journal.DSN()
	if dsn == "" {
		slog.Info("server: postgres not configured, submission journal disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	s.service.quizapi = quizapi.New(quizapi.Config{
		BaseURL: s.c.QuizAPI.BaseURL,
		Timeout: s.c.QuizAPI.Timeout,
	})

	s.service.catalog = catalog.New(catalog.Config{
		API:          s.service.quizapi,
		QuestionsTTL: s.c.Catalog.QuestionsTTL,
		LoadTimeout:  s.c.QuizAPI.Timeout,
	})

	s.service.auth = auth.NewService(auth.Config{
		API: s.service.quizapi,
	})

	rc := relay.Config{
		Redis:       s.infra.redis,
		Prefix:      s.c.Redis.Prefix,
		TTL:         s.c.Relay.TTL,
		ClearOnRead: s.c.Relay.ClearOnRead,
	}
	var rl session.Relay = relay.NewMemory(rc)
	if s.infra.redis != nil {
		rl = relay.NewRedis(rc)
	}

	s.service.session = session.NewService(session.Config{
		Questions:     s.service.catalog,
		Scorer:        s.service.quizapi,
		Relay:         rl,
		EventBus:      s.eb,
		Budget:        s.c.Session.Budget,
		SubmitTimeout: s.c.Session.SubmitTimeout,
		Retention:     s.c.Session.Retention,
	})

	if s.infra.postgres != nil {
		s.service.journal = journal.New(journal.Config{
			DB:       s.infra.postgres,
			EventBus: s.eb,
		})
	}

	telemetry.NewMetrics(prometheus.DefaultRegisterer, s.eb)
}

func (s *Server) initAPI() {
	gin.SetMode(gin.ReleaseMode)

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPLogger(slog.Default()))

	c := api.Config{
		Router:       e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Catalog:      s.service.catalog,
		Auth:         s.service.auth,
		Remote:       s.service.quizapi,
		PubsubPrefix: s.c.Redis.Prefix,
	}
	if s.infra.redis != nil {
		c.Redis = s.infra.redis
	}
	if s.service.journal != nil {
		c.Journal = s.service.journal
	}
	api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := s.ctx

	var eg errgroup.Group
	eg.Go(func() error {
		s.service.session.RunSweeper(ctx, s.c.Session.SweepInterval)
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.cancel()
	s.service.session.Shutdown()
	s.eb.Stop()

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
