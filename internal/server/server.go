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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/mcqtutor/internal/api"
	"github.com/victornm/mcqtutor/internal/backend"
	"github.com/victornm/mcqtutor/internal/chat"
	"github.com/victornm/mcqtutor/internal/event"
	"github.com/victornm/mcqtutor/internal/quiz"
	"github.com/victornm/mcqtutor/internal/session"
	"github.com/victornm/mcqtutor/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Backend struct {
		// URL overrides the cached/default backend base URL.
		URL         string
		LegacyPaths bool
		// QuestionCount per generated quiz, default 4.
		QuestionCount int
		// Classifier is "pattern" (default) or "backend".
		Classifier string
	}

	// Redis caches the resolved backend base URL across restarts. Optional:
	// leave Addrs empty to run without it.
	Redis struct {
		Addrs []string
		Pass  string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis redis.UniversalClient
	}

	service struct {
		backend *backend.Client
		store   *session.Store
		cards   *quiz.Registry
		chat    *chat.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if len(s.c.Redis.Addrs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initService() error {
	baseURL := backend.ResolveBaseURL(context.Background(), s.c.Backend.URL, s.infra.redis)

	s.service.backend = backend.NewClient(backend.Config{
		BaseURL:     baseURL,
		LegacyPaths: s.c.Backend.LegacyPaths,
	})

	store, err := session.NewStore(session.Config{
		EventBus: s.eb,
	})
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	s.service.store = store

	s.service.cards = quiz.NewRegistry(quiz.RegistryConfig{
		Evaluator: s.service.backend,
		EventBus:  s.eb,
	})

	var cls chat.Classifier = chat.PatternClassifier{}
	if s.c.Backend.Classifier == "backend" {
		cls = chat.BackendClassifier{Backend: s.service.backend}
	}

	s.service.chat = chat.NewService(chat.Config{
		Backend:       s.service.backend,
		Store:         s.service.store,
		Cards:         s.service.cards,
		EventBus:      s.eb,
		Classifier:    cls,
		QuestionCount: s.c.Backend.QuestionCount,
	})

	telemetry.ObserveEvents(s.eb)
	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router: e,
		Chat:   s.service.chat,
		Store:  s.service.store,
		Cards:  s.service.cards,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}
