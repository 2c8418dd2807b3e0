// Package server exposes interview sessions over HTTP and streams their stage changes over websockets.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
)

// OrchestratorFactory builds a fresh orchestrator whose session will carry sessionID.
type OrchestratorFactory func(sessionID string) (*interview.Orchestrator, error)

// QuestionSourceFactory binds resume text into a question source.
type QuestionSourceFactory func(resume string, count int) interview.QuestionSource

type Config struct {
	QuestionCount int
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	ReadTimeout   time.Duration
	// Retention is how long a finished session stays readable before it is forgotten.
	Retention time.Duration
}

var errSessionNotFound = errors.New("session not found")

// Server keeps one orchestrator per session. Sessions never share state.
type Server struct {
	cfg             Config
	newOrchestrator OrchestratorFactory
	questionSource  QuestionSourceFactory
	logger          *zap.Logger
	upgrader        websocket.Upgrader
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*interview.Orchestrator
}

func New(cfg Config, factory OrchestratorFactory, questions QuestionSourceFactory, log *zap.Logger) *Server {
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = 5
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:             cfg,
		newOrchestrator: factory,
		questionSource:  questions,
		logger:          logger.WithFields(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*interview.Orchestrator),
	}
}

// NewEcho returns an echo instance with recovery, request logging and the routes registered.
func (s *Server) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.logger.Debug("http request", fields...)
			return nil
		},
	}))
	s.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)

	e.POST("/v1/sessions", s.CreateSession)
	e.GET("/v1/sessions/:id", s.GetSession)
	e.DELETE("/v1/sessions/:id", s.DeleteSession)
	e.POST("/v1/sessions/:id/recording", s.BeginRecording)
	e.POST("/v1/sessions/:id/answers", s.SubmitAnswer)
	e.POST("/v1/sessions/:id/abort", s.AbortSession)
	e.GET("/v1/sessions/:id/events", s.StreamEvents)
}

// Close aborts every session and stops background ingestion.
func (s *Server) Close() {
	s.cancel()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*interview.Orchestrator)
	s.mu.Unlock()

	for _, o := range sessions {
		o.Close()
	}
}

func (s *Server) register(o *interview.Orchestrator, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.sessions[id] = o
}

// evictLocked forgets sessions that finished more than Retention ago.
// Their loops have already stopped; only the status snapshot was kept.
func (s *Server) evictLocked() {
	cutoff := s.now().Add(-s.cfg.Retention)
	for id, o := range s.sessions {
		st := o.Status()
		if st.Stage.Terminal() && st.EndedAt != nil && st.EndedAt.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Debug("evicted finished session", zap.String(logger.FieldSession, id))
		}
	}
}

func (s *Server) lookup(id string) (*interview.Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return o, nil
}

func (s *Server) remove(id string) (*interview.Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	delete(s.sessions, id)
	return o, nil
}

func newSessionID() string {
	return "sess_" + uuid.New().String()[:8]
}
