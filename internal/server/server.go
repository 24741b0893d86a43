package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plantwise-io/plantmon/internal/config"
	"github.com/plantwise-io/plantmon/internal/journal"
	"github.com/plantwise-io/plantmon/internal/lib/logger/sl"
	"github.com/plantwise-io/plantmon/internal/state"
	"github.com/plantwise-io/plantmon/internal/storage"
)

// Server is the single HTTP surface: device ingestion, servo control,
// dashboard queries and health checks.
type Server struct {
	log      *slog.Logger
	cfg      *config.Config
	readings *state.ReadingStore
	mailbox  *state.Mailbox
	journal  *journal.Journal
	store    storage.Store
	server   *http.Server
	checkers []HealthChecker
	mu       sync.RWMutex
}

func New(
	log *slog.Logger,
	cfg *config.Config,
	readings *state.ReadingStore,
	mailbox *state.Mailbox,
	jrnl *journal.Journal,
	store storage.Store,
) *Server {
	return &Server{
		log:      log,
		cfg:      cfg,
		readings: readings,
		mailbox:  mailbox,
		journal:  jrnl,
		store:    store,
		checkers: make([]HealthChecker, 0),
	}
}

func (s *Server) AddChecker(checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/data", s.handleIngest)
	r.Get("/data", s.handleCurrent)
	r.Get("/data/history", s.handleHistory)
	r.Post("/servo", s.handleServo)
	r.Get("/servo-check", s.handleServoCheck)
	r.Get("/logs", s.handleLogs)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	// The dashboard is an external collaborator; serve its assets only
	// when a directory is configured.
	if s.cfg.HTTP.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.HTTP.StaticDir)))
	}

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.HTTP.Address,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}

	s.log.Info("starting http server", slog.String("address", s.cfg.HTTP.Address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
