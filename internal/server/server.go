package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence the handlers need. *storage.DB implements it.
type Store interface {
	EnsureProfile(ctx context.Context, profileID int) error
	UpsertSessionHistory(ctx context.Context, p *models.SessionHistoryPayload) (*storage.UpsertResult, error)
	GetSessionHistory(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error)
	ListSessionHistory(ctx context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error)
	DeleteSessionHistoryByID(ctx context.Context, profileID int, id int64) (bool, error)
	DeleteSessionHistoryByDate(ctx context.Context, profileID int, date string) (bool, error)
	PutTrainingSession(ctx context.Context, s *models.TrainingSession) error
	GetTrainingSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error)
	PutRoutineWeekDay(ctx context.Context, p *models.RoutineWeekPayload) error
	GetRoutineWeekDay(ctx context.Context, routineWeekID, dayOfWeek int) (*models.RoutineWeekPayload, error)
	InsertWriteLog(ctx context.Context, log storage.WriteLog) (int64, error)
	QueryWriteLogs(ctx context.Context, profileID, limit int) ([]storage.WriteLog, error)
	GetProfileStats(ctx context.Context, profileID int) (*storage.ProfileStats, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     Store
	log    *slog.Logger
	apiKey string
	loc    *time.Location
	now    func() time.Time
	whois  WhoIser
	router chi.Router
}

// New creates a new Server with all routes configured. loc is the calendar
// used to resolve "today".
func New(db Store, apiKey string, loc *time.Location, log *slog.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		db:     db,
		log:    log,
		apiKey: apiKey,
		loc:    loc,
		now:    time.Now,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(TailscaleIdentity(s.whoIs))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Reads (no auth; tsnet handles access when enabled)
		r.Get("/session-history/{profileID}", s.handleListHistory)
		r.Get("/session-history/{profileID}/{date}", s.handleGetHistory)
		r.Get("/training-sessions/{id}", s.handleGetTrainingSession)
		r.Get("/routine-weeks/{id}/days/{day}", s.handleGetRoutineWeekDay)
		r.Get("/profiles/{profileID}/stats", s.handleProfileStats)
		r.Get("/profiles/{profileID}/write-logs", s.handleWriteLogs)

		// Writes (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Put("/session-history", s.handleUpsertHistory)
			r.Delete("/session-history/{profileID}/id/{id}", s.handleDeleteHistoryByID)
			r.Delete("/session-history/{profileID}/today", s.handleDeleteHistoryToday)
			r.Delete("/session-history/{profileID}/{date}", s.handleDeleteHistoryByDate)
			r.Put("/training-sessions/{id}", s.handlePutTrainingSession)
			r.Put("/routine-weeks/{id}/days/{day}", s.handlePutRoutineWeekDay)
		})
	})
}

// Handle attaches an extra handler, such as the MCP endpoint, at pattern.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// SetTailscale enables caller identity lookup for requests arriving over the
// tailnet.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

func (s *Server) whoIs() WhoIser {
	return s.whois
}
