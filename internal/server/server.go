// Package server is the agent's loopback HTTP surface: the UI talks to the
// local control API under /local/v1, and every other request is mediated by
// the network agent (cache, network, or synthesized offline response).
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/repsync/internal/agent"
	"github.com/claude/repsync/internal/notify"
	"github.com/claude/repsync/internal/queue"
	"github.com/claude/repsync/internal/session"
	"github.com/claude/repsync/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	agent      *agent.Agent
	machine    *session.Machine
	queue      *queue.Queue
	dispatcher *notify.Dispatcher
	prober     *queue.Prober
	store      *store.Store
	log        *slog.Logger
	router     chi.Router
}

// New creates a new Server with all routes configured.
func New(a *agent.Agent, m *session.Machine, q *queue.Queue, d *notify.Dispatcher, p *queue.Prober, st *store.Store, log *slog.Logger) *Server {
	s := &Server{
		agent:      a,
		machine:    m,
		queue:      q,
		dispatcher: d,
		prober:     p,
		store:      st,
		log:        log,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/local/v1", func(r chi.Router) {
		r.Post("/session", s.handleStartSession)
		r.Get("/session", s.handleSessionState)
		r.Post("/session/sets", s.handleAddSet)
		r.Post("/session/rest/skip", s.handleSkipRest)
		r.Post("/session/rest/extend", s.handleExtendRest)
		r.Post("/session/exercise/next", s.handleNextExercise)
		r.Post("/session/exercise/previous", s.handlePreviousExercise)
		r.Post("/session/complete", s.handleCompleteSession)
		r.Post("/session/abandon", s.handleAbandonSession)

		r.Get("/queue", s.handleQueueList)
		r.Post("/queue/{id}/retry", s.handleQueueRetry)
		r.Delete("/queue/{id}", s.handleQueueDiscard)

		r.Post("/push", s.handlePush)
		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/{id}/respond", s.handleNotificationRespond)

		r.Get("/records", s.handleRecords)
		r.Get("/history/{exerciseID}", s.handleSetHistory)

		r.Get("/status", s.handleStatus)
	})

	// Everything else belongs to the app or the remote API and is mediated.
	s.router.NotFound(s.handleMediated)
}
