package chi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/delivery"
	healthuc "github.com/kailas-cloud/taskpilot/internal/usecase/health"
)

// DefaultHeartbeat is the stream keep-alive interval when Options.Heartbeat is zero.
const DefaultHeartbeat = 15 * time.Second

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply of POST /api/chat.
type ChatResponse struct {
	Goal   string `json:"goal"`
	Answer string `json:"answer"`
}

// SessionResponse is the reply of POST /ui/chat/session.
type SessionResponse struct {
	ClientID string `json:"clientId"`
}

// SubmitRequest is the body of POST /ui/chat/messages.
type SubmitRequest struct {
	ClientID string `json:"clientId"`
	Message  string `json:"message"`
}

// SubmitResponse echoes the accepted user message.
type SubmitResponse struct {
	Message delivery.Message `json:"message"`
}

// PollResponse carries the messages drained for a client.
type PollResponse struct {
	Messages []delivery.Message `json:"messages"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Options tunes the HTTP server.
type Options struct {
	// Heartbeat is the interval between stream keep-alive comments.
	Heartbeat time.Duration
}

// Server serves the chat API and the UI session endpoints.
type Server struct {
	chat      ChatService
	mailboxes Mailboxes
	health    HealthChecker
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(chat ChatService, mailboxes Mailboxes, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:      chat,
		mailboxes: mailboxes,
		health:    health,
		heartbeat: opts.Heartbeat,
		logger:    logger,
	}
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/chat", s.Chat)
	r.Route("/ui/chat", func(r chi.Router) {
		r.Post("/session", s.CreateSession)
		r.Post("/messages", s.SubmitMessage)
		r.Get("/messages/poll", s.PollMessages)
		r.Get("/stream/{clientId}", s.Stream)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Chat handles POST /api/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	exec, err := s.chat.Respond(r.Context(), req.Message)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Goal: exec.Intent.String(), Answer: exec.Answer})
}

// CreateSession handles POST /ui/chat/session.
func (s *Server) CreateSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, SessionResponse{ClientID: uuid.NewString()})
}

// SubmitMessage handles POST /ui/chat/messages.
func (s *Server) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "clientId is required")
		return
	}

	echo, ok := s.chat.Submit(r.Context(), req.ClientID, req.Message)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{Message: echo})
}

// PollMessages handles GET /ui/chat/messages/poll.
func (s *Server) PollMessages(w http.ResponseWriter, r *http.Request) {
	var clientID string
	if err := runtime.BindQueryParameter("form", true, true, "clientId", r.URL.Query(), &clientID); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter clientId: "+err.Error())
		return
	}
	if clientID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "clientId is required")
		return
	}

	writeJSON(w, http.StatusOK, PollResponse{Messages: s.mailboxes.Drain(clientID)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
