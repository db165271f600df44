// Package http implements the REST API for RianHub.
// It exposes the learning platform to web and mobile clients: auth,
// course catalog, quiz flow, mastery and path reads, gamification,
// notifications, offline sync, the xAPI statement store, and the tutor
// chat. All state changes go through application commands and sagas.
package http

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/query"
	"github.com/rianlab/rianhub/internal/application/saga"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// EnableCORS - enable CORS headers for browser clients.
	EnableCORS bool

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// TrustedProxies - list of trusted proxy IPs for X-Forwarded-For.
	TrustedProxies []string

	// APIKeyHeader - header carrying the LRS integration key.
	APIKeyHeader string

	// APIKeys - keys accepted on the xAPI statement endpoints. These
	// let an external LMS push statements without a learner token.
	APIKeys []string

	// MaxBodyBytes - maximum size of request bodies.
	MaxBodyBytes int64

	// ActorHomePage is the xAPI account home page used when deriving
	// actor keys for statement queries.
	ActorHomePage string
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20, // 1 MB
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		APIKeyHeader:       "X-API-Key",
		MaxBodyBytes:       1 << 20, // 1 MB
		ActorHomePage:      "https://rianhub.app",
	}
}

// Address returns the full listen address.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier checks a bearer token and returns the learner identity
// baked into it.
type TokenVerifier interface {
	Verify(token string) (learnerID string, role learner.Role, err error)
}

// ActivityRecorder marks a learner's current minute active. Fed from
// the authenticated paths; the analytics rollup reads the marks.
type ActivityRecorder interface {
	Record(ctx context.Context, learnerID string)
}

// Dependencies contains everything the route handlers call into.
// Nil entries disable their routes with 501 instead of panicking, which
// keeps partial wiring (tests, worker-only deploys) harmless.
type Dependencies struct {
	// Auth
	Onboarding   *saga.OnboardingSaga
	LoginHandler *command.LoginHandler
	Tokens       TokenVerifier
	Activity     ActivityRecorder

	// Courses and progress
	CreateCourseHandler   *command.CreateCourseHandler
	EditCourseHandler     *command.EditCourseHandler
	PublishCourseHandler  *command.PublishCourseHandler
	EnrollCourseHandler   *command.EnrollCourseHandler
	LessonProgressHandler *command.RecordLessonProgressHandler
	ListCoursesHandler    *query.ListCoursesHandler
	GetCourseHandler      *query.GetCourseHandler

	// Competency graph
	CompetencyHandler *command.SaveCompetencyHandler

	// Quizzes
	CreateQuizHandler *command.CreateQuizHandler
	StartQuizHandler  *command.StartQuizAttemptHandler
	SubmitQuizHandler *command.SubmitQuizAttemptHandler

	// Mastery and analytics reads
	MasteryProfileHandler *query.GetMasteryProfileHandler
	LearningPathHandler   *query.GetLearningPathHandler
	DailyProgressHandler  *query.GetDailyProgressHandler
	LeaderboardHandler    *query.GetLeaderboardHandler
	CourseFunnelHandler   *query.GetCourseFunnelHandler
	MasteryDistHandler    *query.GetMasteryDistributionHandler

	// Learner profile and preferences
	ProfileHandler     *query.GetLearnerProfileHandler
	PreferencesHandler *command.UpdatePreferencesHandler

	// Notifications
	NotificationsHandler *query.GetNotificationsHandler
	MarkReadHandler      *command.MarkNotificationReadHandler

	// Offline sync
	RegisterDeviceHandler *command.RegisterDeviceHandler
	SyncPushHandler       *command.SyncPushHandler
	SyncChangesHandler    *query.GetSyncChangesHandler

	// xAPI statement store
	StoreStatementHandler *command.StoreStatementHandler
	FindStatementsHandler *query.FindStatementsHandler

	// Tutor chat
	ChatHandler         *command.ChatWithTutorHandler
	ListSessionsHandler *query.ListChatSessionsHandler
	GetSessionHandler   *query.GetChatSessionHandler

	// Infrastructure
	HealthChecker handlers.HealthChecker
	Logger        *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP API server.
type Server struct {
	config Config
	deps   Dependencies

	httpServer *http.Server
	router     *http.ServeMux
	logger     *slog.Logger

	apiKeys     *handlers.APIKeyAuth
	rateLimiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "http_server")

	if len(config.APIKeys) > 0 {
		s.apiKeys = handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeys)
	}
	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute)
	}

	s.setupRoutes()

	handler := s.applyMiddleware(s.router)
	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// ROUTES
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) setupRoutes() {
	// Health and status
	s.router.HandleFunc("GET /", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)

	// Auth (public)
	s.router.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	// Course catalog. Listing and detail work without a token; a token
	// adds the per-learner progress overlay.
	s.router.HandleFunc("GET /api/v1/courses", s.optionalAuth(s.handleListCourses))
	s.router.HandleFunc("GET /api/v1/courses/{id}", s.optionalAuth(s.handleGetCourse))

	// Authoring
	s.router.HandleFunc("POST /api/v1/courses", s.requireAuth(s.handleCreateCourse))
	s.router.HandleFunc("PATCH /api/v1/courses/{id}", s.requireAuth(s.handleUpdateCourse))
	s.router.HandleFunc("POST /api/v1/courses/{id}/publish", s.requireAuth(s.handlePublishCourse))
	s.router.HandleFunc("POST /api/v1/courses/{id}/archive", s.requireAuth(s.handleArchiveCourse))
	s.router.HandleFunc("POST /api/v1/courses/{id}/lessons", s.requireAuth(s.handleAddLesson))
	s.router.HandleFunc("PUT /api/v1/courses/{id}/lessons/order", s.requireAuth(s.handleReorderLessons))
	s.router.HandleFunc("DELETE /api/v1/courses/{id}/lessons/{lessonID}", s.requireAuth(s.handleDeleteLesson))

	// Study flow
	s.router.HandleFunc("POST /api/v1/courses/{id}/enroll", s.requireAuth(s.handleEnroll))
	s.router.HandleFunc("POST /api/v1/courses/{id}/lessons/{lessonID}/progress", s.requireAuth(s.handleLessonProgress))

	// Competency graph (author/admin writes)
	s.router.HandleFunc("POST /api/v1/competencies", s.requireAuth(s.handleCreateCompetency))
	s.router.HandleFunc("PUT /api/v1/competencies/{id}", s.requireAuth(s.handleUpdateCompetency))
	s.router.HandleFunc("DELETE /api/v1/competencies/{id}", s.requireAuth(s.handleDeleteCompetency))

	// Quizzes
	s.router.HandleFunc("POST /api/v1/quizzes", s.requireAuth(s.handleCreateQuiz))
	s.router.HandleFunc("POST /api/v1/quizzes/{id}/attempts", s.requireAuth(s.handleStartAttempt))
	s.router.HandleFunc("POST /api/v1/attempts/{id}/submit", s.requireAuth(s.handleSubmitAttempt))

	// Learner profile, mastery, path, analytics
	s.router.HandleFunc("GET /api/v1/me", s.requireAuth(s.handleGetProfile))
	s.router.HandleFunc("PUT /api/v1/me/preferences", s.requireAuth(s.handleUpdatePreferences))
	s.router.HandleFunc("GET /api/v1/me/mastery", s.requireAuth(s.handleMasteryProfile))
	s.router.HandleFunc("GET /api/v1/me/path", s.requireAuth(s.handleLearningPath))
	s.router.HandleFunc("GET /api/v1/me/progress/daily", s.requireAuth(s.handleDailyProgress))

	// Reporting (author/admin)
	s.router.HandleFunc("GET /api/v1/courses/{id}/funnel", s.requireAuth(s.handleCourseFunnel))
	s.router.HandleFunc("GET /api/v1/competencies/{id}/distribution", s.requireAuth(s.handleMasteryDistribution))

	// Leaderboard (public read)
	s.router.HandleFunc("GET /api/v1/leaderboard", s.optionalAuth(s.handleLeaderboard))

	// Notifications
	s.router.HandleFunc("GET /api/v1/me/notifications", s.requireAuth(s.handleListNotifications))
	s.router.HandleFunc("POST /api/v1/me/notifications/{id}/read", s.requireAuth(s.handleMarkNotificationRead))
	s.router.HandleFunc("POST /api/v1/me/notifications/read-all", s.requireAuth(s.handleMarkAllNotificationsRead))

	// Offline sync
	s.router.HandleFunc("POST /api/v1/sync/devices", s.requireAuth(s.handleRegisterDevice))
	s.router.HandleFunc("POST /api/v1/sync/push", s.requireAuth(s.handleSyncPush))
	s.router.HandleFunc("GET /api/v1/sync/changes", s.requireAuth(s.handleSyncChanges))

	// xAPI statement store. Writes accept either a learner token or an
	// LRS integration key; reads are admin only.
	s.router.HandleFunc("POST /api/v1/xapi/statements", s.authOrAPIKey(s.handleStoreStatement))
	s.router.HandleFunc("GET /api/v1/xapi/statements", s.requireAuth(s.handleFindStatements))

	// Tutor chat
	s.router.HandleFunc("POST /api/v1/tutor/chat", s.requireAuth(s.handleTutorChat))
	s.router.HandleFunc("GET /api/v1/tutor/sessions", s.requireAuth(s.handleListChatSessions))
	s.router.HandleFunc("GET /api/v1/tutor/sessions/{id}", s.requireAuth(s.handleGetChatSession))
}

// ─────────────────────────────────────────────────────────────────────────────
// MIDDLEWARE
// ─────────────────────────────────────────────────────────────────────────────

// applyMiddleware wraps the router in the middleware chain.
// Order matters: applied in reverse, so the first listed runs first.
func (s *Server) applyMiddleware(h http.Handler) http.Handler {
	if s.config.MaxBodyBytes > 0 {
		h = handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes)(h)
	}
	if s.rateLimiter != nil {
		h = s.rateLimitMiddleware(h)
	}
	if s.config.EnableCORS {
		h = s.corsMiddleware(h)
	}
	h = s.recoveryMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.requestIDMiddleware(h)
	return h
}

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with method, path, status and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", getRequestID(r.Context()),
			"remote", s.getClientIP(r),
		)
	})
}

// recoveryMiddleware recovers from panics in handlers.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in http handler",
					"panic", fmt.Sprintf("%v", rec),
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+s.config.APIKeyHeader)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// rateLimitMiddleware enforces the per-IP rate limit.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := s.getClientIP(r)
		if !s.rateLimiter.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token and injects the learner identity
// into the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learnerID, role, ok := s.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="rianhub"`)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid token")
			return
		}
		s.touchActivity(learnerID)
		next(w, r.WithContext(withIdentity(r.Context(), learnerID, role)))
	}
}

// optionalAuth injects the identity when a valid token is present and
// passes the request through anonymously otherwise.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if learnerID, role, ok := s.authenticate(r); ok {
			s.touchActivity(learnerID)
			r = r.WithContext(withIdentity(r.Context(), learnerID, role))
		}
		next(w, r)
	}
}

// touchActivity marks the learner's current minute active, off the
// request path. The rollup job aggregates these marks nightly.
func (s *Server) touchActivity(learnerID string) {
	if s.deps.Activity == nil || learnerID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.deps.Activity.Record(ctx, learnerID)
	}()
}

// authOrAPIKey accepts either a learner token or an integration API key.
// API key callers act with admin scope on the statement endpoints.
func (s *Server) authOrAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKeys != nil && s.apiKeys.IsValid(r.Header.Get(s.config.APIKeyHeader)) {
			next(w, r.WithContext(withIdentity(r.Context(), "", learner.RoleAdmin)))
			return
		}
		s.requireAuth(next)(w, r)
	}
}

func (s *Server) authenticate(r *http.Request) (string, learner.Role, bool) {
	if s.deps.Tokens == nil {
		return "", "", false
	}
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", "", false
	}
	learnerID, role, err := s.deps.Tokens.Verify(token)
	if err != nil {
		return "", "", false
	}
	return learnerID, role, true
}

// getClientIP extracts the real client IP, honoring trusted proxies.
func (s *Server) getClientIP(r *http.Request) string {
	if len(s.config.TrustedProxies) > 0 {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// ─────────────────────────────────────────────────────────────────────────────
// LIFECYCLE
// ─────────────────────────────────────────────────────────────────────────────

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("http server starting", "address", s.config.Address())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine and returns immediately.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("http server shutting down")

	if s.rateLimiter != nil {
		s.rateLimiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard response envelope.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError describes an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta carries pagination and timing metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Page      int       `json:"page,omitempty"`
	PageSize  int       `json:"page_size,omitempty"`
	HasMore   bool      `json:"has_more,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	resp := JSONResponse{Success: status < 400, Data: data}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *ResponseMeta) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if meta != nil && meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
		meta.Version = "v1"
	}
	resp := JSONResponse{
		Success:   status < 400,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	resp := JSONResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps domain error kinds onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", "Not allowed")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err), errors.Is(err, shared.ErrConcurrentModification):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrStateTransition):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, shared.ErrExpired):
		writeJSONError(w, http.StatusGone, "expired", err.Error())
	case errors.Is(err, shared.ErrRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
	case shared.IsExternalService(err):
		writeJSONError(w, http.StatusServiceUnavailable, "upstream_unavailable", "Upstream service unavailable")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CONTEXT AND HELPERS
// ──────────────────────────────────────────────────────────────────────────────

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyLearnerID contextKey = "learner_id"
	contextKeyRole      contextKey = "role"
)

func withIdentity(ctx context.Context, learnerID string, role learner.Role) context.Context {
	ctx = context.WithValue(ctx, contextKeyLearnerID, learnerID)
	return context.WithValue(ctx, contextKeyRole, role)
}

// learnerFromContext returns the authenticated learner ID, empty when
// the request is anonymous.
func learnerFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyLearnerID).(string); ok {
		return id
	}
	return ""
}

func roleFromContext(ctx context.Context) learner.Role {
	if role, ok := ctx.Value(contextKeyRole).(learner.Role); ok {
		return role
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

var requestCounter uint64
var requestCounterMu sync.Mutex

func generateRequestID() string {
	requestCounterMu.Lock()
	requestCounter++
	n := requestCounter
	requestCounterMu.Unlock()
	return fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), n)
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// getQueryParam extracts a query parameter with a default value.
func getQueryParam(r *http.Request, key, defaultValue string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultValue
}

// getQueryParamInt extracts an integer query parameter with a default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// getQueryParamBool extracts a boolean query parameter.
func getQueryParamBool(r *http.Request, key string) bool {
	v := strings.ToLower(r.URL.Query().Get(key))
	return v == "true" || v == "1" || v == "yes"
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ──────────────────────────────────────────────────────────────────────────────
// RATE LIMITER
// ──────────────────────────────────────────────────────────────────────────────

// rateLimiter implements a sliding-window per-key rate limit.
type rateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time
	done     chan struct{}
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		limit:    perMinute,
		window:   time.Minute,
		requests: make(map[string][]time.Time),
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	times := rl.requests[key]
	valid := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for key, times := range rl.requests {
		valid := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.done)
}
