package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/mmonit-hub/internal/console/handler"
	"github.com/xela07ax/mmonit-hub/internal/engine"
	"github.com/xela07ax/mmonit-hub/internal/infra/auth"
	"go.uber.org/zap"
)

// Authenticator — то, что нужно периметру: проверка токенов и Basic
type Authenticator interface {
	auth.TokenValidator
	auth.BasicAuthenticator
}

type HubServer struct {
	router *chi.Mux
	logger *zap.Logger

	authenticator auth.TokenValidator
	basic         auth.BasicAuthenticator
	authRequired  bool

	authHandler *handler.AuthHandler      // /auth/token, /auth/logout
	dashHandler *handler.DashboardHandler // /api/data, /api/settings
}

// NewHubServer инициализирует HTTP API хаба со всеми зависимостями
func NewHubServer(
	logger *zap.Logger,
	authenticator Authenticator,
	authRequired bool,
	authH *handler.AuthHandler,
	dashH *handler.DashboardHandler,
) *HubServer {
	s := &HubServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("hub-api"),
		authenticator: authenticator,
		basic:         authenticator,
		authRequired:  authRequired,
		authHandler:   authH,
		dashHandler:   dashH,
	}

	s.routes()
	return s
}

func (s *HubServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Post("/auth/token", s.authHandler.Login)
		r.Post("/auth/logout", s.authHandler.Logout)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Bearer, cookie или Basic, если пользователи настроены) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authenticator, s.basic, s.authRequired, s.logger))

		r.Get("/api/data", s.dashHandler.GetData)
		r.Get("/api/settings", s.dashHandler.GetSettings)
	})
}

// accessLog — журнал запросов в zap вместо стандартного логгера chi
func (s *HubServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("trace_id", ww.Header().Get(engine.TraceIDHeader)))
		}()

		next.ServeHTTP(ww, r)
	})
}

// ServeHTTP позволяет использовать HubServer как стандартный http.Handler
func (s *HubServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
