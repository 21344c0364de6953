package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/infra/logging"
	"gemini-chat-gateway/internal/infra/metrics"
	red "gemini-chat-gateway/internal/infra/redis"
	"gemini-chat-gateway/internal/usecase"
)

type Server struct {
	stateUC  usecase.StateUseCase
	chatUC   usecase.ChatUseCase
	convUC   usecase.ConversationUseCase
	redeemUC usecase.RedeemUseCase

	sessions *SessionManager
	limiter  *red.RateLimiter // nil disables rate limiting
	chatRPM  int
	log      *zerolog.Logger
}

func NewServer(
	stateUC usecase.StateUseCase,
	chatUC usecase.ChatUseCase,
	convUC usecase.ConversationUseCase,
	redeemUC usecase.RedeemUseCase,
	sessions *SessionManager,
	limiter *red.RateLimiter,
	chatPerMinute int,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		stateUC:  stateUC,
		chatUC:   chatUC,
		convUC:   convUC,
		redeemUC: redeemUC,
		sessions: sessions,
		limiter:  limiter,
		chatRPM:  chatPerMinute,
		log:      logger,
	}
}

// Routes builds the full router: health and metrics outside the session
// scope, the six API commands inside it.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/state", s.handleState)
		r.Post("/chat", s.handleChat)
		r.Post("/conversations", s.handleConversations)
		r.Post("/settings", s.handleSettings)
		r.Post("/redeem", s.handleRedeem)
		r.Post("/restore", s.handleRestore)
		r.NotFound(s.handleUnknown)
	})
	return r
}

// withSession resolves the session key for every API request, setting the
// identity cookie on first contact.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, minted := s.sessions.Resolve(r)
		if minted {
			if err := s.sessions.SetCookie(w, key); err != nil {
				s.log.Error().Err(err).Msg("session cookie mint failed")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			metrics.IncSessionMinted()
		}
		ctx := logging.WithSessionKey(r.Context(), key)
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = logging.WithTraceID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
