package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/internal/usecase"
	"github.com/zolachat/zola-api/shared/auth"
)

// NewRouter wires every endpoint under the /api prefix.
func NewRouter(
	logger *zerolog.Logger,
	jwtAuth auth.JWTAuthenticator,
	corsOrigin string,
	authUsecase usecase.AuthUsecase,
	postUsecase usecase.PostUsecase,
	commentUsecase usecase.CommentUsecase,
	profileUsecase usecase.ProfileUsecase,
) http.Handler {
	validator := newRequestValidator()

	authHandler := NewAuthHandler(authUsecase, validator, logger)
	postHandler := NewPostHandler(postUsecase, logger)
	commentHandler := NewCommentHandler(commentUsecase, validator, logger)
	profileHandler := NewProfileHandler(profileUsecase, validator, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors(corsOrigin))
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondMessage(w, http.StatusOK, "Zola API")
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondData(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			authHandler.Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth(jwtAuth))
				r.Post("/logout", authHandler.logout)
			})
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(requireAuth(jwtAuth))
			profileHandler.Routes(r)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(requireAuth(jwtAuth))
				postHandler.ProtectedRoutes(r)
			})
			postHandler.PublicRoutes(r)
		})

		r.Route("/comments", func(r chi.Router) {
			commentHandler.PublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth(jwtAuth))
				commentHandler.ProtectedRoutes(r)
			})
		})
	})

	return r
}

// requestLogger logs one line per request through the service logger.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Msg("request")
		})
	}
}
