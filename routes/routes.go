package routes

import (
	"database/sql"
	"net/http"

	"github.com/crowbar-gg/crowbar-backend/handlers"
	"github.com/crowbar-gg/crowbar-backend/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Match     *handlers.MatchHandler
	Dashboard *handlers.DashboardHandler
	WebSocket *handlers.WebSocketHandler
}

func Setup(router *chi.Mux, h Handlers, auth *middleware.Authenticator, allowedOrigins []string, db *sql.DB) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK"}`))
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Get("/me", h.Auth.Me)
				r.Put("/profile", h.Auth.UpdateProfile)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.User.ListUsers)
			r.Get("/leaderboard", h.User.Leaderboard)
			r.Get("/{id}", h.User.GetUserByID)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Post("/me/avatar", h.User.UploadAvatar)
				r.Delete("/me", h.User.DeactivateMe)
			})
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", h.Match.ListMatches)
			r.Get("/recent", h.Match.RecentMatches)
			r.Get("/user/{userID}", h.Match.ListUserMatches)
			r.Get("/stats/{userID}", h.Match.UserStats)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Post("/", h.Match.CreateMatch)
				r.Get("/my", h.Match.MyMatches)
				r.Get("/my/stats", h.Match.MyStats)
			})

			// Registered after the static segments so chi prefers them.
			r.Get("/{id}", h.Match.GetMatchByID)
		})

		r.Get("/dashboard", h.Dashboard.Stats)
	})

	router.Get("/ws/feed", h.WebSocket.ServeFeed)
}
