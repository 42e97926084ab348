package routes

import (
	"net/http"

	"github.com/Dosada05/coding-league/handlers"
	"github.com/Dosada05/coding-league/metrics"
	"github.com/Dosada05/coding-league/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

type Handlers struct {
	Match     *handlers.MatchHandler
	Score     *handlers.ScoreHandler
	Roster    *handlers.RosterHandler
	WebSocket *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, auth *middleware.Authenticator, m *metrics.Metrics, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(m.Instrument)

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", m.Handler())

	// Вебсокеты: токен не обязателен, трансляция публичная
	router.Route("/ws", func(r chi.Router) {
		r.Use(auth.Optional)
		r.Get("/matches/{matchID}", h.WebSocket.ServeMatch)
		r.Get("/leaderboard", h.WebSocket.ServeLeaderboard)
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/matches/{matchID}", func(r chi.Router) {
			// Публичные маршруты для зрителей
			r.Group(func(r chi.Router) {
				r.Use(auth.Optional)
				r.Get("/assignments", h.Match.ListAssignments)
				r.Get("/timer", h.Match.GetTimer)
				r.Get("/lineups/{teamID}", h.Match.GetLineup)
				r.Get("/scores", h.Score.GetScores)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)

				r.Post("/assignment", h.Match.RespondAssignment)

				r.Post("/timer/start", h.Match.StartTimer)
				r.Post("/timer/pause", h.Match.PauseTimer)
				r.Post("/timer/resume", h.Match.ResumeTimer)
				r.Post("/timer/end", h.Match.EndTimer)

				r.Put("/lineups/{teamID}", h.Match.SubmitLineup)
				r.Post("/lineups/{teamID}/approve", h.Match.ApproveLineup)

				r.Put("/scores/teams/{teamID}", h.Score.SubmitTeamScore)
				r.Post("/scores/teams/{teamID}/lock", h.Score.LockTeamScore)
				r.Put("/scores/players/{playerID}", h.Score.SubmitPlayerScore)
				r.Put("/scores/auto/{teamID}", h.Score.SubmitAutoScore)
				r.Post("/evaluate", h.Score.RunEvaluation)
				r.Post("/feedback", h.Score.AddFeedback)

				r.Post("/results", h.Match.SubmitResults)
			})
		})

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Get("/members", h.Roster.ListMembers)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Post("/members", h.Roster.AddMember)
				r.Delete("/members/{playerID}", h.Roster.RemoveMember)
				r.Put("/captain", h.Roster.SetCaptain)
				r.Post("/swap", h.Roster.Swap)
			})
		})
	})
}
