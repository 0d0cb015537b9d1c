package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/user-api/backend/internal/handler/user"
	"github.com/zhouzirui/user-api/backend/internal/logger"
	middlewarePkg "github.com/zhouzirui/user-api/backend/internal/middleware"
	"github.com/zhouzirui/user-api/backend/internal/service/events"
	"github.com/zhouzirui/user-api/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. hub may be nil, in which case
// the events stream is not exposed.
func NewRouter(users user.Service, hub *events.Hub, log *logger.Logger, requestTimeout time.Duration) http.Handler {
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(log.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	userHandler := user.New(users, log)

	r.Route("/api", func(api chi.Router) {
		// Long-lived websocket connections stay outside the request timeout and
		// outside /users so every /users/{id} path keeps the id semantics.
		if hub != nil {
			user.NewEventsHandler(hub, log).RegisterRoutes(api)
		}

		api.Group(func(g chi.Router) {
			if requestTimeout > 0 {
				g.Use(middleware.Timeout(requestTimeout))
			}
			userHandler.RegisterRoutes(g)
		})
	})

	return r
}
