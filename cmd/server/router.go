package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kunoai/kuno-engine/internal/api"
	apiMiddleware "github.com/kunoai/kuno-engine/internal/api/middleware"
)

// corsMaxAge caches preflight results for five minutes.
const corsMaxAge = 300

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// No request timeout: clients long-poll status while jobs run
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	generationHandler := api.NewGenerationHandler(app.generationService, app.config.Project.MaxUploadBytes, app.logger)
	systemHandler := api.NewSystemHandler(app.systemService, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		generationHandler.Routes(r)
		systemHandler.Routes(r)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
