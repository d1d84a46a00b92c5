package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/imagecropper/config"
)

// NewRouter wires the public crop endpoint and the admin API
func NewRouter(cfg config.Config, crop *CropHandler, api *ImageAPIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/images/*", crop)
	r.Method(http.MethodHead, "/images/*", crop)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(corsHandler.Handler)
		r.Use(APIKeyMiddleware(cfg.APIKeyHash))

		r.Post("/images", api.Upload)
		r.Post("/images/from-url", api.CreateFromURL)
		r.Get("/images/{image_id}", api.GetImage)
		r.Put("/images/{image_id}/selections/{ratio}", api.UpdateSelection)
		r.Get("/images/{image_id}/renditions", api.ListRenditions)
	})

	return r
}
