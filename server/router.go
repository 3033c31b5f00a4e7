package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter configures the API routes. A non-empty authSecret puts the conversion route
// behind bearer auth; health stays open.
func NewRouter(handler *Handler, authSecret string) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID)

	var convertHandler http.Handler = http.HandlerFunc(handler.ConvertHLS)
	if authSecret != "" {
		convertHandler = RequireBearer([]byte(authSecret))(convertHandler)
	}
	r.Handle("/api/hls", convertHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/health", handler.Health).Methods(http.MethodGet)
	return r
}

// WithCORS wraps h with the CORS policy for origins.
func WithCORS(h http.Handler, origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length", requestIDHeader},
		MaxAge:         86400,
	})
	return c.Handler(h)
}
