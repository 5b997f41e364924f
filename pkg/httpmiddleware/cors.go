package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig controls Cross-Origin Resource Sharing.
type CORSConfig struct {
	// AllowOrigins lists permitted origins; empty or "*" allows any.
	AllowOrigins     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS answers preflight requests and decorates responses with CORS headers.
func CORS(cfg CORSConfig) Middleware {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   cfg.AllowHeaders,
		ExposedHeaders:   append([]string{RequestIDHeader}, cfg.ExposeHeaders...),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
