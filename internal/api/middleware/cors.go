package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns fixed-origin CORS middleware: every success response carries
// Access-Control-Allow-Origin: *. Full CORS rule evaluation (per-bucket
// allowed origins/methods/headers) is out of scope.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"ETag", "x-amz-request-id"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
