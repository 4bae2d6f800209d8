package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"bookclub/internal/api"
	"bookclub/internal/services"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(token)) != 1 {
				writeUnauthorized(w, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// readerMiddleware resolves the X-Reader-ID header into the request context.
// Unknown readers are rejected with 404.
func (s *apiServer) readerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(readerHeader))
		if id == "" {
			writeUnauthorized(w, readerHeader+" header is required")
			return
		}
		reader, err := s.svc.Catalog.ResolveReader(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := services.WithReaderID(r.Context(), reader.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{
		Error: api.ErrorBody{Kind: "Unauthorized", Message: message},
	})
}
