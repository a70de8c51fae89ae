package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/felicity-events/registration-core/internal/model"
)

// Logger is a structured access log middleware recording method, path,
// status and latency.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("request method=%s path=%s status=%d duration=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CORS is a permissive CORS middleware for browser clients.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-User-Role, X-Participant-Type, X-User-Name, X-User-Email")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type principalKey struct{}

// Authenticate trusts the identity headers set by the upstream auth
// gateway. Auth mechanics are outside this core: whoever reaches it is an
// authenticated principal with a role and an id.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := model.Principal{
			UserID:          r.Header.Get("X-User-ID"),
			Role:            r.Header.Get("X-User-Role"),
			ParticipantType: r.Header.Get("X-Participant-Type"),
			Name:            r.Header.Get("X-User-Name"),
			Email:           r.Header.Get("X-User-Email"),
		}
		if p.UserID == "" || p.Role == "" {
			writeError(w, http.StatusUnauthorized, "missing principal headers")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// RequireRole rejects callers whose role does not match.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal(r).Role != role {
				writeError(w, http.StatusForbidden, "requires "+role+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal returns the authenticated caller attached by Authenticate.
func principal(r *http.Request) model.Principal {
	p, _ := r.Context().Value(principalKey{}).(model.Principal)
	return p
}
