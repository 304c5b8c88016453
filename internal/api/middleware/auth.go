// Package middleware holds the HTTP middleware of the API: token
// authentication and request metrics.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aomanu/cidrd/internal/api/auth"
	"github.com/aomanu/cidrd/pkg/models"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated user, or nil outside the
// authenticated route group.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// Auth authenticates requests with a bearer token from the Authorization
// header or, failing that, the configured cookie. Verified token/user
// pairs are served from the cache until its TTL elapses.
func Auth(tokens *auth.Service, users models.UserStore, cache *auth.TokenCache, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r, cookieName)
			if token == "" {
				unauthorized(w, "Missing access token")
				return
			}

			if user := cache.Get(token); user != nil {
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, models.ErrUserNotFound) {
					unauthorized(w, "Unknown user")
					return
				}
				problem(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load user")
				return
			}

			cache.Put(token, user)
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireSuperuser gates a route group to SUPERUSER accounts. Must run
// after Auth.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || user.Role != models.RoleSuperuser {
			problem(w, http.StatusForbidden, "Forbidden", "Superuser privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func extractToken(r *http.Request, cookieName string) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1]
		}
		return ""
	}
	if cookieName != "" {
		if cookie, err := r.Cookie(cookieName); err == nil {
			return cookie.Value
		}
	}
	return ""
}

// problem mirrors the handlers package's RFC 7807 writer. Kept local so
// the middleware does not depend on the handlers package.
func problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

func unauthorized(w http.ResponseWriter, detail string) {
	problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}
