package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kkogteva6/ReadingPlatform/internal/backend"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
)

type contextKey string

const UserKey contextKey = "user"

// TokenValidator is satisfied by service.AuthService
type TokenValidator interface {
	ValidateToken(token string) (*model.UserClaims, error)
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireUser validates the bearer token and stores the user in the request
// context. The same user becomes the identity sent to the backend.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing authorization header", "unauthorized")
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, service.ErrInvalidToken.Error(), "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
	})
}

// RequireRole must run after RequireUser
func (m *AuthMiddleware) RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, service.ErrForbidden.Error(), "forbidden")
		})
	}
}

// WithUser stores the authenticated user and the matching backend identity
func WithUser(ctx context.Context, user model.User) context.Context {
	ctx = context.WithValue(ctx, UserKey, user)
	return backend.WithIdentity(ctx, user.Email)
}

// GetUser extracts the authenticated user from context
func GetUser(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(UserKey).(model.User)
	return u, ok
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
