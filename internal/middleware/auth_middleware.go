package middleware

import (
	"context"
	"net/http"
	"strings"

	"notesync-server/pkg/jwt"
	"notesync-server/pkg/response"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	// userSinkKey holds a *string the access log reads after the handler
	// returns, since the authenticated request never flows back outward.
	userSinkKey contextKey = "userSink"
)

// AuthMiddleware requires an access token in the Authorization header.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				response.Unauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := jwt.ValidateAccessToken(token, jwtSecret)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	if sink, ok := ctx.Value(userSinkKey).(*string); ok {
		*sink = userID
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

func withUserSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userSinkKey, sink)
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
