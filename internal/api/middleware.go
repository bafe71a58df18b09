/**
 * @description
 * Authentication middleware for the HTTP server: validates the HS256 bearer
 * token issued at login and puts the account id on the request context.
 */
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/NikolaiGurianov/BankingApp/internal/app"
)

// AuthContextKey is a custom type for the context key to avoid collisions.
type AuthContextKey string

// AccountIDKey is the key used to store the account's id in the request context.
const AccountIDKey AuthContextKey = "accountID"

// AuthMiddleware creates a middleware that validates a JWT and extracts the
// account id.
func AuthMiddleware(jwtSecret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized: Missing auth credentials", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, "Unauthorized: Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &app.Claims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}

			accountID, err := uuid.Parse(claims.AccountID)
			if err != nil {
				http.Error(w, "Unauthorized: Invalid token subject", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIDFromContext retrieves the authenticated account id from the request
// context.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return accountID, ok
}
