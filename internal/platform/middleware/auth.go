package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "github.com/fossabot/authrim-sub007/pkg/domain"
	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID    string
	SessionID string
	TenantID  string
	ClientID  string
}

// RequireAuth validates the Bearer token and stores the authenticated
// identifiers in the request context. Downstream code reads them back
// through the typed requestcontext accessors.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				writeUnauthorized(r.Context(), w, logger,
					"unauthorized access - missing token",
					"Missing or invalid Authorization header", nil)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				writeUnauthorized(r.Context(), w, logger,
					"unauthorized access - invalid token",
					"Invalid or expired token", err)
				return
			}

			ctx, err := authContext(r.Context(), claims)
			if err != nil {
				writeUnauthorized(r.Context(), w, logger,
					"unauthorized access - malformed claims",
					"Invalid or expired token", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authContext parses the claim strings into typed identifiers and stores
// them in the context. All four identifiers are required.
func authContext(ctx context.Context, claims *JWTClaims) (context.Context, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user_id claim: %w", err)
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session_id claim: %w", err)
	}
	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant_id claim: %w", err)
	}
	clientID, err := id.ParseClientID(claims.ClientID)
	if err != nil {
		return nil, fmt.Errorf("client_id claim: %w", err)
	}

	ctx = requestcontext.WithUserID(ctx, userID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	ctx = requestcontext.WithTenantID(ctx, tenantID)
	ctx = requestcontext.WithClientID(ctx, clientID)
	return ctx, nil
}

func writeUnauthorized(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, logMsg, description string, cause error) {
	requestID := GetRequestID(ctx)
	attrs := []any{"request_id", requestID}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	logger.WarnContext(ctx, logMsg, attrs...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := fmt.Sprintf(`{"error":"unauthorized","error_description":%q}`, description)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", requestID,
		)
	}
}
