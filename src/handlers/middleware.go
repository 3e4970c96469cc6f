package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/ajconsultancy/tradedesk/src/utils"
	"github.com/google/uuid"
)

type contextKey string

const (
	adminIDContextKey   contextKey = "adminID"
	requestIDContextKey contextKey = "requestID"
)

// ContextualLoggerMiddleware attaches a request-scoped logger carrying a
// generated requestID to every request's context.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))
		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminIDFromContext returns the authenticated admin's ID, set by
// AuthMiddleware.
func GetAdminIDFromContext(ctx context.Context) (int64, bool) {
	adminID, ok := ctx.Value(adminIDContextKey).(int64)
	return adminID, ok
}

// AuthMiddleware validates the Bearer token, checks the backing session and
// puts the admin ID into the request context and logger.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ctxLogger.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		adminIDStr, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			ctxLogger.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		if _, err := model.GetSessionByToken(database.DB, tokenString); err != nil {
			ctxLogger.Warn("AuthMiddleware: Session validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		adminID, err := strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			ctxLogger.Error("AuthMiddleware: Invalid admin ID in token", "adminIDStr", adminIDStr, "error", err)
			utils.SendJSONError(w, "Invalid token subject", http.StatusUnauthorized)
			return
		}

		enrichedLogger := ctxLogger.With(slog.Int64("adminID", adminID))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, adminIDContextKey, adminID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
