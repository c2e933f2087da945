package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/utils"
)

func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		userIDStr, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userIDInt, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			logger.L.Error("AuthMiddleware: Invalid user ID format in token", "userIDStr", userIDStr, "error", err)
			utils.SendJSONError(w, "Invalid user ID in token", http.StatusInternalServerError)
			return
		}

		var sessionExists bool
		err = database.DB.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM sessions WHERE token = ? AND is_blocked = FALSE)",
			tokenString).Scan(&sessionExists)
		if err != nil {
			logger.L.Error("AuthMiddleware: session lookup failed", "userID", userIDInt, "error", err)
			utils.SendJSONError(w, "Failed to validate session", http.StatusInternalServerError)
			return
		}
		if !sessionExists {
			// GitHub OAuth logins carry a valid token without a session row.
			// Local accounts without a session are treated as logged out.
			user, userErr := models.GetUserByID(database.DB, userIDInt)
			if userErr != nil {
				logger.L.Warn("AuthMiddleware: user not found after session check failed", "userID", userIDInt, "error", userErr)
				utils.SendJSONError(w, "Invalid session or user", http.StatusUnauthorized)
				return
			}
			if user.AuthProvider == "local" {
				logger.L.Warn("AuthMiddleware: session validation failed for local user", "path", r.URL.Path, "userID", userIDInt)
				utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userIDInt)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
