package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/boxshift/backend/src/config"
	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/security"
	"github.com/username/boxshift/backend/src/security/validation"
	"github.com/username/boxshift/backend/src/utils"
)

// Define a custom type for context keys to avoid collisions.
// This type is unexported, making it unique to this package.
type contextKey string

const userIDContextKey contextKey = "userID"

type UserHandler struct {
	authService *security.AuthService
}

func NewUserHandler(authService *security.AuthService) *UserHandler {
	return &UserHandler{
		authService: authService,
	}
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	email, ok := validation.NormalizeEmail(credentials.Email)
	if !ok {
		utils.SendJSONError(w, "Invalid email address", http.StatusBadRequest)
		return
	}
	if len(credentials.Password) < 8 {
		utils.SendJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.authService.HashPassword(credentials.Password)
	if err != nil {
		logger.L.Error("Failed to hash password during registration", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Email:        email,
		Name:         validation.StripUnprintable(credentials.Name),
		Password:     hashedPassword,
		AuthProvider: "local",
	}

	userID, err := models.CreateUser(database.DB, user)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			utils.SendJSONError(w, "Email already registered", http.StatusConflict)
			return
		}
		logger.L.Error("Failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	// A registered waitlist lead has now become a customer.
	if err := models.MarkLeadConverted(database.DB, email); err != nil {
		logger.L.Warn("Failed to mark lead converted", "email", email, "error", err)
	}

	logger.L.Info("User registered", "userID", userID, "email", email)
	utils.SendJSON(w, map[string]interface{}{
		"message": "User registered successfully",
		"id":      userID,
	}, http.StatusCreated)
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	email, ok := validation.NormalizeEmail(credentials.Email)
	if !ok {
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	user, err := models.GetUserByEmail(database.DB, email)
	if err != nil {
		logger.L.Debug("Login: user lookup failed", "email", email, "error", err)
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if user.AuthProvider != "local" || user.Password == "" {
		utils.SendJSONError(w, "This account uses GitHub login", http.StatusUnauthorized)
		return
	}

	if err := h.authService.CompareHashAndPassword(user.Password, credentials.Password); err != nil {
		logger.L.Debug("Login: password check failed", "userID", user.ID)
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	accessToken, refreshToken, err := h.issueSession(r, user.ID)
	if err != nil {
		logger.L.Error("Login: failed to issue session", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"onboarded": user.Onboarded,
		},
	}, http.StatusOK)
}

func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if requestBody.RefreshToken == "" {
		utils.SendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	session, err := models.GetSessionByRefreshToken(database.DB, requestBody.RefreshToken)
	if err != nil {
		logger.L.Warn("Refresh: session lookup failed", "error", err)
		utils.SendJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	if session.IsBlocked || time.Now().After(session.ExpiresAt) {
		utils.SendJSONError(w, "Session expired", http.StatusUnauthorized)
		return
	}

	newAccessToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", session.UserID))
	if err != nil {
		utils.SendJSONError(w, "Failed to generate new access token", http.StatusInternalServerError)
		return
	}
	if err := models.UpdateSessionToken(database.DB, session.ID, newAccessToken); err != nil {
		logger.L.Error("Refresh: failed to rotate session token", "sessionID", session.ID, "error", err)
		utils.SendJSONError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]string{
		"access_token":  newAccessToken,
		"refresh_token": session.RefreshToken,
	}, http.StatusOK)
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := models.DeleteSessionsForUser(database.DB, userID); err != nil {
		logger.L.Warn("Logout: failed to delete sessions", "userID", userID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// OnboardHandler records the intake answers and creates the user's BV. The
// company row is what every transaction, holding and report hangs off.
func (h *UserHandler) OnboardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Name             string `json:"name"`
		CompanyName      string `json:"company_name"`
		KvKNumber        string `json:"kvk_number"`
		Broker           string `json:"broker"`
		Situation        string `json:"situation"`
		VermogenEstimate int64  `json:"vermogen_estimate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.CompanyName == "" {
		utils.SendJSONError(w, "company_name is required", http.StatusBadRequest)
		return
	}

	user, err := models.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if payload.Name != "" {
		user.Name = validation.StripUnprintable(payload.Name)
	}
	if payload.Broker != "" {
		user.Broker = payload.Broker
	}
	if payload.Situation != "" {
		user.Situation = payload.Situation
	}
	user.VermogenEstimate = payload.VermogenEstimate

	if err := models.UpdateUserOnboarding(database.DB, user); err != nil {
		logger.L.Error("Onboard: failed to update user", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to save onboarding answers", http.StatusInternalServerError)
		return
	}

	company, err := models.GetCompanyByUserID(database.DB, userID)
	if errors.Is(err, models.ErrNotFound) {
		company = &models.Company{
			UserID:    userID,
			Name:      validation.StripUnprintable(payload.CompanyName),
			KvKNumber: validation.StripUnprintable(payload.KvKNumber),
			Status:    "pending",
		}
		companyID, createErr := models.CreateCompany(database.DB, company)
		if createErr != nil {
			logger.L.Error("Onboard: failed to create company", "userID", userID, "error", createErr)
			utils.SendJSONError(w, "Failed to create company", http.StatusInternalServerError)
			return
		}
		company.ID = companyID
		logger.L.Info("Company created during onboarding", "userID", userID, "companyID", companyID)
	} else if err != nil {
		logger.L.Error("Onboard: company lookup failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to load company", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"message": "Onboarding complete",
		"company": company,
	}, http.StatusOK)
}

func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := models.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{"user": user}
	if company, err := models.GetCompanyByUserID(database.DB, userID); err == nil {
		response["company"] = company
	}
	utils.SendJSON(w, response, http.StatusOK)
}

func (h *UserHandler) issueSession(r *http.Request, userID int64) (accessToken, refreshToken string, err error) {
	accessToken, err = h.authService.GenerateToken(fmt.Sprintf("%d", userID))
	if err != nil {
		return "", "", fmt.Errorf("generating access token: %w", err)
	}
	refreshToken, err = h.authService.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("generating refresh token: %w", err)
	}

	session := &models.Session{
		UserID:       userID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		IsBlocked:    false,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := models.CreateSession(database.DB, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// GetUserIDFromContext retrieves the userID from the context.
// It's defined in this package and can be called by other handlers within the same package.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// companyForRequest resolves the authenticated user's BV, writing the
// appropriate error response when it cannot.
func companyForRequest(w http.ResponseWriter, r *http.Request) (*models.Company, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}

	company, err := models.GetCompanyByUserID(database.DB, userID)
	if errors.Is(err, models.ErrNotFound) {
		utils.SendJSONError(w, "No company configured. Complete onboarding first.", http.StatusPreconditionFailed)
		return nil, false
	}
	if err != nil {
		logger.L.Error("Failed to load company", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to load company", http.StatusInternalServerError)
		return nil, false
	}
	return company, true
}
