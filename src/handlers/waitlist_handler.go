package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/security/validation"
	"github.com/username/boxshift/backend/src/services"
	"github.com/username/boxshift/backend/src/utils"
)

type WaitlistHandler struct {
	emailService services.EmailService
}

func NewWaitlistHandler(emailService services.EmailService) *WaitlistHandler {
	return &WaitlistHandler{emailService: emailService}
}

// HandleJoin records a waitlist signup and mails back the lead's position.
// Signing up twice with the same email is not an error, the lead just keeps
// its original spot.
func (h *WaitlistHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	email, ok := validation.NormalizeEmail(payload.Email)
	if !ok {
		utils.SendJSONError(w, "Invalid email address", http.StatusBadRequest)
		return
	}

	position, created, err := models.CreateLead(database.DB, email)
	if err != nil {
		logger.L.Error("Failed to record waitlist signup", "error", err)
		utils.SendJSONError(w, "Failed to join waitlist", http.StatusInternalServerError)
		return
	}

	if created {
		logger.L.Info("Waitlist signup", "position", position)
		// Confirmation mail failures should not fail the signup.
		go func(email string, position int) {
			if err := h.emailService.SendWaitlistConfirmation(email, position); err != nil {
				logger.L.Warn("Failed to send waitlist confirmation", "error", err)
			}
		}(email, position)
	}

	utils.SendJSON(w, map[string]interface{}{
		"message":  "Je staat op de wachtlijst",
		"position": position,
	}, http.StatusCreated)
}
