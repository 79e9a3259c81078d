package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/shell"
	"github.com/raushankrgupta/fashionfit/utils"
)

type genderRequest struct {
	Gender string `json:"gender"`
}

// GenderHandler records the one-time gender choice.
func (h *Handler) GenderHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(h.Logger, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Profile Gender API]")

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := GetSessionFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req genderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	gender, err := models.ParseGender(req.Gender)
	if err != nil || !gender.IsSet() {
		utils.RespondError(w, &logMessageBuilder, "gender must be male or female", http.StatusBadRequest)
		return
	}

	state := shell.StateFor(&sess.User)
	if _, err := shell.Next(state, shell.GenderSelected(gender)); err != nil {
		utils.RespondJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "gender already chosen",
			"state": state,
		})
		return
	}

	updated, err := h.Accounts.SetGender(r.Context(), sess, gender)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Set gender failed: "+err.Error())
		utils.RespondError(w, nil, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Gender set for user: "+updated.User.UID)
	utils.RespondJSON(w, http.StatusOK, sessionResponse(updated))
}
