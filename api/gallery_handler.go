package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/media"
	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/utils"
)

const maxHistoryLimit = 100

// HistoryResponse is one page of the user's try-on history.
type HistoryResponse struct {
	Sessions    []models.TryOnSession `json:"sessions"`
	Total       int64                 `json:"total"`
	CurrentPage int                   `json:"current_page"`
	TotalPages  int                   `json:"total_pages"`
}

// HistoryHandler lists the user's try-ons, newest first.
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := GetSessionFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := 1
	limit := 10
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, maxHistoryLimit)
	}

	all, err := h.Sessions.List(r.Context())
	if err != nil {
		h.Logger.Error("history list failed", zap.Error(err), zap.String("user_id", sess.User.UID))
		utils.RespondError(w, nil, "Failed to fetch data", http.StatusInternalServerError)
		return
	}

	// Stored order is oldest first.
	mine := make([]models.TryOnSession, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].UserID == sess.User.UID {
			mine = append(mine, all[i])
		}
	}

	total := len(mine)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	items := mine[start:end]

	for i := range items {
		items[i].UserImageURL = media.ResolveURL(r.Context(), h.Media, items[i].UserImageURL)
		items[i].DressImageURL = media.ResolveURL(r.Context(), h.Media, items[i].DressImageURL)
		if items[i].MergedImageURL != "" {
			items[i].MergedImageURL = media.ResolveURL(r.Context(), h.Media, items[i].MergedImageURL)
		}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	utils.RespondJSON(w, http.StatusOK, HistoryResponse{
		Sessions:    items,
		Total:       int64(total),
		CurrentPage: page,
		TotalPages:  totalPages,
	})
}
