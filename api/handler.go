package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/account"
	"github.com/raushankrgupta/fashionfit/catalog"
	"github.com/raushankrgupta/fashionfit/garment"
	"github.com/raushankrgupta/fashionfit/media"
	"github.com/raushankrgupta/fashionfit/shell"
	"github.com/raushankrgupta/fashionfit/store"
	"github.com/raushankrgupta/fashionfit/tryon"
	"github.com/raushankrgupta/fashionfit/utils"
)

// GarmentResolver turns a product or image link into garment image bytes.
type GarmentResolver interface {
	Resolve(ctx context.Context, url string) (*garment.Image, error)
}

// Handler serves the HTTP API.
type Handler struct {
	Accounts *account.Service
	TryOn    *tryon.Service
	Sessions store.Sessions
	Media    media.Storage
	Garments GarmentResolver
	Logger   *zap.Logger

	// MediaFiles serves locally stored images under /media/. Nil when media lives in S3.
	MediaFiles http.Handler
}

// Routes registers every endpoint and wraps them with the shared middleware.
func (h *Handler) Routes() http.Handler {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/session", h.SessionHandler)
	mux.HandleFunc("/auth/login", h.LoginHandler)
	mux.HandleFunc("/auth/google/login", h.GoogleLoginHandler)
	mux.HandleFunc("/auth/google/callback", h.GoogleCallbackHandler)
	mux.Handle("/auth/logout", h.AuthMiddleware(http.HandlerFunc(h.LogoutHandler)))
	mux.Handle("/profile/gender", h.AuthMiddleware(http.HandlerFunc(h.GenderHandler)))
	mux.HandleFunc("/garments", h.GarmentsHandler)

	dashboard := func(f http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(RequireState(shell.DashboardActive, f))
	}
	mux.Handle("/hairstyles", dashboard(h.HairstylesHandler))
	mux.Handle("/garments/resolve", dashboard(h.ResolveGarmentHandler))
	mux.Handle("/try-on", dashboard(h.TryOnHandler))
	mux.Handle("/history", dashboard(h.HistoryHandler))

	if h.MediaFiles != nil {
		mux.Handle("/media/", h.MediaFiles)
	}

	return utils.CORSMiddleware(utils.LatencyMiddleware(h.Logger, RequestIDMiddleware(mux)))
}

// HairstylesHandler lists the hairstyles offered for the user's gender.
func (h *Handler) HairstylesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := GetSessionFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"hairstyles": catalog.ForGender(sess.User.Gender),
	})
}

// GarmentsHandler lists the preset garments.
func (h *Handler) GarmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"garments": catalog.Garments(),
	})
}

// ResolveGarmentHandler previews the garment image behind a product link.
func (h *Handler) ResolveGarmentHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(h.Logger, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Garment Resolve API]")

	if r.Method != http.MethodGet {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		utils.RespondError(w, &logMessageBuilder, "URL parameter is required", http.StatusBadRequest)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, "Resolving garment from: "+target)

	img, err := h.Garments.Resolve(r.Context(), target)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Resolve failed: "+err.Error())
		switch {
		case errors.Is(err, garment.ErrInvalidURL), errors.Is(err, garment.ErrNoImage), errors.Is(err, garment.ErrTooLarge):
			utils.RespondError(w, nil, err.Error(), http.StatusBadRequest)
		default:
			utils.RespondError(w, nil, "Failed to fetch garment image", http.StatusBadGateway)
		}
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Resolved image: "+img.SourceURL)
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("X-Source-URL", img.SourceURL)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img.Data); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Write failed: "+err.Error())
	}
}
