package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/capture"
	"github.com/raushankrgupta/fashionfit/landmarks"
	"github.com/raushankrgupta/fashionfit/tryon"
	"github.com/raushankrgupta/fashionfit/utils"
)

const (
	maxTryOnBody  = 40 << 20
	maxTryOnForm  = 32 << 20
	tryOnFailText = "Try-on processing failed. Ensure your full body is visible in the photo."
)

// TryOnHandler composites the garment (and optional hairstyle) onto the user's photo.
//
// Multipart fields: photo (file) or source=camera, garment (file) or
// garment_url, hairstyle_id, landmarks (JSON).
func (h *Handler) TryOnHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(h.Logger, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Try-On API]")

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := GetSessionFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTryOnBody)
	if err := r.ParseMultipartForm(maxTryOnForm); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	req := tryon.Request{
		RequestID:   GetRequestID(r.Context()),
		UseCamera:   r.FormValue("source") == "camera",
		GarmentURL:  strings.TrimSpace(r.FormValue("garment_url")),
		HairstyleID: strings.TrimSpace(r.FormValue("hairstyle_id")),
	}
	if req.Photo, err = readFormFile(r, "photo"); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Failed to read photo", http.StatusBadRequest)
		return
	}
	if req.Garment, err = readFormFile(r, "garment"); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Failed to read garment", http.StatusBadRequest)
		return
	}
	if raw := r.FormValue("landmarks"); raw != "" {
		lm, err := landmarks.Parse([]byte(raw))
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, err.Error(), http.StatusBadRequest)
			return
		}
		req.Landmarks = &lm
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Try-On Request: user=%s camera=%t garment_url=%q hairstyle=%q request_id=%s",
		sess.User.UID, req.UseCamera, req.GarmentURL, req.HairstyleID, req.RequestID))

	result, err := h.TryOn.Run(r.Context(), sess, req)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Try-on failed: "+err.Error())
		switch {
		case errors.Is(err, tryon.ErrInProgress):
			utils.RespondError(w, nil, err.Error(), http.StatusConflict)
		case errors.Is(err, capture.ErrPermissionDenied), errors.Is(err, capture.ErrUnavailable):
			utils.RespondJSON(w, http.StatusFailedDependency, map[string]string{
				"error":    err.Error(),
				"fallback": "upload",
			})
		case tryon.IsInputError(err):
			utils.RespondError(w, nil, err.Error(), http.StatusBadRequest)
		default:
			h.Logger.Error("try-on failed", zap.Error(err), zap.String("request_id", req.RequestID))
			utils.RespondError(w, nil, tryOnFailText, http.StatusInternalServerError)
		}
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Try-on saved: "+result.Session.ID)
	utils.RespondJSON(w, http.StatusOK, result)
}

// readFormFile returns nil without error when the field is absent.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
