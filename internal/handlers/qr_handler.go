package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sonobot/backend/internal/services"
)

type QRHandler struct {
	service *services.QRService
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{service: service}
}

// ShareCodeImage serves the QR image for a live share code so a friend
// can scan it instead of typing. Expired or unknown codes return 404.
func (h *QRHandler) ShareCodeImage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" || len(code) > 16 {
		http.Error(w, "Invalid share code", http.StatusBadRequest)
		return
	}

	png, err := h.service.ShareCodeImage(r.Context(), code)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrConflict) {
			http.Error(w, "Share code not found or expired", http.StatusNotFound)
			return
		}
		log.Printf("[QR] Failed to render share code %s: %v", code, err)
		http.Error(w, "Failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}
