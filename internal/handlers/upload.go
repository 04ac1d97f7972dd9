package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

// multipartOverhead covers form boundaries and headers around uploaded files.
const multipartOverhead = 1 << 20

// dataURLBudget is the largest JSON body that can carry an image of maxBytes
// as a base64 data URL.
func dataURLBudget(maxBytes int64) int64 {
	return maxBytes/3*4 + 4 + multipartOverhead
}

// UploadImage is the relay endpoint: it forwards a base64 data URL to the
// image host with the server's credentials and returns the hosted URL.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.transport == nil {
		writeError(w, http.StatusInternalServerError, "image relay not configured")
		return
	}
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, dataURLBudget(h.maxUpload))
	}

	var req relay.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	size, err := relay.DecodedLen(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	}
	if h.maxUpload > 0 && size > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}
	folder := strings.TrimSpace(req.Folder)
	if folder == "" {
		folder = relay.DefaultFolder
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*requestTimeout)
	defer cancel()

	url, err := h.transport.Transmit(ctx, req.Image, folder)
	if err != nil {
		h.writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UploadResponse{URL: url})
}

// readFormFile reads the first file of a multipart field. At most limit+1
// bytes are read so an oversized file is still seen as oversized by the relay.
func readFormFile(r *http.Request, field string, limit int64) ([]byte, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, http.ErrMissingFile
	}
	return readFileHeader(r.MultipartForm.File[field][0], limit)
}
