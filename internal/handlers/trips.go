package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/planpal-backend/internal/middleware"
	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
	"github.com/AnshRaj112/planpal-backend/internal/services"
)

// maxPhotosPerRequest caps how many files one gallery upload may carry.
const maxPhotosPerRequest = 10

// ListTripPhotos returns a trip's gallery, newest first.
func (h *Handler) ListTripPhotos(w http.ResponseWriter, r *http.Request) {
	tripID := strings.TrimSpace(chi.URLParam(r, "tripId"))
	if tripID == "" {
		writeError(w, http.StatusBadRequest, "Trip ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	photos, err := h.photos.List(ctx, tripID)
	if err != nil {
		h.logger.Error("failed to list trip photos", "trip_id", tripID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load trip photos.")
		return
	}
	if photos == nil {
		photos = []services.TripPhoto{}
	}
	writeJSON(w, http.StatusOK, models.PhotosResponse{Photos: photos})
}

// UploadTripPhotos relays every multipart "photos" file to the trip's folder
// and appends a photo record for each one stored.
func (h *Handler) UploadTripPhotos(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFrom(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	tripID := strings.TrimSpace(chi.URLParam(r, "tripId"))
	if tripID == "" {
		writeError(w, http.StatusBadRequest, "Trip ID is required")
		return
	}
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*maxPhotosPerRequest+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No photos provided")
		return
	}
	if len(files) > maxPhotosPerRequest {
		writeError(w, http.StatusBadRequest, "Too many photos in one upload")
		return
	}
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readFileHeader(fh, h.maxUpload)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read uploaded photo")
			return
		}
		images = append(images, data)
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(len(images))*2*requestTimeout)
	defer cancel()

	saved, err := h.photos.Add(ctx, tripID, caller.ID, images)
	if saved == nil {
		saved = []services.TripPhoto{}
	}
	if err != nil {
		if errors.Is(err, services.ErrNoPhotos) {
			writeError(w, http.StatusBadRequest, "No photos provided")
			return
		}
		if errors.Is(err, services.ErrNoUploader) {
			writeError(w, http.StatusInternalServerError, "image relay not configured")
			return
		}
		resp := models.PhotoUploadResponse{
			Photos: saved,
			Error:  "Failed to upload one or more photos.",
		}
		var perr *services.PhotoUploadError
		if errors.As(err, &perr) {
			resp.Failed = perr.Failed
		}
		var rerr *relay.Error
		if errors.As(err, &rerr) {
			resp.Details = rerr.Message()
		}
		h.logger.Error("trip photo upload failed", "trip_id", tripID, "saved", len(saved), "error", err)
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusCreated, models.PhotoUploadResponse{Photos: saved})
}

func readFileHeader(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if limit <= 0 {
		return io.ReadAll(f)
	}
	return io.ReadAll(io.LimitReader(f, limit+1))
}
