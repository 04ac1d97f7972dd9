package models

import "github.com/AnshRaj112/planpal-backend/internal/services"

type PhotosResponse struct {
	Photos []services.TripPhoto `json:"photos"`
}

// PhotoUploadResponse lists the stored photos. Error is set when some files failed.
type PhotoUploadResponse struct {
	Photos  []services.TripPhoto `json:"photos"`
	Failed  int                  `json:"failed,omitempty"`
	Error   string               `json:"error,omitempty"`
	Details string               `json:"details,omitempty"`
}
