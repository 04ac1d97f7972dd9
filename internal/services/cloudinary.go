package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

// UploadTransformation bounds every image to 1600x1600 without upscaling
// and lets the host pick format and quality.
const UploadTransformation = "c_limit,w_1600,h_1600/q_auto,f_auto"

// cloudinaryUploader is the part of the Cloudinary upload API used here.
type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryService is the relay transport that talks to Cloudinary
// directly with the server's credentials.
type CloudinaryService struct {
	upload cloudinaryUploader
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryService{upload: &cld.Upload}, nil
}

// Transmit uploads a data URL into folder and returns the secure URL.
func (s *CloudinaryService) Transmit(ctx context.Context, dataURL, folder string) (string, error) {
	result, err := s.upload.Upload(ctx, dataURL, uploader.UploadParams{
		Folder:         folder,
		ResourceType:   "image",
		Transformation: UploadTransformation,
	})
	if err != nil {
		return "", &relay.Error{Kind: relay.KindTransport, Err: fmt.Errorf("failed to upload to Cloudinary: %w", err)}
	}
	if result.Error.Message != "" {
		details, _ := json.Marshal(result.Error)
		return "", &relay.Error{Kind: relay.KindRemoteRejected, Remote: result.Error.Message, Details: details}
	}
	if result.SecureURL == "" {
		return "", &relay.Error{Kind: relay.KindRemoteRejected, Remote: "Cloudinary returned no URL"}
	}
	return result.SecureURL, nil
}
