package handlers

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON("/api/upload-image", "", relay.UploadRequest{Image: relay.EncodeDataURL(pngBytes)})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://res.cloudinary.com/demo/1.png", decode[models.UploadResponse](t, resp).URL)
	assert.Equal(t, []string{relay.DefaultFolder}, env.transport.Folders())
}

func TestUploadImageCustomFolder(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON("/api/upload-image", "", relay.UploadRequest{Image: relay.EncodeDataURL(pngBytes), Folder: "planpal/trips/t1"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"planpal/trips/t1"}, env.transport.Folders())
}

func TestUploadImageRejections(t *testing.T) {
	tooBig := relay.EncodeDataURL(append(pngBytes, make([]byte, testMaxUpload)...))

	tests := []struct {
		name   string
		body   any
		status int
		want   string
	}{
		{"missing image", relay.UploadRequest{}, http.StatusBadRequest, `{"error":"No image provided"}`},
		{"not a data url", relay.UploadRequest{Image: "hello"}, http.StatusBadRequest, `{"error":"Invalid image data"}`},
		{"over the ceiling", relay.UploadRequest{Image: tooBig}, http.StatusRequestEntityTooLarge, `{"error":"Image too large"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp := env.postJSON("/api/upload-image", "", tt.body)

			require.Equal(t, tt.status, resp.StatusCode)
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(resp.Body)
			assert.JSONEq(t, tt.want, buf.String())
			assert.Zero(t, env.transport.Calls())
		})
	}
}

func TestUploadImageKeepsRemoteMessage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON("/api/upload-image", "", relay.UploadRequest{Image: relay.EncodeDataURL([]byte("bad image bytes"))})

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Invalid image file", body.Error)
	assert.JSONEq(t, `{"http_code":400}`, string(body.Details))
}

func TestUploadImageNotConfigured(t *testing.T) {
	env := newTestEnv(t, withoutImageHost)

	resp := env.postJSON("/api/upload-image", "", relay.UploadRequest{Image: relay.EncodeDataURL(pngBytes)})

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "image relay not configured", decode[models.ErrorResponse](t, resp).Error)
}
