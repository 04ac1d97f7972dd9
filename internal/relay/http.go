package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UploadRequest is the body of POST /api/upload-image.
type UploadRequest struct {
	Image  string `json:"image"`
	Folder string `json:"folder,omitempty"`
}

// UploadFailure is the error body returned by the relay endpoint.
type UploadFailure struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// HTTPTransport posts images to a relay endpoint that holds the image-host
// credentials.
type HTTPTransport struct {
	Endpoint string
	Client   *http.Client
}

// DefaultHTTPTimeout bounds one relay request made by NewHTTPTransport.
const DefaultHTTPTimeout = 30 * time.Second

func NewHTTPTransport(endpoint string) *HTTPTransport {
	return &HTTPTransport{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

func (t *HTTPTransport) Transmit(ctx context.Context, dataURL, folder string) (string, error) {
	body, err := json.Marshal(UploadRequest{Image: dataURL, Folder: folder})
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Kind: KindTransport, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var failure UploadFailure
		if json.Unmarshal(raw, &failure) != nil || failure.Error == "" {
			failure.Error = fmt.Sprintf("relay endpoint returned %s", resp.Status)
		}
		kind := KindRemoteRejected
		if resp.StatusCode == http.StatusRequestEntityTooLarge {
			kind = KindTooLarge
		}
		return "", &Error{Kind: kind, Status: resp.StatusCode, Remote: failure.Error, Details: failure.Details}
	}

	var ok Result
	if err := json.Unmarshal(raw, &ok); err != nil {
		return "", &Error{Kind: KindRemoteRejected, Status: resp.StatusCode, Remote: "malformed relay response", Err: err}
	}
	if ok.URL == "" {
		return "", &Error{Kind: KindRemoteRejected, Status: resp.StatusCode, Remote: "relay response has no url"}
	}
	return ok.URL, nil
}
