package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultDetectorURL = "http://localhost:8100"

// DetectorClient talks to the external face detection service (a Haar
// cascade behind HTTP). It implements Locator.
type DetectorClient struct {
	baseURL string
	client  *http.Client
}

// NewDetectorClient creates a client for the detector service.
func NewDetectorClient(baseURL string) *DetectorClient {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &DetectorClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// detectResponse is the detector service payload.
type detectResponse struct {
	Faces []struct {
		Box   []int   `json:"box"` // [x1, y1, x2, y2]
		Score float64 `json:"score"`
	} `json:"faces"`
}

// Locate posts the image and maps the face count onto the detection
// anomaly errors: zero faces is ErrNoFace, more than one is
// ErrMultipleFaces.
func (c *DetectorClient) Locate(ctx context.Context, imageData []byte) (image.Rectangle, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return image.Rectangle{}, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}

	var detected detectResponse
	if err := json.Unmarshal(body, &detected); err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to parse detector response: %w", err)
	}

	switch len(detected.Faces) {
	case 0:
		return image.Rectangle{}, ErrNoFace
	case 1:
		// Fall through.
	default:
		return image.Rectangle{}, ErrMultipleFaces
	}

	box := detected.Faces[0].Box
	if len(box) != 4 {
		return image.Rectangle{}, fmt.Errorf("detector returned malformed box %v", box)
	}
	return image.Rect(box[0], box[1], box[2], box[3]), nil
}
