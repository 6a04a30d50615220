// Package faceclient calls the face recognition microservice. The service
// owns detection, encoding and comparison; this client only moves image
// references and encodings across the wire.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Region is a detected face bounding box.
type Region struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Encoding is a fixed-length face feature vector.
type Encoding []float64

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Timeout bounds every call; the gate is a blocking CPU-bound
	// capability with no timeout of its own.
	Timeout time.Duration
	// Skip short-circuits every call with a matching single face.
	// Dev/test only.
	Skip bool
}

// New creates a client. timeout bounds each individual call.
func New(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Timeout: timeout,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// DetectFaces returns the face regions found in the referenced image.
func (c *Client) DetectFaces(ctx context.Context, imageRef string) ([]Region, error) {
	if c.Skip {
		return []Region{{Top: 0, Right: 100, Bottom: 100, Left: 0}}, nil
	}
	if imageRef == "" {
		return nil, fmt.Errorf("image reference required")
	}

	var out struct {
		Faces []Region `json:"faces"`
	}
	if err := c.post(ctx, "/detect", map[string]any{"image_ref": imageRef}, &out); err != nil {
		return nil, err
	}
	return out.Faces, nil
}

// EncodeFace returns the encoding of the face at region in the referenced image.
func (c *Client) EncodeFace(ctx context.Context, imageRef string, region Region) (Encoding, error) {
	if c.Skip {
		return Encoding{0.1, 0.2, 0.3}, nil
	}

	var out struct {
		Encoding Encoding `json:"encoding"`
	}
	payload := map[string]any{"image_ref": imageRef, "face": region}
	if err := c.post(ctx, "/encode", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Encoding) == 0 {
		return nil, fmt.Errorf("face service returned an empty encoding")
	}
	return out.Encoding, nil
}

// Compare reports whether two encodings are within tolerance of each other.
// Lower tolerance is stricter.
func (c *Client) Compare(ctx context.Context, a, b Encoding, tolerance float64) (bool, error) {
	if c.Skip {
		return true, nil
	}

	var out struct {
		Match    bool    `json:"match"`
		Distance float64 `json:"distance"`
	}
	payload := map[string]any{
		"encoding_a": a,
		"encoding_b": b,
		"tolerance":  tolerance,
	}
	if err := c.post(ctx, "/compare", payload, &out); err != nil {
		return false, err
	}
	return out.Match, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
