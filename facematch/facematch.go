// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultThreshold is the maximum facial distance accepted as a match.
const DefaultThreshold = 0.7

var ErrUnavailable = errors.New("face comparison service unavailable")

// Result is the outcome of a facial comparison.
type Result struct {
	Matched  bool    `json:"matched"`
	Distance float64 `json:"distance"`
}

// Comparer compares a stored reference photo against a captured probe
// image. Implementations must honor the context deadline; the flow treats a
// call as pure and does not retry on its behalf.
type Comparer interface {
	Compare(ctx context.Context, referencePath string, probe []byte, threshold float64) (Result, error)
}

// HTTPComparer calls an external face-comparison service over HTTP. The
// reference image is read from local storage and both images are sent as a
// multipart request.
type HTTPComparer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPComparer creates a comparer for the service at baseURL. The
// timeout bounds the whole call so a stuck comparison cannot pin a request.
func NewHTTPComparer(baseURL string, timeout time.Duration) *HTTPComparer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPComparer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPComparer) Compare(ctx context.Context, referencePath string, probe []byte, threshold float64) (Result, error) {
	reference, err := os.ReadFile(referencePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read reference image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	refPart, err := mw.CreateFormFile("reference", filepath.Base(referencePath))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}
	if _, err := refPart.Write(reference); err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}

	probePart, err := mw.CreateFormFile("probe", "probe.jpg")
	if err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}
	if _, err := probePart.Write(probe); err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}

	if err := mw.WriteField("threshold", fmt.Sprintf("%g", threshold)); err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare", &body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build compare request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("failed to decode compare response: %w", err)
	}
	return result, nil
}
