// Package detect provides classifier clients for the detection loop.
// The model itself runs out of process; this package only speaks its
// interface.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/vespai/vespai-go/pkg/types"
)

// boundingBox mirrors the classifier daemon's JSON shape.
type boundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type wireDetection struct {
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       boundingBox `json:"bbox"`
}

type wireResult struct {
	Detections []wireDetection `json:"detections"`
}

// HTTPClient classifies frames by posting them as JPEG to a classifier
// daemon and decoding the detection list it returns. Safe for repeated
// calls; it keeps no state the detection loop can observe.
type HTTPClient struct {
	url        string
	confidence float64
	httpc      *http.Client
}

// NewHTTPClient returns a client for the classifier at url. Detections
// below the confidence threshold are discarded.
func NewHTTPClient(url string, confidence float64) *HTTPClient {
	return &HTTPClient{
		url:        url,
		confidence: confidence,
		httpc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Ping verifies the classifier daemon answers. Called once at startup;
// a pipeline without a reachable classifier refuses to start.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("classifier unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("classifier unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Classify sends the frame to the classifier and returns recognized
// objects above the confidence threshold. Failures come back as an
// empty slice plus the error so the loop can degrade for one iteration
// instead of stopping.
func (c *HTTPClient) Classify(ctx context.Context, frame *image.RGBA) ([]types.Object, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/classify", &buf)
	if err != nil {
		return nil, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	var result wireResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}

	objects := make([]types.Object, 0, len(result.Detections))
	for _, d := range result.Detections {
		cat := types.Category(d.ClassName)
		if !cat.Valid() || d.Confidence < c.confidence {
			continue
		}
		objects = append(objects, types.Object{
			Category:   cat,
			Confidence: d.Confidence,
			Box:        image.Rect(d.BBox.X, d.BBox.Y, d.BBox.X+d.BBox.W, d.BBox.Y+d.BBox.H),
		})
	}
	return objects, nil
}
