// Package ml is the HTTP client for the machine-learning sidecar. The
// service is a black box: vectors come back opaque, only their width and
// the model identifier matter to the caller.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/models"
)

// DetectedFace is one face returned by the facial model, with its raw
// embedding and bounding box in source-image coordinates.
type DetectedFace struct {
	BoundingBox models.BoundingBox `json:"boundingBox"`
	Embedding   []float32          `json:"embedding"`
	Score       float64            `json:"score"`
	ImageWidth  int                `json:"imageWidth"`
	ImageHeight int                `json:"imageHeight"`
}

type Client struct {
	baseURL string
	http    *http.Client
	cfg     config.InferenceConfig
}

func NewClient(cfg config.InferenceConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
	}
}

// DetectFaces runs the facial model over image bytes. Called once per asset.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error) {
	var out []DetectedFace
	err := c.post(ctx, "/detect-faces", map[string]any{
		"modelName": c.cfg.FacialModel,
		"minScore":  c.cfg.MinFaceScore,
		"image":     image,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClassifyImage returns tags for an image.
func (c *Client) ClassifyImage(ctx context.Context, image []byte) ([]string, error) {
	var out []string
	err := c.post(ctx, "/classify", map[string]any{
		"modelName": c.cfg.ClassifyModel,
		"minScore":  c.cfg.MinClassifyTag,
		"image":     image,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeImage returns the CLIP embedding of an image.
func (c *Client) EncodeImage(ctx context.Context, image []byte) ([]float32, error) {
	var out []float32
	err := c.post(ctx, "/encode-image", map[string]any{
		"modelName": c.cfg.ClipModel,
		"image":     image,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeText returns the CLIP embedding of a free-text query.
func (c *Client) EncodeText(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := c.post(ctx, "/encode-text", map[string]any{
		"modelName": c.cfg.ClipModel,
		"text":      text,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	start := time.Now()
	defer func() {
		observeInference(path, time.Since(start))
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "marshal inference request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures retry under the job policy.
		return apperr.Wrap(apperr.KindTransient, err, "inference service unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, err, "read inference response")
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return apperr.New(apperr.KindTransient, "inference %s: status %d: %s", path, resp.StatusCode, data)
		}
		return apperr.New(apperr.KindValidation, "inference %s: status %d: %s", path, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "decode inference response")
	}
	return nil
}
