// Package vision is the HTTP client for the vision service that implements
// the computer-vision primitives: reference-sheet detection and
// rectification, foot segmentation, blur scoring and physical-unit
// measurement. The core treats these outputs as ground truth; nothing here
// interprets photo content.
package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"footscan-backend/internal/models"
)

// ErrUnprocessableImage is returned when the vision service reports the
// image itself can never be processed (corrupt file, unsupported format).
// Unlike a bad capture this is not fixable by retaking the photo of the
// same upload, so the session is failed terminally.
var ErrUnprocessableImage = errors.New("vision: image cannot be processed")

// RectifyResult is the outcome of reference-sheet detection. Detected=false
// means no plausible retake of the same framing will succeed without user
// action; FrameID identifies the rectified top-down frame held by the
// vision service for the follow-up calls.
type RectifyResult struct {
	Detected bool   `json:"detected"`
	FrameID  string `json:"frame_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Segmentation identifies the foot mask computed for a rectified frame.
type Segmentation struct {
	MaskID    string `json:"mask_id"`
	FeetFound int    `json:"feet_found"`
}

type blurResult struct {
	Score float64 `json:"score"`
}

// MeasurementRequest converts a mask plus calibration into physical units.
// BlurScore and sock thickness are folded into the per-foot confidence by
// the vision service.
type MeasurementRequest struct {
	FrameID       string  `json:"frame_id"`
	MaskID        string  `json:"mask_id"`
	SockThickness string  `json:"sock_thickness"`
	BlurScore     float64 `json:"blur_score"`
}

// MeasurementOutput carries the raw per-foot readings. A side is absent
// when that foot could not be measured in the frame.
type MeasurementOutput struct {
	Left  *models.MeasurementResult `json:"left,omitempty"`
	Right *models.MeasurementResult `json:"right,omitempty"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Accept", "application/json")

	return &Client{http: client}
}

// DetectAndRectify locates the reference sheet in a raw photo and produces
// a metrically rectified top-down frame.
func (c *Client) DetectAndRectify(ctx context.Context, image []byte) (*RectifyResult, error) {
	var result RectifyResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(&result).
		Post("/v1/rectify")
	if err != nil {
		return nil, fmt.Errorf("rectify request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity {
		return nil, ErrUnprocessableImage
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rectify failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// SegmentFeet computes the foot mask for a previously rectified frame.
func (c *Client) SegmentFeet(ctx context.Context, frameID string) (*Segmentation, error) {
	var result Segmentation
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"frame_id": frameID}).
		SetResult(&result).
		Post("/v1/segment")
	if err != nil {
		return nil, fmt.Errorf("segmentation request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("segmentation failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// ComputeBlurScore scores the sharpness of the raw image, independent of
// rectification.
func (c *Client) ComputeBlurScore(ctx context.Context, image []byte) (float64, error) {
	var result blurResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(&result).
		Post("/v1/blur-score")
	if err != nil {
		return 0, fmt.Errorf("blur score request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("blur score failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Score, nil
}

// ProcessMeasurements turns the mask and calibration into millimeter
// readings with a confidence per foot.
func (c *Client) ProcessMeasurements(ctx context.Context, req MeasurementRequest) (*MeasurementOutput, error) {
	var result MeasurementOutput
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/v1/measurements")
	if err != nil {
		return nil, fmt.Errorf("measurement request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("measurement failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}
