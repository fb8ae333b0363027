// Package measurement holds the pure decision logic of the foot
// measurement pipeline: the per-photo quality gate, the cross-photo
// consistency validator and the reconciliation engine. Nothing in this
// package performs I/O; the orchestrating service feeds it session state
// and persists whatever comes back.
package measurement

import (
	"fmt"

	"footscan-backend/internal/models"
)

// Plausibility bounds sit at wide anthropometric extremes; a reading
// outside them means the segmentation measured something that is not a
// foot, whatever its confidence says.
const (
	MinConfidence = 0.5
	MinLengthMm   = 150.0
	MaxLengthMm   = 350.0
	MinWidthMm    = 50.0
	MaxWidthMm    = 150.0
)

// RetakeDecision is the structured outcome of the gate and the consistency
// validator. Reason carries actionable guidance for the person holding the
// camera and is only set when Required is true.
type RetakeDecision struct {
	Required bool
	Reason   string
}

// CheckRetake evaluates one photo slot against the quality rules, first
// match wins:
//
//  1. reference sheet undetected (unrecoverable framing failure)
//  2. sheet detected but no foot measured
//  3. a measured foot's confidence below MinConfidence
//  4. a measured foot's length outside the plausible range
//  5. a measured foot's width outside the plausible range
//
// An unprocessed slot is not an error: there is nothing to evaluate yet,
// so no retake is required.
func CheckRetake(session *models.MeasurementSession, photoNumber int) RetakeDecision {
	photo := session.Photo(photoNumber)
	if photo == nil || !photo.Processed {
		return RetakeDecision{}
	}

	if !photo.SheetDetected {
		return RetakeDecision{
			Required: true,
			Reason:   "reference sheet not detected - place the sheet flat on the floor, fully inside the frame, and retake the photo",
		}
	}

	if photo.Left == nil && photo.Right == nil {
		return RetakeDecision{
			Required: true,
			Reason:   "no feet detected - stand with both feet flat beside the reference sheet and retake the photo",
		}
	}

	feet := []struct {
		name    string
		reading *models.MeasurementResult
	}{
		{"left", photo.Left},
		{"right", photo.Right},
	}

	for _, foot := range feet {
		if foot.reading != nil && foot.reading.Confidence < MinConfidence {
			return RetakeDecision{
				Required: true,
				Reason:   fmt.Sprintf("%s foot measurement has low confidence - improve lighting, keep the camera steady and retake the photo", foot.name),
			}
		}
	}

	for _, foot := range feet {
		if foot.reading != nil && (foot.reading.LengthMm < MinLengthMm || foot.reading.LengthMm > MaxLengthMm) {
			return RetakeDecision{
				Required: true,
				Reason:   fmt.Sprintf("%s foot length %.1fmm is implausible - make sure only your feet are beside the sheet and retake the photo", foot.name, foot.reading.LengthMm),
			}
		}
	}

	for _, foot := range feet {
		if foot.reading != nil && (foot.reading.WidthMm < MinWidthMm || foot.reading.WidthMm > MaxWidthMm) {
			return RetakeDecision{
				Required: true,
				Reason:   fmt.Sprintf("%s foot width %.1fmm is implausible - make sure only your feet are beside the sheet and retake the photo", foot.name, foot.reading.WidthMm),
			}
		}
	}

	return RetakeDecision{}
}
