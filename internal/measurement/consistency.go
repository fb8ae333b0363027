package measurement

import (
	"fmt"
	"math"

	"footscan-backend/internal/models"
)

// MaxLengthDeltaMm is larger than the expected noise of a single well-lit
// capture but small enough to catch a foot photographed in two different
// poses, or an outright mis-segmentation in one of the photos.
const (
	MaxLengthDeltaMm  = 8.0
	MinMeanConfidence = 0.6
)

// CheckConsistency cross-checks the two photos' independent readings before
// the reconciled result is accepted. First match wins: a per-foot length
// disagreement beyond MaxLengthDeltaMm, then a mean confidence across all
// present readings strictly below MinMeanConfidence. Either finding forces
// a retake of both photos.
//
// Callable only once both photos are processed; anything else is accepted
// by default since there is nothing to compare yet.
func CheckConsistency(session *models.MeasurementSession) RetakeDecision {
	if !session.BothPhotosProcessed() {
		return RetakeDecision{}
	}

	feet := []struct {
		name   string
		photo1 *models.MeasurementResult
		photo2 *models.MeasurementResult
	}{
		{"left", session.Photo1.Left, session.Photo2.Left},
		{"right", session.Photo1.Right, session.Photo2.Right},
	}

	for _, foot := range feet {
		if foot.photo1 == nil || foot.photo2 == nil {
			continue
		}
		delta := math.Abs(foot.photo1.LengthMm - foot.photo2.LengthMm)
		if delta > MaxLengthDeltaMm {
			return RetakeDecision{
				Required: true,
				Reason:   fmt.Sprintf("%s foot length differs by %.1fmm between the two photos - keep both feet flat and still, then retake both photos", foot.name, delta),
			}
		}
	}

	var sum float64
	var count int
	for _, foot := range feet {
		for _, reading := range []*models.MeasurementResult{foot.photo1, foot.photo2} {
			if reading != nil {
				sum += reading.Confidence
				count++
			}
		}
	}
	if count > 0 && sum/float64(count) < MinMeanConfidence {
		return RetakeDecision{
			Required: true,
			Reason:   "overall measurement confidence is too low - move to a brighter spot, avoid shadows over the sheet and retake both photos",
		}
	}

	return RetakeDecision{}
}
