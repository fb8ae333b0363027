package measurement

import (
	"math"

	"footscan-backend/internal/models"
)

// The long-edge view's length advantage is structural (camera-to-sheet
// geometry), not content-dependent, so the weighting is fixed rather than
// derived from the reported confidences. Width is measured equally well
// from both views and gets a plain average.
const (
	LongEdgeWeight  = 0.7
	ShortEdgeWeight = 0.3
)

// Reconcile combines the two per-foot readings of a session into the final
// measurement pair. Both photos must be processed; otherwise an empty
// result is returned and the caller should not have asked.
//
// Photo roles: photo 1 holds the left foot's long-edge reading and the
// right foot's short-edge reading, photo 2 the reverse.
func Reconcile(session *models.MeasurementSession) models.ReconciledResult {
	if !session.BothPhotosProcessed() {
		return models.ReconciledResult{}
	}

	return models.ReconciledResult{
		Left:  reconcileFoot(session.Photo1.Left, session.Photo2.Left, session.SockThickness),
		Right: reconcileFoot(session.Photo2.Right, session.Photo1.Right, session.SockThickness),
	}
}

// reconcileFoot fuses one foot's long-edge and short-edge readings. With a
// single reading present that reading is used as-is; with neither, the
// foot's result is nil.
func reconcileFoot(longEdge, shortEdge *models.MeasurementResult, sock models.SockThickness) *models.MeasurementResult {
	var lengthMm, widthMm, confidence float64

	switch {
	case longEdge != nil && shortEdge != nil:
		lengthMm = LongEdgeWeight*longEdge.LengthMm + ShortEdgeWeight*shortEdge.LengthMm
		widthMm = (longEdge.WidthMm + shortEdge.WidthMm) / 2
		confidence = LongEdgeWeight*longEdge.Confidence + ShortEdgeWeight*shortEdge.Confidence
	case longEdge != nil:
		lengthMm = longEdge.LengthMm
		widthMm = longEdge.WidthMm
		confidence = longEdge.Confidence
	case shortEdge != nil:
		lengthMm = shortEdge.LengthMm
		widthMm = shortEdge.WidthMm
		confidence = shortEdge.Confidence
	default:
		return nil
	}

	// Sock correction applies after averaging: the raw width includes
	// the sock, which compresses inside a shoe.
	widthMm *= sock.WidthFactor()

	lengthMm = roundTenth(lengthMm)
	widthMm = roundTenth(widthMm)
	confidence = clamp01(confidence)

	if lengthMm <= 0 || widthMm <= 0 {
		return nil
	}

	return &models.MeasurementResult{
		LengthMm:   lengthMm,
		WidthMm:    widthMm,
		Confidence: confidence,
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
