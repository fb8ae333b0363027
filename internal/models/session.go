package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SockThickness is set once at session creation and only consulted during
// reconciliation, where it scales the averaged width down to approximate
// sock compressibility.
type SockThickness string

const (
	SockThin   SockThickness = "thin"
	SockMedium SockThickness = "medium"
	SockThick  SockThickness = "thick"
)

func ParseSockThickness(s string) (SockThickness, error) {
	switch SockThickness(s) {
	case SockThin, SockMedium, SockThick:
		return SockThickness(s), nil
	}
	return "", fmt.Errorf("invalid sock thickness %q (must be thin, medium or thick)", s)
}

// WidthFactor returns the multiplier applied to the averaged width.
func (t SockThickness) WidthFactor() float64 {
	switch t {
	case SockMedium:
		return 0.95
	case SockThick:
		return 0.90
	default:
		return 1.0
	}
}

// MeasurementResult is a single foot reading from one photo.
type MeasurementResult struct {
	LengthMm   float64 `json:"length_mm"`
	WidthMm    float64 `json:"width_mm"`
	Confidence float64 `json:"confidence"`
}

// PhotoRecord holds the vision adapter output for one photo slot.
//
// SheetDetected distinguishes a framing failure (no reference sheet found,
// nothing could be measured) from a photo where the sheet was rectified but
// no foot could be segmented. Left/Right are nil when that foot could not
// be measured in this photo.
type PhotoRecord struct {
	Processed     bool               `json:"processed"`
	SheetDetected bool               `json:"sheet_detected"`
	Left          *MeasurementResult `json:"left,omitempty"`
	Right         *MeasurementResult `json:"right,omitempty"`
}

// ReconciledResult is the session's final output. A side is nil when that
// foot could not be measured in either photo.
type ReconciledResult struct {
	Left  *MeasurementResult `json:"left,omitempty"`
	Right *MeasurementResult `json:"right,omitempty"`
}

// MeasurementSession is the root aggregate, one row per measurement attempt.
//
// Photo role asymmetry: photo 1 measures the left foot beside the sheet's
// long edge (the high-accuracy view) and the right foot below the short
// edge; photo 2 reverses the roles. Reconciliation depends on this.
type MeasurementSession struct {
	ID            uuid.UUID
	QuizSessionID uuid.UUID
	Status        SessionStatus
	SockThickness SockThickness
	Photo1        *PhotoRecord
	Photo2        *PhotoRecord
	Final         *ReconciledResult
	ErrorMessage  sql.NullString
	CreatedAt     time.Time
	CompletedAt   sql.NullTime
	UpdatedAt     time.Time
}

// Photo returns the record for photo slot 1 or 2, nil for anything else.
func (s *MeasurementSession) Photo(photoNumber int) *PhotoRecord {
	switch photoNumber {
	case 1:
		return s.Photo1
	case 2:
		return s.Photo2
	}
	return nil
}

// SetPhoto overwrites a photo slot. Re-uploading the same photo number
// replaces the prior record entirely; no state from the first attempt
// survives.
func (s *MeasurementSession) SetPhoto(photoNumber int, record *PhotoRecord) {
	switch photoNumber {
	case 1:
		s.Photo1 = record
	case 2:
		s.Photo2 = record
	}
}

// BothPhotosProcessed reports whether the reconciliation precondition holds.
func (s *MeasurementSession) BothPhotosProcessed() bool {
	return s.Photo1 != nil && s.Photo1.Processed &&
		s.Photo2 != nil && s.Photo2.Processed
}
