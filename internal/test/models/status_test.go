package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"footscan-backend/internal/models"
)

func TestTransition_NormalLifecycle(t *testing.T) {
	session := &models.MeasurementSession{Status: models.StatusIdle}

	assert.NoError(t, session.Transition(models.StatusCapturing))
	assert.NoError(t, session.Transition(models.StatusCapturing)) // retake re-entry
	assert.NoError(t, session.Transition(models.StatusProcessing))
	assert.NoError(t, session.Transition(models.StatusComplete))
	assert.Equal(t, models.StatusComplete, session.Status)
}

func TestTransition_ConsistencyRetakeLeavesProcessing(t *testing.T) {
	session := &models.MeasurementSession{Status: models.StatusProcessing}

	assert.NoError(t, session.Transition(models.StatusCapturing))
}

func TestTransition_CompleteIsTerminal(t *testing.T) {
	session := &models.MeasurementSession{Status: models.StatusComplete}

	for _, next := range []models.SessionStatus{
		models.StatusIdle, models.StatusCapturing, models.StatusProcessing, models.StatusFailed,
	} {
		err := session.Transition(next)
		assert.Error(t, err, "complete -> %s must be rejected", next)
		assert.Equal(t, models.StatusComplete, session.Status)
	}
}

func TestTransition_FailedIsTerminal(t *testing.T) {
	session := &models.MeasurementSession{Status: models.StatusFailed}

	assert.Error(t, session.Transition(models.StatusCapturing))
	assert.Equal(t, models.StatusFailed, session.Status)
}

func TestTransition_IdleCannotSkipCapturing(t *testing.T) {
	session := &models.MeasurementSession{Status: models.StatusIdle}

	assert.Error(t, session.Transition(models.StatusProcessing))
	assert.Error(t, session.Transition(models.StatusComplete))
	assert.Equal(t, models.StatusIdle, session.Status)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, models.StatusComplete.IsTerminal())
	assert.True(t, models.StatusFailed.IsTerminal())
	assert.False(t, models.StatusIdle.IsTerminal())
	assert.False(t, models.StatusCapturing.IsTerminal())
	assert.False(t, models.StatusProcessing.IsTerminal())
}

func TestParseSockThickness(t *testing.T) {
	for _, valid := range []string{"thin", "medium", "thick"} {
		parsed, err := models.ParseSockThickness(valid)
		assert.NoError(t, err)
		assert.Equal(t, valid, string(parsed))
	}

	_, err := models.ParseSockThickness("bare")
	assert.Error(t, err)
}

func TestSockThicknessWidthFactor(t *testing.T) {
	assert.Equal(t, 1.0, models.SockThin.WidthFactor())
	assert.Equal(t, 0.95, models.SockMedium.WidthFactor())
	assert.Equal(t, 0.90, models.SockThick.WidthFactor())
}

func TestSetPhotoOverwritesSlot(t *testing.T) {
	session := &models.MeasurementSession{}
	first := &models.PhotoRecord{Processed: true, SheetDetected: false}
	second := &models.PhotoRecord{
		Processed:     true,
		SheetDetected: true,
		Left:          &models.MeasurementResult{LengthMm: 260, WidthMm: 100, Confidence: 0.9},
	}

	session.SetPhoto(1, first)
	session.SetPhoto(1, second)

	assert.Same(t, second, session.Photo(1))
	assert.Nil(t, session.Photo(2))
}
