package services_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"footscan-backend/internal/models"
	"footscan-backend/internal/services"
	"footscan-backend/internal/sessionlock"
	"footscan-backend/internal/vision"
)

type stubStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.MeasurementSession
	quiz     map[uuid.UUID]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		sessions: make(map[uuid.UUID]*models.MeasurementSession),
		quiz:     make(map[uuid.UUID]bool),
	}
}

func (s *stubStore) QuizSessionExists(quizSessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz[quizSessionID], nil
}

func (s *stubStore) CreateSession(session *models.MeasurementSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.CreatedAt = time.Now().UTC()
	session.UpdatedAt = session.CreatedAt
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *stubStore) GetSession(sessionID uuid.UUID) (*models.MeasurementSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (s *stubStore) ListSessions(quizSessionID uuid.UUID) ([]models.MeasurementSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MeasurementSession
	for _, session := range s.sessions {
		if session.QuizSessionID == quizSessionID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateSession(session *models.MeasurementSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *stubStore) persisted(sessionID uuid.UUID) *models.MeasurementSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

type stubStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: map[string][]byte{
		"captures/photo1.jpg": []byte("raw-1"),
		"captures/photo2.jpg": []byte("raw-2"),
	}}
}

func (s *stubStorage) DownloadFile(objectKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[objectKey], nil
}

func (s *stubStorage) DeleteFile(objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	return nil
}

func (s *stubStorage) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type stubVision struct {
	mu         sync.Mutex
	detected   bool
	rectifyErr error
	outputs    []*vision.MeasurementOutput
}

func (v *stubVision) DetectAndRectify(ctx context.Context, image []byte) (*vision.RectifyResult, error) {
	if v.rectifyErr != nil {
		return nil, v.rectifyErr
	}
	return &vision.RectifyResult{Detected: v.detected, FrameID: "frame-1"}, nil
}

func (v *stubVision) SegmentFeet(ctx context.Context, frameID string) (*vision.Segmentation, error) {
	return &vision.Segmentation{MaskID: "mask-1", FeetFound: 2}, nil
}

func (v *stubVision) ComputeBlurScore(ctx context.Context, image []byte) (float64, error) {
	return 0.1, nil
}

func (v *stubVision) ProcessMeasurements(ctx context.Context, req vision.MeasurementRequest) (*vision.MeasurementOutput, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.outputs) == 0 {
		return &vision.MeasurementOutput{}, nil
	}
	next := v.outputs[0]
	v.outputs = v.outputs[1:]
	return next, nil
}

type stubEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *stubEvents) PublishSessionEvent(sessionID uuid.UUID, event string, payload map[string]interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func newTestService(store *stubStore, storage *stubStorage, vis *stubVision) *services.MeasurementService {
	return services.NewMeasurementService(
		store, storage, vis, &stubEvents{}, sessionlock.NewLocalLocker(), zap.NewNop())
}

func createTestSession(t *testing.T, svc *services.MeasurementService, store *stubStore, sock models.SockThickness) *models.MeasurementSession {
	t.Helper()
	quizID := uuid.New()
	store.mu.Lock()
	store.quiz[quizID] = true
	store.mu.Unlock()

	session, err := svc.CreateSession(quizID, sock)
	require.NoError(t, err)
	require.Equal(t, models.StatusIdle, session.Status)
	return session
}

func TestCreateSession_UnknownQuizSessionRejected(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, newStubStorage(), &stubVision{detected: true})

	_, err := svc.CreateSession(uuid.New(), models.SockThin)

	assert.ErrorIs(t, err, services.ErrQuizSessionNotFound)
	assert.Empty(t, store.sessions)
}

func TestAnalyzePhoto_InvalidPhotoNumber(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, newStubStorage(), &stubVision{detected: true})

	_, err := svc.AnalyzePhoto(context.Background(), uuid.New(), 3, "captures/photo1.jpg")

	assert.ErrorIs(t, err, services.ErrInvalidPhotoNumber)
}

func TestAnalyzePhoto_UnknownSession(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, newStubStorage(), &stubVision{detected: true})

	_, err := svc.AnalyzePhoto(context.Background(), uuid.New(), 1, "captures/photo1.jpg")

	assert.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestAnalyzePhoto_HappyPathCompletesSession(t *testing.T) {
	store := newStubStore()
	storage := newStubStorage()
	vis := &stubVision{detected: true, outputs: []*vision.MeasurementOutput{
		{
			Left:  &models.MeasurementResult{LengthMm: 260, WidthMm: 100, Confidence: 0.9},
			Right: &models.MeasurementResult{LengthMm: 250, WidthMm: 95, Confidence: 0.8},
		},
		{
			Left:  &models.MeasurementResult{LengthMm: 255, WidthMm: 98, Confidence: 0.8},
			Right: &models.MeasurementResult{LengthMm: 245, WidthMm: 93, Confidence: 0.85},
		},
	}}
	svc := newTestService(store, storage, vis)
	session := createTestSession(t, svc, store, models.SockThin)

	outcome, err := svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")
	require.NoError(t, err)
	assert.False(t, outcome.RetakeRequired)
	assert.Equal(t, models.StatusCapturing, outcome.Session.Status)

	outcome, err = svc.AnalyzePhoto(context.Background(), session.ID, 2, "captures/photo2.jpg")
	require.NoError(t, err)
	assert.False(t, outcome.RetakeRequired)
	assert.Equal(t, models.StatusComplete, outcome.Session.Status)

	final := outcome.Session.Final
	require.NotNil(t, final)
	require.NotNil(t, final.Left)
	assert.Equal(t, 258.5, final.Left.LengthMm)
	assert.Equal(t, 99.0, final.Left.WidthMm)
	assert.InDelta(t, 0.87, final.Left.Confidence, 1e-9)
	require.NotNil(t, final.Right)
	assert.Equal(t, 246.5, final.Right.LengthMm) // 0.7*245 + 0.3*250
	assert.Equal(t, 94.0, final.Right.WidthMm)

	persisted := store.persisted(session.ID)
	assert.Equal(t, models.StatusComplete, persisted.Status)
	assert.True(t, persisted.CompletedAt.Valid)

	// Both consumed captures are eventually deleted from storage.
	require.Eventually(t, func() bool {
		return len(storage.deletedKeys()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestAnalyzePhoto_SheetNotDetectedIsRetakeNotFailure(t *testing.T) {
	store := newStubStore()
	storage := newStubStorage()
	svc := newTestService(store, storage, &stubVision{detected: false})
	session := createTestSession(t, svc, store, models.SockThin)

	outcome, err := svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")

	require.NoError(t, err)
	assert.True(t, outcome.RetakeRequired)
	assert.Contains(t, outcome.RetakeReason, "reference sheet")
	assert.Equal(t, models.StatusCapturing, outcome.Session.Status)

	persisted := store.persisted(session.ID)
	require.NotNil(t, persisted.Photo1)
	assert.True(t, persisted.Photo1.Processed)
	assert.False(t, persisted.Photo1.SheetDetected)
}

func TestAnalyzePhoto_ReuploadOverwritesSlot(t *testing.T) {
	store := newStubStore()
	vis := &stubVision{detected: true, outputs: []*vision.MeasurementOutput{
		{Left: &models.MeasurementResult{LengthMm: 260, WidthMm: 100, Confidence: 0.3}},
		{Left: &models.MeasurementResult{LengthMm: 262, WidthMm: 101, Confidence: 0.9}},
	}}
	svc := newTestService(store, newStubStorage(), vis)
	session := createTestSession(t, svc, store, models.SockThin)

	outcome, err := svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")
	require.NoError(t, err)
	assert.True(t, outcome.RetakeRequired)

	outcome, err = svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")
	require.NoError(t, err)
	assert.False(t, outcome.RetakeRequired)

	persisted := store.persisted(session.ID)
	require.NotNil(t, persisted.Photo1.Left)
	assert.Equal(t, 262.0, persisted.Photo1.Left.LengthMm)
	assert.Equal(t, 0.9, persisted.Photo1.Left.Confidence)
}

func TestAnalyzePhoto_ConsistencyFailureBlocksReconciliation(t *testing.T) {
	store := newStubStore()
	vis := &stubVision{detected: true, outputs: []*vision.MeasurementOutput{
		{Left: &models.MeasurementResult{LengthMm: 260, WidthMm: 100, Confidence: 0.9}},
		{Left: &models.MeasurementResult{LengthMm: 272, WidthMm: 98, Confidence: 0.9}},
	}}
	svc := newTestService(store, newStubStorage(), vis)
	session := createTestSession(t, svc, store, models.SockThin)

	_, err := svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")
	require.NoError(t, err)

	outcome, err := svc.AnalyzePhoto(context.Background(), session.ID, 2, "captures/photo2.jpg")
	require.NoError(t, err)

	assert.True(t, outcome.RetakeRequired)
	assert.Contains(t, outcome.RetakeReason, "differs by 12.0mm")
	assert.Equal(t, models.StatusCapturing, outcome.Session.Status)
	assert.Nil(t, store.persisted(session.ID).Final)
}

func TestAnalyzePhoto_UnprocessableImageFailsSession(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, newStubStorage(), &stubVision{rectifyErr: vision.ErrUnprocessableImage})
	session := createTestSession(t, svc, store, models.SockThin)

	_, err := svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")

	assert.ErrorIs(t, err, vision.ErrUnprocessableImage)
	persisted := store.persisted(session.ID)
	assert.Equal(t, models.StatusFailed, persisted.Status)
	assert.True(t, persisted.ErrorMessage.Valid)
}

func TestAnalyzePhoto_CompletedSessionRejectsFurtherUploads(t *testing.T) {
	store := newStubStore()
	vis := &stubVision{detected: true, outputs: []*vision.MeasurementOutput{
		{Left: &models.MeasurementResult{LengthMm: 260, WidthMm: 100, Confidence: 0.9}},
		{Left: &models.MeasurementResult{LengthMm: 258, WidthMm: 98, Confidence: 0.9}},
	}}
	svc := newTestService(store, newStubStorage(), vis)
	session := createTestSession(t, svc, store, models.SockThin)

	_, err := svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")
	require.NoError(t, err)
	outcome, err := svc.AnalyzePhoto(context.Background(), session.ID, 2, "captures/photo2.jpg")
	require.NoError(t, err)
	require.Equal(t, models.StatusComplete, outcome.Session.Status)

	_, err = svc.AnalyzePhoto(context.Background(), session.ID, 1, "captures/photo1.jpg")
	assert.ErrorIs(t, err, services.ErrSessionClosed)
}

func TestGetSession_RevalidatesQuizSession(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, newStubStorage(), &stubVision{detected: true})
	session := createTestSession(t, svc, store, models.SockMedium)

	// Quiz session disappears after creation.
	store.mu.Lock()
	store.quiz[session.QuizSessionID] = false
	store.mu.Unlock()

	_, err := svc.GetSession(session.ID)

	assert.ErrorIs(t, err, services.ErrQuizSessionNotFound)
}
