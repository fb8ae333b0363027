package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"footscan-backend/internal/measurement"
	"footscan-backend/internal/models"
	"footscan-backend/internal/sessionlock"
	"footscan-backend/internal/supabase"
	"footscan-backend/internal/vision"
)

var (
	ErrQuizSessionNotFound = errors.New("quiz session not found")
	ErrSessionNotFound     = errors.New("measurement session not found")
	ErrSessionClosed       = errors.New("measurement session is already closed")
	ErrInvalidPhotoNumber  = errors.New("photo number must be 1 or 2")
)

// SessionStore persists measurement sessions keyed by session id and
// answers the quiz-session integrity check.
type SessionStore interface {
	QuizSessionExists(quizSessionID uuid.UUID) (bool, error)
	CreateSession(session *models.MeasurementSession) error
	GetSession(sessionID uuid.UUID) (*models.MeasurementSession, error)
	ListSessions(quizSessionID uuid.UUID) ([]models.MeasurementSession, error)
	UpdateSession(session *models.MeasurementSession) error
}

// ObjectStorage is the raw-capture bucket.
type ObjectStorage interface {
	DownloadFile(objectKey string) ([]byte, error)
	DeleteFile(objectKey string) error
}

// VisionAdapter is the consumed contract of the vision service. Its
// outputs are treated as ground truth inputs to gating and reconciliation.
type VisionAdapter interface {
	DetectAndRectify(ctx context.Context, image []byte) (*vision.RectifyResult, error)
	SegmentFeet(ctx context.Context, frameID string) (*vision.Segmentation, error)
	ComputeBlurScore(ctx context.Context, image []byte) (float64, error)
	ProcessMeasurements(ctx context.Context, req vision.MeasurementRequest) (*vision.MeasurementOutput, error)
}

// EventPublisher pushes session lifecycle events to subscribed clients.
type EventPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload map[string]interface{}) error
}

// MeasurementService orchestrates the two-photo measurement session: it
// sequences photo 1 -> photo 2 -> reconciliation, runs the quality gate on
// each upload and the consistency validator before accepting the final
// result. All the numeric decisions live in the measurement package; this
// service owns I/O, locking and the state machine.
type MeasurementService struct {
	store   SessionStore
	storage ObjectStorage
	vision  VisionAdapter
	events  EventPublisher
	locker  sessionlock.Locker
	logger  *zap.Logger
}

func NewMeasurementService(
	store SessionStore,
	storage ObjectStorage,
	visionAdapter VisionAdapter,
	events EventPublisher,
	locker sessionlock.Locker,
	logger *zap.Logger,
) *MeasurementService {
	return &MeasurementService{
		store:   store,
		storage: storage,
		vision:  visionAdapter,
		events:  events,
		locker:  locker,
		logger:  logger,
	}
}

// AnalyzeOutcome is the structured result of one photo upload. Per-photo
// problems come back here as a retake, never as an error, so the caller
// can always render actionable guidance.
type AnalyzeOutcome struct {
	Session        *models.MeasurementSession
	RetakeRequired bool
	RetakeReason   string
}

func (s *MeasurementService) CreateSession(quizSessionID uuid.UUID, sockThickness models.SockThickness) (*models.MeasurementSession, error) {
	exists, err := s.store.QuizSessionExists(quizSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate quiz session: %w", err)
	}
	if !exists {
		return nil, ErrQuizSessionNotFound
	}

	session := &models.MeasurementSession{
		ID:            uuid.New(),
		QuizSessionID: quizSessionID,
		Status:        models.StatusIdle,
		SockThickness: sockThickness,
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, err
	}

	s.logger.Info("measurement session created",
		zap.String("session_id", session.ID.String()),
		zap.String("quiz_session_id", quizSessionID.String()),
		zap.String("sock_thickness", string(sockThickness)),
	)

	return session, nil
}

func (s *MeasurementService) GetSession(sessionID uuid.UUID) (*models.MeasurementSession, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// The quiz session is re-validated at every read as a defense
	// against orphaned or forged session ids.
	exists, err := s.store.QuizSessionExists(session.QuizSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate quiz session: %w", err)
	}
	if !exists {
		return nil, ErrQuizSessionNotFound
	}

	return session, nil
}

func (s *MeasurementService) ListSessions(quizSessionID uuid.UUID) ([]models.MeasurementSession, error) {
	exists, err := s.store.QuizSessionExists(quizSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate quiz session: %w", err)
	}
	if !exists {
		return nil, ErrQuizSessionNotFound
	}
	return s.store.ListSessions(quizSessionID)
}

// AnalyzePhoto is the single entry point per photo upload: fetch the
// capture, run the vision pipeline, persist the photo record, gate it,
// and once both photos pass, validate consistency and reconcile.
//
// The whole step runs under the per-session lock; re-uploading the same
// photo number simply overwrites the slot and re-runs the gate.
func (s *MeasurementService) AnalyzePhoto(ctx context.Context, sessionID uuid.UUID, photoNumber int, objectKey string) (*AnalyzeOutcome, error) {
	if photoNumber != 1 && photoNumber != 2 {
		return nil, ErrInvalidPhotoNumber
	}

	release, err := s.locker.Acquire(ctx, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session processing: %w", err)
	}
	defer release()

	session, err := s.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrSessionClosed
	}

	image, err := s.storage.DownloadFile(objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capture %q: %w", objectKey, err)
	}

	record, err := s.runVisionPipeline(ctx, session, objectKey, image)
	if err != nil {
		if errors.Is(err, vision.ErrUnprocessableImage) {
			s.failSession(session, objectKey, "uploaded image cannot be processed - upload a new photo")
			return nil, err
		}
		// Infrastructure fault: nothing is committed for this photo,
		// the caller retries by uploading again.
		return nil, err
	}

	if session.Status == models.StatusIdle {
		if err := session.Transition(models.StatusCapturing); err != nil {
			return nil, err
		}
	}
	session.SetPhoto(photoNumber, record)

	if gate := measurement.CheckRetake(session, photoNumber); gate.Required {
		if err := s.store.UpdateSession(session); err != nil {
			return nil, err
		}
		s.events.PublishSessionEvent(session.ID, "retake_required",
			supabase.RetakeRequiredPayload(session.ID, photoNumber, gate.Reason))
		s.logger.Info("photo rejected by quality gate",
			zap.String("session_id", session.ID.String()),
			zap.Int("photo_number", photoNumber),
			zap.String("reason", gate.Reason),
		)
		return &AnalyzeOutcome{Session: session, RetakeRequired: true, RetakeReason: gate.Reason}, nil
	}

	if !session.BothPhotosProcessed() {
		if err := s.store.UpdateSession(session); err != nil {
			return nil, err
		}
		s.events.PublishSessionEvent(session.ID, "photo_processed",
			supabase.PhotoProcessedPayload(session.ID, photoNumber))
		return &AnalyzeOutcome{Session: session}, nil
	}

	if cons := measurement.CheckConsistency(session); cons.Required {
		// Both photos pass individually but disagree; reconciliation
		// is not attempted and both slots await a retake.
		if err := s.store.UpdateSession(session); err != nil {
			return nil, err
		}
		s.events.PublishSessionEvent(session.ID, "retake_required",
			supabase.RetakeRequiredPayload(session.ID, photoNumber, cons.Reason))
		s.logger.Info("cross-photo consistency check failed",
			zap.String("session_id", session.ID.String()),
			zap.String("reason", cons.Reason),
		)
		return &AnalyzeOutcome{Session: session, RetakeRequired: true, RetakeReason: cons.Reason}, nil
	}

	if err := session.Transition(models.StatusProcessing); err != nil {
		return nil, err
	}
	final := measurement.Reconcile(session)
	session.Final = &final
	if err := session.Transition(models.StatusComplete); err != nil {
		return nil, err
	}
	session.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	if err := s.store.UpdateSession(session); err != nil {
		return nil, err
	}
	s.events.PublishSessionEvent(session.ID, "session_completed",
		supabase.SessionCompletedPayload(session.ID))
	s.logger.Info("measurement session completed",
		zap.String("session_id", session.ID.String()),
		zap.Bool("left_measured", final.Left != nil),
		zap.Bool("right_measured", final.Right != nil),
	)

	return &AnalyzeOutcome{Session: session}, nil
}

// runVisionPipeline drives the four adapter primitives for one capture.
// The raw image is deleted from storage as soon as the adapter has
// consumed it, whatever the gate later decides.
func (s *MeasurementService) runVisionPipeline(ctx context.Context, session *models.MeasurementSession, objectKey string, image []byte) (*models.PhotoRecord, error) {
	rect, err := s.vision.DetectAndRectify(ctx, image)
	if err != nil {
		return nil, err
	}
	if !rect.Detected {
		go s.deleteCapture(objectKey)
		return &models.PhotoRecord{Processed: true}, nil
	}

	seg, err := s.vision.SegmentFeet(ctx, rect.FrameID)
	if err != nil {
		return nil, err
	}
	blurScore, err := s.vision.ComputeBlurScore(ctx, image)
	if err != nil {
		return nil, err
	}
	output, err := s.vision.ProcessMeasurements(ctx, vision.MeasurementRequest{
		FrameID:       rect.FrameID,
		MaskID:        seg.MaskID,
		SockThickness: string(session.SockThickness),
		BlurScore:     blurScore,
	})
	if err != nil {
		return nil, err
	}

	go s.deleteCapture(objectKey)

	return &models.PhotoRecord{
		Processed:     true,
		SheetDetected: true,
		Left:          output.Left,
		Right:         output.Right,
	}, nil
}

// deleteCapture is fire-and-forget: a failed delete is logged and left to
// the bucket lifecycle rule, it never affects the measurement response.
func (s *MeasurementService) deleteCapture(objectKey string) {
	if err := s.storage.DeleteFile(objectKey); err != nil {
		s.logger.Warn("failed to delete consumed capture",
			zap.String("object_key", objectKey),
			zap.Error(err),
		)
	}
}

// failSession marks the session terminally failed. Reserved for images
// the vision service can never process; bad captures go through the
// retake path instead.
func (s *MeasurementService) failSession(session *models.MeasurementSession, objectKey, reason string) {
	go s.deleteCapture(objectKey)

	if err := session.Transition(models.StatusFailed); err != nil {
		s.logger.Error("failed to transition session to failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
		return
	}
	session.ErrorMessage = sql.NullString{String: reason, Valid: true}

	if err := s.store.UpdateSession(session); err != nil {
		s.logger.Error("failed to persist failed session",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}
	s.events.PublishSessionEvent(session.ID, "session_failed",
		supabase.SessionFailedPayload(session.ID, reason))
}
