package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"rideguard/internal/escalation"
	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/utils"
	"rideguard/pkg/logger"
	"rideguard/pkg/storage"
	"rideguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmergencyService interface {
	// Lifecycle
	TriggerEmergency(ctx context.Context, userID primitive.ObjectID, request *models.TriggerEmergencyRequest) (*models.Emergency, error)
	ResolveEmergency(ctx context.Context, id primitive.ObjectID, resolvedBy primitive.ObjectID, request *models.ResolveEmergencyRequest) (*models.Emergency, bool, error)

	// Response tracking
	AcknowledgeEmergency(ctx context.Context, id primitive.ObjectID, actorID primitive.ObjectID, request *models.AcknowledgeEmergencyRequest) error
	UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error
	AttachMedia(ctx context.Context, id primitive.ObjectID, uploadedBy primitive.ObjectID, mediaType, fileName, mimeType string, size int64, content io.Reader) (*models.MediaAttachment, error)

	// Review surface
	GetEmergency(ctx context.Context, id primitive.ObjectID) (*models.Emergency, error)
	GetActiveEmergencies(ctx context.Context) ([]*models.Emergency, error)
	GetUserEmergencies(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Emergency, int64, error)
	FlagFalseAlarm(ctx context.Context, id primitive.ObjectID, reported bool) (*models.Emergency, error)
}

type emergencyService struct {
	emergencyRepo interfaces.EmergencyRepository
	scheduler     *escalation.Scheduler
	scorer        *escalation.Scorer
	storage       storage.StorageProvider
	wsHandler     *websocket.Handler
	logger        *logger.Logger
}

func NewEmergencyService(
	emergencyRepo interfaces.EmergencyRepository,
	scheduler *escalation.Scheduler,
	scorer *escalation.Scorer,
	storageProvider storage.StorageProvider,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) EmergencyService {
	return &emergencyService{
		emergencyRepo: emergencyRepo,
		scheduler:     scheduler,
		scorer:        scorer,
		storage:       storageProvider,
		wsHandler:     wsHandler,
		logger:        log,
	}
}

func (s *emergencyService) TriggerEmergency(ctx context.Context, userID primitive.ObjectID, request *models.TriggerEmergencyRequest) (*models.Emergency, error) {
	emergency := &models.Emergency{
		TriggeredBy: userID,
		Type:        request.Type,
		Description: request.Description,
		Location:    request.Location,
	}

	if request.RideID != nil {
		rideID, err := primitive.ObjectIDFromHex(*request.RideID)
		if err != nil {
			return nil, fmt.Errorf("invalid ride id: %w", err)
		}
		emergency.RideID = &rideID
	}
	if request.BookingID != nil {
		bookingID, err := primitive.ObjectIDFromHex(*request.BookingID)
		if err != nil {
			return nil, fmt.Errorf("invalid booking id: %w", err)
		}
		emergency.BookingID = &bookingID
	}

	if err := s.emergencyRepo.Create(ctx, emergency); err != nil {
		return nil, fmt.Errorf("failed to create emergency: %w", err)
	}

	if _, err := s.scheduler.StartMonitoring(ctx, emergency.ID); err != nil {
		// The incident exists either way; monitoring can be recovered.
		s.logger.WithEmergencyID(emergency.ID).WithError(err).Error("Failed to start escalation monitoring")
	}

	s.logger.LogEmergencyEvent(emergency.ID, "triggered", map[string]interface{}{
		"type":    string(emergency.Type),
		"user_id": userID.Hex(),
	})
	s.broadcastEmergencyEvent(emergency, "emergency_triggered")

	return emergency, nil
}

// ResolveEmergency applies the terminal transition. The second return value
// is false when the emergency was already terminal, an expected race outcome
// rather than an error. Monitoring stops synchronously inside this call so no
// escalation action can follow the terminal write.
func (s *emergencyService) ResolveEmergency(ctx context.Context, id primitive.ObjectID, resolvedBy primitive.ObjectID, request *models.ResolveEmergencyRequest) (*models.Emergency, bool, error) {
	status := resolutionStatus(request.Outcome)
	resolution := models.Resolution{
		ResolvedBy: resolvedBy,
		Outcome:    request.Outcome,
		Notes:      request.Notes,
		ResolvedAt: time.Now(),
	}

	emergency, applied, err := s.emergencyRepo.Resolve(ctx, id, status, resolution)
	if err != nil {
		return nil, false, err
	}

	s.scheduler.StopMonitoring(id)

	if !applied {
		return emergency, false, nil
	}

	s.logger.LogEmergencyEvent(id, "resolved", map[string]interface{}{
		"outcome":     request.Outcome,
		"resolved_by": resolvedBy.Hex(),
		"level":       emergency.EscalationLevel,
	})
	s.broadcastEmergencyEvent(emergency, "emergency_resolved")

	s.scoreEmergency(ctx, emergency)

	return emergency, true, nil
}

func (s *emergencyService) AcknowledgeEmergency(ctx context.Context, id primitive.ObjectID, actorID primitive.ObjectID, request *models.AcknowledgeEmergencyRequest) error {
	if _, err := s.emergencyRepo.GetByID(ctx, id); err != nil {
		return err
	}

	action := models.ResponseAction{
		ActorID: actorID,
		Action:  request.Action,
		Notes:   request.Notes,
		AckedAt: time.Now(),
	}

	if err := s.emergencyRepo.AppendResponseAction(ctx, id, action); err != nil {
		return fmt.Errorf("failed to record response action: %w", err)
	}

	s.logger.LogEmergencyEvent(id, "acknowledged", map[string]interface{}{
		"actor_id": actorID.Hex(),
		"action":   request.Action,
	})

	return nil
}

func (s *emergencyService) UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	if location.Timestamp.IsZero() {
		location.Timestamp = time.Now()
	}
	return s.emergencyRepo.AppendLocation(ctx, id, location)
}

func (s *emergencyService) AttachMedia(ctx context.Context, id primitive.ObjectID, uploadedBy primitive.ObjectID, mediaType, fileName, mimeType string, size int64, content io.Reader) (*models.MediaAttachment, error) {
	if _, err := s.emergencyRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, fmt.Errorf("media storage not configured")
	}

	mediaID := primitive.NewObjectID()
	key := fmt.Sprintf("emergencies/%s/%s_%s", id.Hex(), mediaID.Hex(), fileName)

	uploaded, err := s.storage.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      content,
		ContentType: mimeType,
		Size:        size,
		Metadata: map[string]string{
			"emergency_id": id.Hex(),
			"uploaded_by":  uploadedBy.Hex(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}

	media := models.MediaAttachment{
		ID:         mediaID,
		Type:       mediaType,
		URL:        uploaded.URL,
		FileName:   fileName,
		FileSize:   size,
		MimeType:   mimeType,
		UploadedBy: uploadedBy,
		UploadedAt: time.Now(),
	}

	if err := s.emergencyRepo.AttachMedia(ctx, id, media); err != nil {
		return nil, fmt.Errorf("failed to record media attachment: %w", err)
	}

	return &media, nil
}

func (s *emergencyService) GetEmergency(ctx context.Context, id primitive.ObjectID) (*models.Emergency, error) {
	return s.emergencyRepo.GetByID(ctx, id)
}

func (s *emergencyService) GetActiveEmergencies(ctx context.Context) ([]*models.Emergency, error) {
	return s.emergencyRepo.GetActiveEmergencies(ctx)
}

func (s *emergencyService) GetUserEmergencies(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	return s.emergencyRepo.GetByUserID(ctx, userID, params)
}

// FlagFalseAlarm sets the manual review flag and, when the incident is
// already terminal, rescores so the indicator totals stay consistent.
func (s *emergencyService) FlagFalseAlarm(ctx context.Context, id primitive.ObjectID, reported bool) (*models.Emergency, error) {
	if err := s.emergencyRepo.SetUserReported(ctx, id, reported); err != nil {
		return nil, err
	}

	emergency, err := s.emergencyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if emergency.IsTerminal() {
		s.scoreEmergency(ctx, emergency)
		emergency, err = s.emergencyRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	return emergency, nil
}

func (s *emergencyService) scoreEmergency(ctx context.Context, emergency *models.Emergency) {
	indicators, err := s.scorer.Score(ctx, emergency)
	if err != nil {
		s.logger.WithEmergencyID(emergency.ID).WithError(err).Error("False-alarm scoring failed")
		return
	}

	if err := s.emergencyRepo.SetFalseAlarmIndicators(ctx, emergency.ID, *indicators); err != nil {
		s.logger.WithEmergencyID(emergency.ID).WithError(err).Error("Failed to store false-alarm indicators")
		return
	}

	if indicators.Flagged {
		s.logger.WithEmergencyID(emergency.ID).WithField("score", indicators.Score).Warn("Emergency flagged as probable false alarm")
	}
}

func (s *emergencyService) broadcastEmergencyEvent(emergency *models.Emergency, eventType string) {
	if s.wsHandler == nil {
		return
	}

	s.wsHandler.SendEmergencyUpdate(emergency.ID, eventType, map[string]interface{}{
		"status": string(emergency.Status),
		"level":  emergency.EscalationLevel,
		"type":   string(emergency.Type),
	})
}

func resolutionStatus(outcome string) models.EmergencyStatus {
	switch outcome {
	case "false_alarm":
		return models.EmergencyStatusFalseAlarm
	case "cancelled":
		return models.EmergencyStatusCancelled
	default:
		return models.EmergencyStatusResolved
	}
}
