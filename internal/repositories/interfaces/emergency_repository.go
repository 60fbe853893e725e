package interfaces

import (
	"context"
	"errors"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmergencyNotFound = errors.New("emergency not found")
	ErrAlreadyTerminal   = errors.New("emergency already terminal")
)

// IncidentHistory summarizes a user's recent incidents for false-alarm scoring.
type IncidentHistory struct {
	Count           int64 `json:"count"`
	FalseAlarmCount int64 `json:"false_alarm_count"`
}

// EmergencyRepository is the incident store: the single source of truth for an
// emergency's status and escalation level. AdvanceLevel and Resolve are
// conditional updates filtered on the current status, so a resolution and a
// firing escalation timer racing on the same incident serialize here.
type EmergencyRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Emergency, error)

	// Escalation operations. AdvanceLevel applies only when the emergency is
	// still non-terminal and sits exactly at fromLevel; it appends the
	// timeline entry and bumps the level in the same update, marking the
	// status escalated when the final level is reached. Returns false when
	// the condition did not hold (resolved meanwhile, or level moved).
	AdvanceLevel(ctx context.Context, id primitive.ObjectID, fromLevel int, entry models.EscalationEntry) (bool, error)

	// Resolve applies the terminal transition once. A second call on an
	// already-terminal emergency returns the stored record with applied=false
	// and no error, so callers can tell the race outcome from a failure.
	Resolve(ctx context.Context, id primitive.ObjectID, status models.EmergencyStatus, resolution models.Resolution) (*models.Emergency, bool, error)

	// Append-only logs
	AppendNotification(ctx context.Context, id primitive.ObjectID, record models.NotificationRecord) error
	AppendResponseAction(ctx context.Context, id primitive.ObjectID, action models.ResponseAction) error
	AppendLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error
	AttachMedia(ctx context.Context, id primitive.ObjectID, media models.MediaAttachment) error

	// Scoring
	SetFalseAlarmIndicators(ctx context.Context, id primitive.ObjectID, indicators models.FalseAlarmIndicators) error
	SetUserReported(ctx context.Context, id primitive.ObjectID, reported bool) error
	CountRecentIncidents(ctx context.Context, userID primitive.ObjectID, window time.Duration) (*IncidentHistory, error)

	// Monitoring and recovery
	GetActiveEmergencies(ctx context.Context) ([]*models.Emergency, error)
	GetActiveEmergencyForRide(ctx context.Context, rideID primitive.ObjectID) (*models.Emergency, error)

	// Admin surface
	GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Emergency, int64, error)
	GetByStatus(ctx context.Context, status models.EmergencyStatus, params *utils.PaginationParams) ([]*models.Emergency, int64, error)
}
