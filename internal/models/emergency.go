package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmergencyType string
type EmergencyStatus string
type EscalationActor string
type NotificationChannel string
type DeliveryStatus string

const (
	EmergencyTypeSOS            EmergencyType = "sos"
	EmergencyTypeAccident       EmergencyType = "accident"
	EmergencyTypeMedical        EmergencyType = "medical"
	EmergencyTypeThreat         EmergencyType = "threat"
	EmergencyTypeBreakdown      EmergencyType = "breakdown"
	EmergencyTypeRouteDeviation EmergencyType = "route_deviation"
	EmergencyTypeAutoAlert      EmergencyType = "auto_alert"
	EmergencyTypeManualReport   EmergencyType = "manual_report"
	EmergencyTypeOther          EmergencyType = "other"

	EmergencyStatusActive     EmergencyStatus = "active"
	EmergencyStatusEscalated  EmergencyStatus = "escalated"
	EmergencyStatusResolved   EmergencyStatus = "resolved"
	EmergencyStatusFalseAlarm EmergencyStatus = "false_alarm"
	EmergencyStatusCancelled  EmergencyStatus = "cancelled"

	EscalationActorAuto  EscalationActor = "auto"
	EscalationActorUser  EscalationActor = "user"
	EscalationActorAdmin EscalationActor = "admin"

	NotificationChannelSMS   NotificationChannel = "sms"
	NotificationChannelPush  NotificationChannel = "push"
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelInApp NotificationChannel = "in_app"

	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// MaxEscalationLevel is the final stage of the response timetable. Reaching it
// marks the emergency escalated and triggers the dispatch action.
const MaxEscalationLevel = 4

type Emergency struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	TriggeredBy     primitive.ObjectID  `json:"triggered_by" bson:"triggered_by" validate:"required"`
	RideID          *primitive.ObjectID `json:"ride_id" bson:"ride_id"`
	BookingID       *primitive.ObjectID `json:"booking_id" bson:"booking_id"`
	Type            EmergencyType       `json:"type" bson:"type" validate:"required"`
	Status          EmergencyStatus     `json:"status" bson:"status" default:"active"`
	EscalationLevel int                 `json:"escalation_level" bson:"escalation_level"`
	Description     string              `json:"description" bson:"description"`

	Location        Location   `json:"location" bson:"location" validate:"required"`
	LocationHistory []Location `json:"location_history" bson:"location_history"`

	// Append-only logs. The engine only ever pushes entries; nothing is
	// mutated or reordered once written.
	EscalationTimeline []EscalationEntry    `json:"escalation_timeline" bson:"escalation_timeline"`
	NotificationsSent  []NotificationRecord `json:"notifications_sent" bson:"notifications_sent"`

	Media []MediaAttachment `json:"media,omitempty" bson:"media,omitempty"`

	ResponseActions      []ResponseAction      `json:"response_actions" bson:"response_actions"`
	FalseAlarmIndicators *FalseAlarmIndicators `json:"false_alarm_indicators,omitempty" bson:"false_alarm_indicators,omitempty"`
	Resolution           *Resolution           `json:"resolution,omitempty" bson:"resolution,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type EscalationEntry struct {
	Level       int             `json:"level" bson:"level"`
	Action      string          `json:"action" bson:"action"`
	TriggeredBy EscalationActor `json:"triggered_by" bson:"triggered_by"`
	Timestamp   time.Time       `json:"timestamp" bson:"timestamp"`
}

type NotificationRecord struct {
	Recipient string              `json:"recipient" bson:"recipient"`
	Channel   NotificationChannel `json:"channel" bson:"channel"`
	Level     int                 `json:"level" bson:"level"`
	MessageID string              `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Status    DeliveryStatus      `json:"status" bson:"status"`
	Error     string              `json:"error,omitempty" bson:"error,omitempty"`
	SentAt    time.Time           `json:"sent_at" bson:"sent_at"`
}

type ResponseAction struct {
	ActorID primitive.ObjectID `json:"actor_id" bson:"actor_id"`
	Action  string             `json:"action" bson:"action"`
	Notes   string             `json:"notes,omitempty" bson:"notes,omitempty"`
	AckedAt time.Time          `json:"acked_at" bson:"acked_at"`
}

type FalseAlarmIndicators struct {
	QuickResolution  bool      `json:"quick_resolution" bson:"quick_resolution"`
	NoResponse       bool      `json:"no_response" bson:"no_response"`
	RepeatedTriggers bool      `json:"repeated_triggers" bson:"repeated_triggers"`
	UserReported     bool      `json:"user_reported" bson:"user_reported"`
	Score            int       `json:"score" bson:"score"`
	Flagged          bool      `json:"flagged" bson:"flagged"`
	ScoredAt         time.Time `json:"scored_at" bson:"scored_at"`
}

type Resolution struct {
	ResolvedBy primitive.ObjectID `json:"resolved_by" bson:"resolved_by"`
	Outcome    string             `json:"outcome" bson:"outcome"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty"`
	ResolvedAt time.Time          `json:"resolved_at" bson:"resolved_at"`
}

type MediaAttachment struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type       string             `json:"type" bson:"type"` // photo, audio, video
	URL        string             `json:"url" bson:"url"`
	FileName   string             `json:"file_name" bson:"file_name"`
	FileSize   int64              `json:"file_size" bson:"file_size"`
	MimeType   string             `json:"mime_type" bson:"mime_type"`
	UploadedBy primitive.ObjectID `json:"uploaded_by" bson:"uploaded_by"`
	UploadedAt time.Time          `json:"uploaded_at" bson:"uploaded_at"`
}

// IsTerminal reports whether the emergency has reached one of the three
// irreversible statuses.
func (e *Emergency) IsTerminal() bool {
	return e.Status.IsTerminal()
}

func (s EmergencyStatus) IsTerminal() bool {
	switch s {
	case EmergencyStatusResolved, EmergencyStatusFalseAlarm, EmergencyStatusCancelled:
		return true
	}
	return false
}

// Request DTOs
type TriggerEmergencyRequest struct {
	Type        EmergencyType `json:"type" validate:"required,oneof=sos accident medical threat breakdown route_deviation auto_alert manual_report other"`
	Description string        `json:"description,omitempty"`
	Location    Location      `json:"location" validate:"required"`
	RideID      *string       `json:"ride_id,omitempty"`
	BookingID   *string       `json:"booking_id,omitempty"`
}

type ResolveEmergencyRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=safe resolved false_alarm cancelled"`
	Notes   string `json:"notes,omitempty"`
}

type AcknowledgeEmergencyRequest struct {
	Action string `json:"action" validate:"required"`
	Notes  string `json:"notes,omitempty"`
}
