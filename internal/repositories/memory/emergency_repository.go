package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// emergencyRepository is an in-memory incident store with the same
// conditional-update semantics as the mongo implementation. Used in tests and
// for local development without a database.
type emergencyRepository struct {
	mu          sync.RWMutex
	emergencies map[primitive.ObjectID]*models.Emergency
}

func NewEmergencyRepository() interfaces.EmergencyRepository {
	return &emergencyRepository{
		emergencies: make(map[primitive.ObjectID]*models.Emergency),
	}
}

func (r *emergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if emergency.ID.IsZero() {
		emergency.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if emergency.CreatedAt.IsZero() {
		emergency.CreatedAt = now
	}
	emergency.UpdatedAt = now
	emergency.Status = models.EmergencyStatusActive
	emergency.EscalationLevel = 0
	emergency.EscalationTimeline = []models.EscalationEntry{{
		Level:       0,
		Action:      "triggered",
		TriggeredBy: models.EscalationActorUser,
		Timestamp:   emergency.CreatedAt,
	}}

	r.emergencies[emergency.ID] = clone(emergency)
	return nil
}

func (r *emergencyRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return nil, interfaces.ErrEmergencyNotFound
	}
	return clone(emergency), nil
}

func (r *emergencyRepository) AdvanceLevel(ctx context.Context, id primitive.ObjectID, fromLevel int, entry models.EscalationEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return false, interfaces.ErrEmergencyNotFound
	}
	if emergency.IsTerminal() || emergency.EscalationLevel != fromLevel {
		return false, nil
	}

	emergency.EscalationLevel = entry.Level
	emergency.EscalationTimeline = append(emergency.EscalationTimeline, entry)
	if entry.Level >= models.MaxEscalationLevel {
		emergency.Status = models.EmergencyStatusEscalated
	}
	emergency.UpdatedAt = time.Now()

	return true, nil
}

func (r *emergencyRepository) Resolve(ctx context.Context, id primitive.ObjectID, status models.EmergencyStatus, resolution models.Resolution) (*models.Emergency, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return nil, false, interfaces.ErrEmergencyNotFound
	}
	if emergency.IsTerminal() {
		return clone(emergency), false, nil
	}

	emergency.Status = status
	emergency.Resolution = &resolution
	emergency.UpdatedAt = time.Now()

	return clone(emergency), true, nil
}

func (r *emergencyRepository) AppendNotification(ctx context.Context, id primitive.ObjectID, record models.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return interfaces.ErrEmergencyNotFound
	}
	emergency.NotificationsSent = append(emergency.NotificationsSent, record)
	emergency.UpdatedAt = time.Now()
	return nil
}

func (r *emergencyRepository) AppendResponseAction(ctx context.Context, id primitive.ObjectID, action models.ResponseAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return interfaces.ErrEmergencyNotFound
	}
	emergency.ResponseActions = append(emergency.ResponseActions, action)
	emergency.UpdatedAt = time.Now()
	return nil
}

func (r *emergencyRepository) AppendLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return interfaces.ErrEmergencyNotFound
	}
	emergency.Location = location
	emergency.LocationHistory = append(emergency.LocationHistory, location)
	emergency.UpdatedAt = time.Now()
	return nil
}

func (r *emergencyRepository) AttachMedia(ctx context.Context, id primitive.ObjectID, media models.MediaAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return interfaces.ErrEmergencyNotFound
	}
	emergency.Media = append(emergency.Media, media)
	emergency.UpdatedAt = time.Now()
	return nil
}

func (r *emergencyRepository) SetFalseAlarmIndicators(ctx context.Context, id primitive.ObjectID, indicators models.FalseAlarmIndicators) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return interfaces.ErrEmergencyNotFound
	}
	emergency.FalseAlarmIndicators = &indicators
	emergency.UpdatedAt = time.Now()
	return nil
}

func (r *emergencyRepository) SetUserReported(ctx context.Context, id primitive.ObjectID, reported bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency, ok := r.emergencies[id]
	if !ok {
		return interfaces.ErrEmergencyNotFound
	}
	if emergency.FalseAlarmIndicators == nil {
		emergency.FalseAlarmIndicators = &models.FalseAlarmIndicators{}
	}
	emergency.FalseAlarmIndicators.UserReported = reported
	emergency.UpdatedAt = time.Now()
	return nil
}

func (r *emergencyRepository) CountRecentIncidents(ctx context.Context, userID primitive.ObjectID, window time.Duration) (*interfaces.IncidentHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	since := time.Now().Add(-window)
	history := &interfaces.IncidentHistory{}
	for _, emergency := range r.emergencies {
		if emergency.TriggeredBy != userID || emergency.CreatedAt.Before(since) {
			continue
		}
		history.Count++
		if emergency.Status == models.EmergencyStatusFalseAlarm {
			history.FalseAlarmCount++
		}
	}
	return history, nil
}

func (r *emergencyRepository) GetActiveEmergencies(ctx context.Context) ([]*models.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*models.Emergency
	for _, emergency := range r.emergencies {
		if !emergency.IsTerminal() {
			active = append(active, clone(emergency))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (r *emergencyRepository) GetActiveEmergencyForRide(ctx context.Context, rideID primitive.ObjectID) (*models.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, emergency := range r.emergencies {
		if emergency.RideID != nil && *emergency.RideID == rideID && !emergency.IsTerminal() {
			return clone(emergency), nil
		}
	}
	return nil, interfaces.ErrEmergencyNotFound
}

func (r *emergencyRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Emergency
	for _, emergency := range r.emergencies {
		if emergency.TriggeredBy == userID {
			matched = append(matched, clone(emergency))
		}
	}
	return paginate(matched, params)
}

func (r *emergencyRepository) GetByStatus(ctx context.Context, status models.EmergencyStatus, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Emergency
	for _, emergency := range r.emergencies {
		if emergency.Status == status {
			matched = append(matched, clone(emergency))
		}
	}
	return paginate(matched, params)
}

func paginate(emergencies []*models.Emergency, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	sort.Slice(emergencies, func(i, j int) bool {
		return emergencies[i].CreatedAt.After(emergencies[j].CreatedAt)
	})

	total := int64(len(emergencies))
	if params == nil {
		return emergencies, total, nil
	}

	start := params.GetSkip()
	if start >= len(emergencies) {
		return nil, total, nil
	}
	end := start + params.GetLimit()
	if end > len(emergencies) {
		end = len(emergencies)
	}
	return emergencies[start:end], total, nil
}

func clone(e *models.Emergency) *models.Emergency {
	c := *e
	c.LocationHistory = append([]models.Location(nil), e.LocationHistory...)
	c.EscalationTimeline = append([]models.EscalationEntry(nil), e.EscalationTimeline...)
	c.NotificationsSent = append([]models.NotificationRecord(nil), e.NotificationsSent...)
	c.Media = append([]models.MediaAttachment(nil), e.Media...)
	c.ResponseActions = append([]models.ResponseAction(nil), e.ResponseActions...)
	if e.FalseAlarmIndicators != nil {
		ind := *e.FalseAlarmIndicators
		c.FalseAlarmIndicators = &ind
	}
	if e.Resolution != nil {
		res := *e.Resolution
		c.Resolution = &res
	}
	return &c
}
