package mongodb

import (
	"context"
	"fmt"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CacheService is the subset of the cache used for incident read-through.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var nonTerminalStatuses = []models.EmergencyStatus{
	models.EmergencyStatusActive,
	models.EmergencyStatusEscalated,
}

type emergencyRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewEmergencyRepository(db *mongo.Database, cache CacheService) interfaces.EmergencyRepository {
	return &emergencyRepository{
		collection: db.Collection("emergencies"),
		cache:      cache,
	}
}

// Basic CRUD operations
func (r *emergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	if emergency.ID.IsZero() {
		emergency.ID = primitive.NewObjectID()
	}
	now := time.Now()
	emergency.CreatedAt = now
	emergency.UpdatedAt = now
	emergency.Status = models.EmergencyStatusActive
	emergency.EscalationLevel = 0

	// Creation is the implicit level-0 timeline entry.
	emergency.EscalationTimeline = []models.EscalationEntry{{
		Level:       0,
		Action:      "triggered",
		TriggeredBy: models.EscalationActorUser,
		Timestamp:   now,
	}}

	_, err := r.collection.InsertOne(ctx, emergency)
	if err != nil {
		return fmt.Errorf("failed to create emergency: %w", err)
	}

	r.cacheEmergency(ctx, emergency)

	return nil
}

func (r *emergencyRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Emergency, error) {
	// Try cache first for active emergencies
	if emergency := r.getEmergencyFromCache(ctx, id.Hex()); emergency != nil {
		return emergency, nil
	}

	var emergency models.Emergency
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&emergency)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrEmergencyNotFound
		}
		return nil, fmt.Errorf("failed to get emergency: %w", err)
	}

	r.cacheEmergency(ctx, &emergency)

	return &emergency, nil
}

// Escalation operations
func (r *emergencyRepository) AdvanceLevel(ctx context.Context, id primitive.ObjectID, fromLevel int, entry models.EscalationEntry) (bool, error) {
	set := bson.M{
		"escalation_level": entry.Level,
		"updated_at":       time.Now(),
	}
	if entry.Level >= models.MaxEscalationLevel {
		set["status"] = models.EmergencyStatusEscalated
	}

	// Conditional update: the advance applies only when the incident is still
	// unresolved and the level has not moved under us. A concurrent resolve
	// wins by making the filter miss.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":              id,
			"status":           bson.M{"$in": nonTerminalStatuses},
			"escalation_level": fromLevel,
		},
		bson.M{
			"$set":  set,
			"$push": bson.M{"escalation_timeline": entry},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to advance escalation level: %w", err)
	}

	r.invalidateEmergencyCache(ctx, id.Hex())

	return result.ModifiedCount > 0, nil
}

func (r *emergencyRepository) Resolve(ctx context.Context, id primitive.ObjectID, status models.EmergencyStatus, resolution models.Resolution) (*models.Emergency, bool, error) {
	result := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":    id,
			"status": bson.M{"$in": nonTerminalStatuses},
		},
		bson.M{"$set": bson.M{
			"status":     status,
			"resolution": resolution,
			"updated_at": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var emergency models.Emergency
	err := result.Decode(&emergency)
	if err == nil {
		r.invalidateEmergencyCache(ctx, id.Hex())
		return &emergency, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to resolve emergency: %w", err)
	}

	// Either the incident does not exist or it was already terminal. The
	// latter is an expected race outcome reported as a no-op.
	r.invalidateEmergencyCache(ctx, id.Hex())
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Append-only logs
func (r *emergencyRepository) AppendNotification(ctx context.Context, id primitive.ObjectID, record models.NotificationRecord) error {
	return r.push(ctx, id, "notifications_sent", record)
}

func (r *emergencyRepository) AppendResponseAction(ctx context.Context, id primitive.ObjectID, action models.ResponseAction) error {
	return r.push(ctx, id, "response_actions", action)
}

func (r *emergencyRepository) AppendLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":  bson.M{"location": location, "updated_at": time.Now()},
			"$push": bson.M{"location_history": location},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append location: %w", err)
	}

	r.invalidateEmergencyCache(ctx, id.Hex())

	return nil
}

func (r *emergencyRepository) AttachMedia(ctx context.Context, id primitive.ObjectID, media models.MediaAttachment) error {
	return r.push(ctx, id, "media", media)
}

// Scoring
func (r *emergencyRepository) SetFalseAlarmIndicators(ctx context.Context, id primitive.ObjectID, indicators models.FalseAlarmIndicators) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"false_alarm_indicators": indicators,
			"updated_at":             time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set false alarm indicators: %w", err)
	}

	r.invalidateEmergencyCache(ctx, id.Hex())

	return nil
}

func (r *emergencyRepository) SetUserReported(ctx context.Context, id primitive.ObjectID, reported bool) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"false_alarm_indicators.user_reported": reported,
			"updated_at":                           time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set user reported flag: %w", err)
	}

	r.invalidateEmergencyCache(ctx, id.Hex())

	return nil
}

func (r *emergencyRepository) CountRecentIncidents(ctx context.Context, userID primitive.ObjectID, window time.Duration) (*interfaces.IncidentHistory, error) {
	since := time.Now().Add(-window)
	filter := bson.M{
		"triggered_by": userID,
		"created_at":   bson.M{"$gte": since},
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent incidents: %w", err)
	}

	filter["status"] = models.EmergencyStatusFalseAlarm
	falseAlarms, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count false alarms: %w", err)
	}

	return &interfaces.IncidentHistory{
		Count:           total,
		FalseAlarmCount: falseAlarms,
	}, nil
}

// Monitoring and recovery
func (r *emergencyRepository) GetActiveEmergencies(ctx context.Context) ([]*models.Emergency, error) {
	filter := bson.M{"status": bson.M{"$in": nonTerminalStatuses}}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active emergencies: %w", err)
	}
	defer cursor.Close(ctx)

	var emergencies []*models.Emergency
	for cursor.Next(ctx) {
		var emergency models.Emergency
		if err := cursor.Decode(&emergency); err != nil {
			return nil, fmt.Errorf("failed to decode emergency: %w", err)
		}
		emergencies = append(emergencies, &emergency)
	}

	return emergencies, nil
}

func (r *emergencyRepository) GetActiveEmergencyForRide(ctx context.Context, rideID primitive.ObjectID) (*models.Emergency, error) {
	var emergency models.Emergency
	err := r.collection.FindOne(ctx, bson.M{
		"ride_id": rideID,
		"status":  bson.M{"$in": nonTerminalStatuses},
	}).Decode(&emergency)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrEmergencyNotFound
		}
		return nil, fmt.Errorf("failed to get active emergency for ride: %w", err)
	}

	return &emergency, nil
}

// Admin surface
func (r *emergencyRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	filter := bson.M{"triggered_by": userID}
	return r.findEmergenciesWithFilter(ctx, filter, params)
}

func (r *emergencyRepository) GetByStatus(ctx context.Context, status models.EmergencyStatus, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	filter := bson.M{"status": status}
	return r.findEmergenciesWithFilter(ctx, filter, params)
}

// Helper methods
func (r *emergencyRepository) push(ctx context.Context, id primitive.ObjectID, field string, value interface{}) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{field: value},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", field, err)
	}

	r.invalidateEmergencyCache(ctx, id.Hex())

	return nil
}

func (r *emergencyRepository) findEmergenciesWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.Emergency, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count emergencies: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find emergencies: %w", err)
	}
	defer cursor.Close(ctx)

	var emergencies []*models.Emergency
	for cursor.Next(ctx) {
		var emergency models.Emergency
		if err := cursor.Decode(&emergency); err != nil {
			return nil, 0, fmt.Errorf("failed to decode emergency: %w", err)
		}
		emergencies = append(emergencies, &emergency)
	}

	return emergencies, total, nil
}

// Cache operations
func (r *emergencyRepository) cacheEmergency(ctx context.Context, emergency *models.Emergency) {
	if r.cache != nil && !emergency.IsTerminal() {
		cacheKey := fmt.Sprintf("emergency:%s", emergency.ID.Hex())
		r.cache.Set(ctx, cacheKey, emergency, 5*time.Minute) // Shorter TTL for emergencies
	}
}

func (r *emergencyRepository) getEmergencyFromCache(ctx context.Context, emergencyID string) *models.Emergency {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("emergency:%s", emergencyID)
	var emergency models.Emergency
	err := r.cache.Get(ctx, cacheKey, &emergency)
	if err != nil {
		return nil
	}

	return &emergency
}

func (r *emergencyRepository) invalidateEmergencyCache(ctx context.Context, emergencyID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("emergency:%s", emergencyID)
		r.cache.Delete(ctx, cacheKey)
	}
}
