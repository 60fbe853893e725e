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
)

type contactRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewContactRepository(db *mongo.Database, cache CacheService) interfaces.EmergencyContactRepository {
	return &contactRepository{
		collection: db.Collection("emergency_contacts"),
		cache:      cache,
	}
}

func (r *contactRepository) Create(ctx context.Context, contact *models.EmergencyContact) error {
	if contact.ID.IsZero() {
		contact.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, contact)
	if err != nil {
		return fmt.Errorf("failed to create emergency contact: %w", err)
	}

	r.invalidateUserCache(ctx, contact.UserID)
	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyContact, error) {
	var contact models.EmergencyContact
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&contact)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get emergency contact: %w", err)
	}

	return &contact, nil
}

func (r *contactRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.EmergencyContact, error) {
	cacheKey := utils.CacheContactPrefix + userID.Hex()
	if r.cache != nil {
		var cached []models.EmergencyContact
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []models.EmergencyContact
	for cursor.Next(ctx) {
		var contact models.EmergencyContact
		if err := cursor.Decode(&contact); err != nil {
			return nil, fmt.Errorf("failed to decode emergency contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if r.cache != nil {
		r.cache.Set(ctx, cacheKey, contacts, 10*time.Minute)
	}

	return contacts, nil
}

func (r *contactRepository) Update(ctx context.Context, contact *models.EmergencyContact) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": contact.ID}, contact)
	if err != nil {
		return fmt.Errorf("failed to update emergency contact: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrContactNotFound
	}

	r.invalidateUserCache(ctx, contact.UserID)
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	contact, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete emergency contact: %w", err)
	}

	r.invalidateUserCache(ctx, contact.UserID)
	return nil
}

func (r *contactRepository) EmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID %q: %w", userID, err)
	}
	return r.GetByUserID(ctx, oid)
}

func (r *contactRepository) invalidateUserCache(ctx context.Context, userID primitive.ObjectID) {
	if r.cache != nil {
		r.cache.Delete(ctx, utils.CacheContactPrefix+userID.Hex())
	}
}
