package interfaces

import (
	"context"
	"errors"

	"rideguard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrContactNotFound is returned when no contact matches the given ID.
var ErrContactNotFound = errors.New("emergency contact not found")

type EmergencyContactRepository interface {
	Create(ctx context.Context, contact *models.EmergencyContact) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyContact, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.EmergencyContact, error)
	Update(ctx context.Context, contact *models.EmergencyContact) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// EmergencyContacts adapts GetByUserID to the notification directory,
	// which addresses users by hex ID.
	EmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
}
