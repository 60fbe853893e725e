package memory

import (
	"context"
	"fmt"
	"sync"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contactRepository struct {
	mu       sync.RWMutex
	contacts map[primitive.ObjectID]*models.EmergencyContact
}

func NewContactRepository() interfaces.EmergencyContactRepository {
	return &contactRepository{
		contacts: make(map[primitive.ObjectID]*models.EmergencyContact),
	}
}

func (r *contactRepository) Create(ctx context.Context, contact *models.EmergencyContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if contact.ID.IsZero() {
		contact.ID = primitive.NewObjectID()
	}
	clone := *contact
	r.contacts[contact.ID] = &clone
	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyContact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contact, ok := r.contacts[id]
	if !ok {
		return nil, interfaces.ErrContactNotFound
	}
	clone := *contact
	return &clone, nil
}

func (r *contactRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.EmergencyContact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var contacts []models.EmergencyContact
	for _, contact := range r.contacts {
		if contact.UserID == userID {
			contacts = append(contacts, *contact)
		}
	}
	return contacts, nil
}

func (r *contactRepository) Update(ctx context.Context, contact *models.EmergencyContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contacts[contact.ID]; !ok {
		return interfaces.ErrContactNotFound
	}
	clone := *contact
	r.contacts[contact.ID] = &clone
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contacts[id]; !ok {
		return interfaces.ErrContactNotFound
	}
	delete(r.contacts, id)
	return nil
}

func (r *contactRepository) EmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID %q: %w", userID, err)
	}
	return r.GetByUserID(ctx, oid)
}
