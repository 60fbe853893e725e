package notifications

import (
	"context"
	"fmt"

	"rideguard/internal/escalation"
	"rideguard/internal/models"
)

// ContactLookup resolves a user's emergency contacts. Contact storage is
// owned by the profile system, not the engine.
type ContactLookup interface {
	EmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
}

// Directory maps a recipient class to concrete recipients for one emergency.
type Directory interface {
	Resolve(ctx context.Context, emergency *models.Emergency, class escalation.RecipientClass) ([]Recipient, error)
}

// StaticDirectory resolves admins, authorities and dispatch from
// configuration, and emergency contacts through the injected lookup.
// Contacts get SMS plus push when a device token is known; configured
// recipients get the channel their entry names.
type StaticDirectory struct {
	contacts    ContactLookup
	admins      []Recipient
	authorities []Recipient
	dispatch    []Recipient
}

func NewStaticDirectory(contacts ContactLookup, admins, authorities, dispatch []Recipient) *StaticDirectory {
	return &StaticDirectory{
		contacts:    contacts,
		admins:      admins,
		authorities: authorities,
		dispatch:    dispatch,
	}
}

func (d *StaticDirectory) Resolve(ctx context.Context, emergency *models.Emergency, class escalation.RecipientClass) ([]Recipient, error) {
	switch class {
	case escalation.RecipientEmergencyContacts:
		return d.resolveContacts(ctx, emergency)
	case escalation.RecipientPlatformAdmins:
		return d.admins, nil
	case escalation.RecipientAuthorities:
		return d.authorities, nil
	case escalation.RecipientDispatch:
		return d.dispatch, nil
	default:
		return nil, fmt.Errorf("unknown recipient class: %s", class)
	}
}

func (d *StaticDirectory) resolveContacts(ctx context.Context, emergency *models.Emergency) ([]Recipient, error) {
	if d.contacts == nil {
		return nil, nil
	}

	contacts, err := d.contacts.EmergencyContacts(ctx, emergency.TriggeredBy.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to look up emergency contacts: %w", err)
	}

	var recipients []Recipient
	for _, contact := range contacts {
		if contact.Phone != "" {
			recipients = append(recipients, Recipient{
				UserID:  contact.UserID,
				Name:    contact.Name,
				Channel: models.NotificationChannelSMS,
				Address: contact.Phone,
			})
		}
		if contact.DeviceToken != "" {
			recipients = append(recipients, Recipient{
				UserID:  contact.UserID,
				Name:    contact.Name,
				Channel: models.NotificationChannelPush,
				Address: contact.DeviceToken,
			})
		}
	}

	return recipients, nil
}
