package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rideguard/internal/escalation"
	"rideguard/internal/models"
	"rideguard/internal/repositories/memory"
	"rideguard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubGateway struct {
	failFor  string
	messages []Message
}

func (g *stubGateway) Send(ctx context.Context, recipient Recipient, message Message) (*DeliveryResult, error) {
	g.messages = append(g.messages, message)
	if recipient.Address == g.failFor {
		return nil, errors.New("carrier rejected the message")
	}
	return &DeliveryResult{MessageID: "msg-" + recipient.Address, Status: models.DeliveryStatusSent}, nil
}

type stubDirectory struct {
	recipients []Recipient
	err        error
}

func (d *stubDirectory) Resolve(ctx context.Context, emergency *models.Emergency, class escalation.RecipientClass) ([]Recipient, error) {
	return d.recipients, d.err
}

type countingDispatchClient struct {
	calls int
	err   error
}

func (c *countingDispatchClient) RequestDispatch(ctx context.Context, emergency *models.Emergency) error {
	c.calls++
	return c.err
}

func TestNotifyLevelRecordsEveryAttempt(t *testing.T) {
	repo := memory.NewEmergencyRepository()
	gateway := &stubGateway{failFor: "+15550002222"}
	directory := &stubDirectory{recipients: []Recipient{
		{Name: "Ana", Channel: models.NotificationChannelSMS, Address: "+15550001111"},
		{Name: "Ben", Channel: models.NotificationChannelSMS, Address: "+15550002222"},
	}}

	dispatcher := NewDispatcher(repo, directory, gateway, &countingDispatchClient{}, nil, logger.NewNopLogger())

	emergency := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(37.7749, -122.4194),
	}
	require.NoError(t, repo.Create(context.Background(), emergency))

	level := escalation.DefaultPolicy().Levels[0]
	dispatcher.NotifyLevel(context.Background(), emergency, level)

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.Len(t, stored.NotificationsSent, 2)

	byRecipient := map[string]models.NotificationRecord{}
	for _, record := range stored.NotificationsSent {
		byRecipient[record.Recipient] = record
		assert.Equal(t, 1, record.Level)
		assert.Equal(t, models.NotificationChannelSMS, record.Channel)
	}

	assert.Equal(t, models.DeliveryStatusSent, byRecipient["+15550001111"].Status)
	assert.Equal(t, "msg-+15550001111", byRecipient["+15550001111"].MessageID)

	failed := byRecipient["+15550002222"]
	assert.Equal(t, models.DeliveryStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "carrier rejected")
}

func TestNotifyLevelFillsTemplatePlaceholders(t *testing.T) {
	repo := memory.NewEmergencyRepository()
	gateway := &stubGateway{}
	directory := &stubDirectory{recipients: []Recipient{
		{Name: "Ops", Channel: models.NotificationChannelEmail, Address: "ops@example.com"},
	}}

	dispatcher := NewDispatcher(repo, directory, gateway, &countingDispatchClient{}, nil, logger.NewNopLogger())

	emergency := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeMedical,
		Location: models.Location{
			Type:        "Point",
			Coordinates: []float64{-122.4194, 37.7749},
			Address:     "123 Market St",
			Timestamp:   time.Now(),
		},
	}
	require.NoError(t, repo.Create(context.Background(), emergency))

	level := escalation.Level{
		Level:      2,
		Deadline:   5 * time.Minute,
		Recipients: escalation.RecipientPlatformAdmins,
		Template:   "Unresolved emergency {id} ({type}) near {address}.",
	}
	dispatcher.NotifyLevel(context.Background(), emergency, level)

	require.Len(t, gateway.messages, 1)
	body := gateway.messages[0].Body
	assert.Contains(t, body, emergency.ID.Hex())
	assert.Contains(t, body, "medical")
	assert.Contains(t, body, "123 Market St")
	assert.False(t, strings.Contains(body, "{"), "unreplaced placeholder in %q", body)
	assert.Equal(t, emergency.ID.Hex(), gateway.messages[0].Data["emergency_id"])
}

func TestNotifyLevelRecordsDirectoryFailure(t *testing.T) {
	repo := memory.NewEmergencyRepository()
	dispatcher := NewDispatcher(repo, &stubDirectory{err: errors.New("lookup down")}, &stubGateway{}, &countingDispatchClient{}, nil, logger.NewNopLogger())

	emergency := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(0, 0),
	}
	require.NoError(t, repo.Create(context.Background(), emergency))

	// The lookup failure is absorbed, but the level still leaves a failed
	// attempt in the notification log.
	dispatcher.NotifyLevel(context.Background(), emergency, escalation.DefaultPolicy().Levels[0])

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.Len(t, stored.NotificationsSent, 1)
	record := stored.NotificationsSent[0]
	assert.Equal(t, string(escalation.RecipientEmergencyContacts), record.Recipient)
	assert.Equal(t, 1, record.Level)
	assert.Equal(t, models.DeliveryStatusFailed, record.Status)
	assert.Contains(t, record.Error, "lookup down")
}

func TestNotifyLevelRecordsEmptyRecipientSet(t *testing.T) {
	repo := memory.NewEmergencyRepository()
	dispatcher := NewDispatcher(repo, &stubDirectory{}, &stubGateway{}, &countingDispatchClient{}, nil, logger.NewNopLogger())

	emergency := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(0, 0),
	}
	require.NoError(t, repo.Create(context.Background(), emergency))

	// A user with no emergency contacts still gets a level 1 log entry, so
	// the aggregate never shows an escalated level with an empty log and the
	// no-response indicator stays reachable.
	dispatcher.NotifyLevel(context.Background(), emergency, escalation.DefaultPolicy().Levels[0])

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.Len(t, stored.NotificationsSent, 1)
	record := stored.NotificationsSent[0]
	assert.Equal(t, string(escalation.RecipientEmergencyContacts), record.Recipient)
	assert.Equal(t, models.DeliveryStatusFailed, record.Status)
	assert.Equal(t, "no recipients resolved", record.Error)
}

func TestRequestDispatchAbsorbsClientFailure(t *testing.T) {
	repo := memory.NewEmergencyRepository()
	client := &countingDispatchClient{err: errors.New("dispatch endpoint unreachable")}
	dispatcher := NewDispatcher(repo, &stubDirectory{}, &stubGateway{}, client, nil, logger.NewNopLogger())

	emergency := &models.Emergency{
		ID:          primitive.NewObjectID(),
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
	}

	dispatcher.RequestDispatch(context.Background(), emergency)
	assert.Equal(t, 1, client.calls)
}

func TestStaticDirectoryResolvesClasses(t *testing.T) {
	admins := []Recipient{{Name: "Admin", Channel: models.NotificationChannelEmail, Address: "admin@example.com"}}
	dispatch := []Recipient{{Name: "Dispatch", Channel: models.NotificationChannelSMS, Address: "+15559110000"}}

	directory := NewStaticDirectory(nil, admins, nil, dispatch)
	emergency := &models.Emergency{TriggeredBy: primitive.NewObjectID()}

	resolved, err := directory.Resolve(context.Background(), emergency, escalation.RecipientPlatformAdmins)
	require.NoError(t, err)
	assert.Equal(t, admins, resolved)

	resolved, err = directory.Resolve(context.Background(), emergency, escalation.RecipientDispatch)
	require.NoError(t, err)
	assert.Equal(t, dispatch, resolved)

	// No contact lookup configured means no contact recipients, not an error.
	resolved, err = directory.Resolve(context.Background(), emergency, escalation.RecipientEmergencyContacts)
	require.NoError(t, err)
	assert.Empty(t, resolved)

	_, err = directory.Resolve(context.Background(), emergency, escalation.RecipientClass("unknown"))
	assert.Error(t, err)
}
