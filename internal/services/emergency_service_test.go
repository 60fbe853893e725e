package services

import (
	"context"
	"testing"
	"time"

	"rideguard/internal/escalation"
	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/repositories/memory"
	"rideguard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type noopNotifier struct{}

func (noopNotifier) NotifyLevel(ctx context.Context, emergency *models.Emergency, level escalation.Level) {
}
func (noopNotifier) RequestDispatch(ctx context.Context, emergency *models.Emergency) {}

// newTestService wires the service over in-memory storage with deadlines far
// enough out that no timer fires during a test.
func newTestService(t *testing.T) (EmergencyService, interfaces.EmergencyRepository, *escalation.Scheduler) {
	t.Helper()

	repo := memory.NewEmergencyRepository()

	policy := escalation.DefaultPolicy()
	for i := range policy.Levels {
		policy.Levels[i].Deadline = time.Hour * time.Duration(i+1)
	}

	scheduler, err := escalation.NewScheduler(repo, policy, noopNotifier{}, logger.NewNopLogger())
	require.NoError(t, err)

	scorer := escalation.NewScorer(repo)
	service := NewEmergencyService(repo, scheduler, scorer, nil, nil, logger.NewNopLogger())
	return service, repo, scheduler
}

func triggerRequest() *models.TriggerEmergencyRequest {
	return &models.TriggerEmergencyRequest{
		Type:        models.EmergencyTypeSOS,
		Description: "rider pressed the SOS button",
		Location:    models.NewPoint(37.7749, -122.4194),
	}
}

func TestTriggerEmergencyStartsMonitoring(t *testing.T) {
	service, repo, scheduler := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)
	defer scheduler.StopMonitoring(emergency.ID)

	assert.Equal(t, models.EmergencyStatusActive, emergency.Status)
	assert.Equal(t, 0, emergency.EscalationLevel)
	assert.Equal(t, userID, emergency.TriggeredBy)
	assert.True(t, scheduler.Monitoring(emergency.ID))

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.Len(t, stored.EscalationTimeline, 1)
	assert.Equal(t, "triggered", stored.EscalationTimeline[0].Action)
	assert.Equal(t, models.EscalationActorUser, stored.EscalationTimeline[0].TriggeredBy)
}

func TestTriggerEmergencyRejectsBadRideID(t *testing.T) {
	service, _, _ := newTestService(t)

	request := triggerRequest()
	bad := "not-an-object-id"
	request.RideID = &bad

	_, err := service.TriggerEmergency(context.Background(), primitive.NewObjectID(), request)
	assert.Error(t, err)
}

func TestResolveEmergencyIsIdempotent(t *testing.T) {
	service, _, scheduler := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	resolved, applied, err := service.ResolveEmergency(context.Background(), emergency.ID, userID, &models.ResolveEmergencyRequest{
		Outcome: "safe",
		Notes:   "rider confirmed safe",
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.EmergencyStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, "safe", resolved.Resolution.Outcome)
	assert.False(t, scheduler.Monitoring(emergency.ID))

	// A second resolve is a soft no-op; the first resolution stands.
	again, applied, err := service.ResolveEmergency(context.Background(), emergency.ID, primitive.NewObjectID(), &models.ResolveEmergencyRequest{
		Outcome: "cancelled",
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.EmergencyStatusResolved, again.Status)
	assert.Equal(t, "safe", again.Resolution.Outcome)
}

func TestResolveEmergencyOutcomeMapsToStatus(t *testing.T) {
	tests := []struct {
		outcome string
		status  models.EmergencyStatus
	}{
		{"safe", models.EmergencyStatusResolved},
		{"false_alarm", models.EmergencyStatusFalseAlarm},
		{"cancelled", models.EmergencyStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			service, _, _ := newTestService(t)
			userID := primitive.NewObjectID()

			emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
			require.NoError(t, err)

			resolved, applied, err := service.ResolveEmergency(context.Background(), emergency.ID, userID, &models.ResolveEmergencyRequest{Outcome: tt.outcome})
			require.NoError(t, err)
			require.True(t, applied)
			assert.Equal(t, tt.status, resolved.Status)
		})
	}
}

func TestResolveEmergencyNotFound(t *testing.T) {
	service, _, _ := newTestService(t)

	_, _, err := service.ResolveEmergency(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), &models.ResolveEmergencyRequest{Outcome: "safe"})
	assert.ErrorIs(t, err, interfaces.ErrEmergencyNotFound)
}

func TestResolveEmergencyScoresQuickResolution(t *testing.T) {
	service, repo, _ := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	_, applied, err := service.ResolveEmergency(context.Background(), emergency.ID, userID, &models.ResolveEmergencyRequest{Outcome: "safe"})
	require.NoError(t, err)
	require.True(t, applied)

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FalseAlarmIndicators)
	assert.True(t, stored.FalseAlarmIndicators.QuickResolution)
	assert.GreaterOrEqual(t, stored.FalseAlarmIndicators.Score, 30)
}

func TestAcknowledgeEmergency(t *testing.T) {
	service, repo, _ := newTestService(t)
	userID := primitive.NewObjectID()
	adminID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	err = service.AcknowledgeEmergency(context.Background(), emergency.ID, adminID, &models.AcknowledgeEmergencyRequest{
		Action: "contacted_rider",
		Notes:  "spoke with rider, all clear",
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.Len(t, stored.ResponseActions, 1)
	assert.Equal(t, adminID, stored.ResponseActions[0].ActorID)
	assert.Equal(t, "contacted_rider", stored.ResponseActions[0].Action)

	err = service.AcknowledgeEmergency(context.Background(), primitive.NewObjectID(), adminID, &models.AcknowledgeEmergencyRequest{Action: "contacted_rider"})
	assert.ErrorIs(t, err, interfaces.ErrEmergencyNotFound)
}

func TestUpdateLocationAppendsHistory(t *testing.T) {
	service, repo, _ := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	next := models.NewPoint(37.7812, -122.4101)
	require.NoError(t, service.UpdateLocation(context.Background(), emergency.ID, next))

	stored, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.Len(t, stored.LocationHistory, 1)
	assert.InDelta(t, 37.7812, stored.Location.Latitude(), 1e-9)
	assert.InDelta(t, -122.4101, stored.Location.Longitude(), 1e-9)
}

func TestFlagFalseAlarmRescoresTerminal(t *testing.T) {
	service, _, _ := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	// Flagging an active emergency records the report but does not score.
	flagged, err := service.FlagFalseAlarm(context.Background(), emergency.ID, true)
	require.NoError(t, err)
	require.NotNil(t, flagged.FalseAlarmIndicators)
	assert.True(t, flagged.FalseAlarmIndicators.UserReported)
	assert.Zero(t, flagged.FalseAlarmIndicators.Score)

	_, applied, err := service.ResolveEmergency(context.Background(), emergency.ID, userID, &models.ResolveEmergencyRequest{Outcome: "false_alarm"})
	require.NoError(t, err)
	require.True(t, applied)

	// After the terminal transition the report contributes to the score.
	final, err := service.GetEmergency(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.NotNil(t, final.FalseAlarmIndicators)
	assert.True(t, final.FalseAlarmIndicators.UserReported)
	assert.GreaterOrEqual(t, final.FalseAlarmIndicators.Score, 25)
}

func TestUnflagFalseAlarmRescoresTerminal(t *testing.T) {
	service, _, _ := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	_, err = service.FlagFalseAlarm(context.Background(), emergency.ID, true)
	require.NoError(t, err)

	_, applied, err := service.ResolveEmergency(context.Background(), emergency.ID, userID, &models.ResolveEmergencyRequest{Outcome: "safe"})
	require.NoError(t, err)
	require.True(t, applied)

	flagged, err := service.GetEmergency(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.NotNil(t, flagged.FalseAlarmIndicators)
	require.True(t, flagged.FalseAlarmIndicators.UserReported)
	flaggedScore := flagged.FalseAlarmIndicators.Score

	// Withdrawing the report rescores without the 25 user-reported points.
	unflagged, err := service.FlagFalseAlarm(context.Background(), emergency.ID, false)
	require.NoError(t, err)
	require.NotNil(t, unflagged.FalseAlarmIndicators)
	assert.False(t, unflagged.FalseAlarmIndicators.UserReported)
	assert.Equal(t, flaggedScore-25, unflagged.FalseAlarmIndicators.Score)
}

func TestAttachMediaWithoutStorage(t *testing.T) {
	service, _, _ := newTestService(t)
	userID := primitive.NewObjectID()

	emergency, err := service.TriggerEmergency(context.Background(), userID, triggerRequest())
	require.NoError(t, err)

	_, err = service.AttachMedia(context.Background(), emergency.ID, userID, "photo", "scene.jpg", "image/jpeg", 1024, nil)
	assert.Error(t, err)
}
