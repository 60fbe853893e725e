package memory

import (
	"context"
	"testing"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedEmergency(t *testing.T, repo interfaces.EmergencyRepository) *models.Emergency {
	t.Helper()

	emergency := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(37.7749, -122.4194),
	}
	require.NoError(t, repo.Create(context.Background(), emergency))
	return emergency
}

func TestAdvanceLevelRequiresExpectedLevel(t *testing.T) {
	repo := NewEmergencyRepository()
	emergency := seedEmergency(t, repo)

	entry := models.EscalationEntry{Level: 1, Action: "escalated", TriggeredBy: models.EscalationActorAuto, Timestamp: time.Now()}

	advanced, err := repo.AdvanceLevel(context.Background(), emergency.ID, 0, entry)
	require.NoError(t, err)
	assert.True(t, advanced)

	// A second advance from the same expected level loses.
	advanced, err = repo.AdvanceLevel(context.Background(), emergency.ID, 0, entry)
	require.NoError(t, err)
	assert.False(t, advanced)

	// Skipping a level is refused outright.
	entry.Level = 3
	advanced, err = repo.AdvanceLevel(context.Background(), emergency.ID, 2, entry)
	require.NoError(t, err)
	assert.False(t, advanced)

	current, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.EscalationLevel)
}

func TestAdvanceLevelRefusesTerminal(t *testing.T) {
	repo := NewEmergencyRepository()
	emergency := seedEmergency(t, repo)

	_, applied, err := repo.Resolve(context.Background(), emergency.ID, models.EmergencyStatusResolved, models.Resolution{Outcome: "safe", ResolvedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	entry := models.EscalationEntry{Level: 1, Action: "escalated", TriggeredBy: models.EscalationActorAuto, Timestamp: time.Now()}
	advanced, err := repo.AdvanceLevel(context.Background(), emergency.ID, 0, entry)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestAdvanceToFinalLevelMarksEscalated(t *testing.T) {
	repo := NewEmergencyRepository()
	emergency := seedEmergency(t, repo)

	for level := 1; level <= models.MaxEscalationLevel; level++ {
		entry := models.EscalationEntry{Level: level, Action: "escalated", TriggeredBy: models.EscalationActorAuto, Timestamp: time.Now()}
		advanced, err := repo.AdvanceLevel(context.Background(), emergency.ID, level-1, entry)
		require.NoError(t, err)
		require.True(t, advanced)
	}

	current, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusEscalated, current.Status)
	assert.True(t, current.IsTerminal())
}

func TestResolveOnlyAppliesOnce(t *testing.T) {
	repo := NewEmergencyRepository()
	emergency := seedEmergency(t, repo)

	first, applied, err := repo.Resolve(context.Background(), emergency.ID, models.EmergencyStatusFalseAlarm, models.Resolution{Outcome: "false_alarm", ResolvedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.EmergencyStatusFalseAlarm, first.Status)

	second, applied, err := repo.Resolve(context.Background(), emergency.ID, models.EmergencyStatusResolved, models.Resolution{Outcome: "safe", ResolvedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.EmergencyStatusFalseAlarm, second.Status)
}

func TestCountRecentIncidentsWindow(t *testing.T) {
	repo := NewEmergencyRepository()
	userID := primitive.NewObjectID()

	recent := &models.Emergency{TriggeredBy: userID, Type: models.EmergencyTypeSOS, Location: models.NewPoint(0, 0)}
	require.NoError(t, repo.Create(context.Background(), recent))

	old := &models.Emergency{
		TriggeredBy: userID,
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(0, 0),
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), old))

	_, applied, err := repo.Resolve(context.Background(), recent.ID, models.EmergencyStatusFalseAlarm, models.Resolution{Outcome: "false_alarm", ResolvedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	history, err := repo.CountRecentIncidents(context.Background(), userID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), history.Count)
	assert.Equal(t, int64(1), history.FalseAlarmCount)
}

func TestGetActiveEmergenciesExcludesTerminal(t *testing.T) {
	repo := NewEmergencyRepository()

	active := seedEmergency(t, repo)
	closed := seedEmergency(t, repo)

	_, applied, err := repo.Resolve(context.Background(), closed.ID, models.EmergencyStatusCancelled, models.Resolution{Outcome: "cancelled", ResolvedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	list, err := repo.GetActiveEmergencies(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	repo := NewEmergencyRepository()
	emergency := seedEmergency(t, repo)

	loaded, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	loaded.Status = models.EmergencyStatusResolved
	loaded.EscalationTimeline = append(loaded.EscalationTimeline, models.EscalationEntry{Level: 1})

	fresh, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusActive, fresh.Status)
	assert.Len(t, fresh.EscalationTimeline, 1)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewEmergencyRepository()

	_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, interfaces.ErrEmergencyNotFound)
}
