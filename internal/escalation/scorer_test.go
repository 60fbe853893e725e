package escalation

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

type fixedHistory struct {
	history interfaces.IncidentHistory
	err     error
}

func (f *fixedHistory) CountRecentIncidents(ctx context.Context, userID primitive.ObjectID, window time.Duration) (*interfaces.IncidentHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	h := f.history
	return &h, nil
}

func resolvedEmergency(after time.Duration) *models.Emergency {
	created := time.Now().Add(-time.Hour)
	return &models.Emergency{
		ID:          primitive.NewObjectID(),
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Status:      models.EmergencyStatusResolved,
		CreatedAt:   created,
		Resolution: &models.Resolution{
			Outcome:    "safe",
			ResolvedAt: created.Add(after),
		},
	}
}

func TestScorerRefusesActiveEmergency(t *testing.T) {
	scorer := NewScorer(&fixedHistory{})

	emergency := resolvedEmergency(30 * time.Second)
	emergency.Status = models.EmergencyStatusActive

	indicators, err := scorer.Score(context.Background(), emergency)
	assert.Error(t, err)
	assert.Nil(t, indicators)
}

func TestScorerQuickResolution(t *testing.T) {
	scorer := NewScorer(&fixedHistory{})

	indicators, err := scorer.Score(context.Background(), resolvedEmergency(30*time.Second))
	require.NoError(t, err)
	assert.True(t, indicators.QuickResolution)
	assert.Equal(t, 30, indicators.Score)
	assert.False(t, indicators.Flagged)

	indicators, err = scorer.Score(context.Background(), resolvedEmergency(90*time.Second))
	require.NoError(t, err)
	assert.False(t, indicators.QuickResolution)
	assert.Equal(t, 0, indicators.Score)
}

func TestScorerNoResponse(t *testing.T) {
	scorer := NewScorer(&fixedHistory{})

	emergency := resolvedEmergency(10 * time.Minute)
	emergency.NotificationsSent = []models.NotificationRecord{
		{Recipient: "+15550001111", Channel: models.NotificationChannelSMS, Level: 1, Status: models.DeliveryStatusSent},
	}

	indicators, err := scorer.Score(context.Background(), emergency)
	require.NoError(t, err)
	assert.True(t, indicators.NoResponse)
	assert.Equal(t, 20, indicators.Score)

	// An acknowledged emergency is not a no-response case.
	emergency.ResponseActions = []models.ResponseAction{
		{ActorID: primitive.NewObjectID(), Action: "contacted_rider"},
	}
	indicators, err = scorer.Score(context.Background(), emergency)
	require.NoError(t, err)
	assert.False(t, indicators.NoResponse)
	assert.Equal(t, 0, indicators.Score)
}

func TestScorerRepeatedTriggers(t *testing.T) {
	scorer := NewScorer(&fixedHistory{history: interfaces.IncidentHistory{Count: 3}})

	indicators, err := scorer.Score(context.Background(), resolvedEmergency(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, indicators.RepeatedTriggers)
	assert.Equal(t, 25, indicators.Score)

	// Two prior false alarms trip the indicator even below three triggers.
	scorer = NewScorer(&fixedHistory{history: interfaces.IncidentHistory{Count: 2, FalseAlarmCount: 2}})
	indicators, err = scorer.Score(context.Background(), resolvedEmergency(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, indicators.RepeatedTriggers)

	scorer = NewScorer(&fixedHistory{history: interfaces.IncidentHistory{Count: 2, FalseAlarmCount: 1}})
	indicators, err = scorer.Score(context.Background(), resolvedEmergency(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, indicators.RepeatedTriggers)
}

func TestScorerFlagsAtThreshold(t *testing.T) {
	scorer := NewScorer(&fixedHistory{history: interfaces.IncidentHistory{Count: 5}})

	emergency := resolvedEmergency(20 * time.Second)
	emergency.FalseAlarmIndicators = &models.FalseAlarmIndicators{UserReported: true}

	indicators, err := scorer.Score(context.Background(), emergency)
	require.NoError(t, err)
	assert.True(t, indicators.QuickResolution)
	assert.True(t, indicators.RepeatedTriggers)
	assert.True(t, indicators.UserReported)
	assert.Equal(t, 80, indicators.Score)
	assert.True(t, indicators.Flagged)
}

func TestScorerIsDeterministic(t *testing.T) {
	scorer := NewScorer(&fixedHistory{history: interfaces.IncidentHistory{Count: 3}})
	emergency := resolvedEmergency(45 * time.Second)

	first, err := scorer.Score(context.Background(), emergency)
	require.NoError(t, err)
	second, err := scorer.Score(context.Background(), emergency)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.QuickResolution, second.QuickResolution)
	assert.Equal(t, first.RepeatedTriggers, second.RepeatedTriggers)
	assert.Equal(t, first.Flagged, second.Flagged)
}
