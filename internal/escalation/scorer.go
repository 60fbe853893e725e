package escalation

import (
	"context"
	"fmt"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Scoring weights and thresholds. The score is a review-prioritization
// heuristic for admins; it never resolves or escalates anything on its own.
const (
	QuickResolutionThreshold = time.Minute
	RepeatedTriggerWindow    = 24 * time.Hour

	repeatedTriggerCount    = 3
	repeatedFalseAlarmCount = 2

	quickResolutionPoints  = 30
	noResponsePoints       = 20
	repeatedTriggersPoints = 25
	userReportedPoints     = 25

	flagThreshold = 50
)

// HistoryLookup answers the repeated-trigger question for a user. The
// incident store implements it; tests inject fixed answers.
type HistoryLookup interface {
	CountRecentIncidents(ctx context.Context, userID primitive.ObjectID, window time.Duration) (*interfaces.IncidentHistory, error)
}

// Scorer computes false-alarm indicators from an emergency's recorded facts.
// Given the same record and history answer it always produces the same score.
type Scorer struct {
	history HistoryLookup
}

func NewScorer(history HistoryLookup) *Scorer {
	return &Scorer{history: history}
}

// Score evaluates a terminal emergency. It reads only what is already
// recorded on the aggregate plus the injected history lookup, and never
// touches status or level.
func (s *Scorer) Score(ctx context.Context, emergency *models.Emergency) (*models.FalseAlarmIndicators, error) {
	if !emergency.IsTerminal() {
		return nil, fmt.Errorf("emergency %s is not terminal, refusing to score", emergency.ID.Hex())
	}

	indicators := &models.FalseAlarmIndicators{
		ScoredAt: time.Now(),
	}

	if emergency.Resolution != nil &&
		emergency.Resolution.ResolvedAt.Sub(emergency.CreatedAt) < QuickResolutionThreshold {
		indicators.QuickResolution = true
		indicators.Score += quickResolutionPoints
	}

	if len(emergency.NotificationsSent) > 0 && len(emergency.ResponseActions) == 0 {
		indicators.NoResponse = true
		indicators.Score += noResponsePoints
	}

	history, err := s.history.CountRecentIncidents(ctx, emergency.TriggeredBy, RepeatedTriggerWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to look up incident history: %w", err)
	}
	if history.Count >= repeatedTriggerCount || history.FalseAlarmCount >= repeatedFalseAlarmCount {
		indicators.RepeatedTriggers = true
		indicators.Score += repeatedTriggersPoints
	}

	// The manual flag survives from admin/user review if already set.
	if emergency.FalseAlarmIndicators != nil && emergency.FalseAlarmIndicators.UserReported {
		indicators.UserReported = true
		indicators.Score += userReportedPoints
	}

	indicators.Flagged = indicators.Score >= flagThreshold

	return indicators, nil
}
