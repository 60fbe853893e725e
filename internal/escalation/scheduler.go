package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier fans out a level's notifications and performs the terminal
// dispatch action. Implementations must record every delivery attempt on the
// incident; failures are theirs to absorb, the scheduler never retries.
type Notifier interface {
	NotifyLevel(ctx context.Context, emergency *models.Emergency, level Level)
	RequestDispatch(ctx context.Context, emergency *models.Emergency)
}

// Scheduler drives active emergencies through the escalation timetable. Each
// monitored incident owns one goroutine walking its pending levels; the
// registry only tracks membership, so unrelated incidents never serialize on
// each other. All status checks go through the repository's conditional
// updates, which is what makes a concurrent resolution win every race.
type Scheduler struct {
	repo     interfaces.EmergencyRepository
	policy   *Policy
	notifier Notifier
	logger   *logger.Logger

	mu       sync.Mutex
	monitors map[string]*monitor
}

type monitor struct {
	id       primitive.ObjectID
	stop     chan struct{}
	stopOnce sync.Once
}

func (m *monitor) cancel() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func NewScheduler(repo interfaces.EmergencyRepository, policy *Policy, notifier Notifier, log *logger.Logger) (*Scheduler, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escalation policy: %w", err)
	}

	return &Scheduler{
		repo:     repo,
		policy:   policy,
		notifier: notifier,
		logger:   log,
		monitors: make(map[string]*monitor),
	}, nil
}

// StartMonitoring begins tracking an emergency. Deadlines are anchored to the
// incident's persisted creation time, so starting late (process restart)
// resumes with the correct remaining deadlines and fires overdue levels
// immediately, in order. Returns false without error when the emergency is
// already terminal or already monitored.
func (s *Scheduler) StartMonitoring(ctx context.Context, id primitive.ObjectID) (bool, error) {
	emergency, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if emergency.IsTerminal() {
		return false, nil
	}

	pending := s.policy.LevelsAbove(emergency.EscalationLevel)
	if len(pending) == 0 {
		return false, nil
	}

	s.mu.Lock()
	if _, exists := s.monitors[id.Hex()]; exists {
		s.mu.Unlock()
		return false, nil
	}
	m := &monitor{id: id, stop: make(chan struct{})}
	s.monitors[id.Hex()] = m
	s.mu.Unlock()

	// Re-check now that the monitor is registered. A resolution landing
	// between the first read and the registry insert called StopMonitoring
	// before this monitor existed, so it must be torn down here.
	current, err := s.repo.GetByID(ctx, id)
	if err != nil || current.IsTerminal() {
		m.cancel()
		s.remove(m)
		return false, err
	}

	s.logger.WithEmergencyID(id).WithFields(map[string]interface{}{
		"level":   emergency.EscalationLevel,
		"pending": len(pending),
	}).Info("Escalation monitoring started")

	go s.run(m, emergency.CreatedAt, pending)

	return true, nil
}

// StopMonitoring cancels all pending levels for the incident. Safe to call
// repeatedly and concurrently with a firing timer: a fire already past its
// conditional advance completes that single level, then observes the terminal
// status and stops.
func (s *Scheduler) StopMonitoring(id primitive.ObjectID) {
	s.mu.Lock()
	m, ok := s.monitors[id.Hex()]
	if ok {
		delete(s.monitors, id.Hex())
	}
	s.mu.Unlock()

	if ok {
		m.cancel()
		s.logger.WithEmergencyID(id).Info("Escalation monitoring stopped")
	}
}

// RecoverActive rebuilds the monitoring set from the incident store, picking
// up every non-terminal emergency. Called once at startup.
func (s *Scheduler) RecoverActive(ctx context.Context) (int, error) {
	active, err := s.repo.GetActiveEmergencies(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan active emergencies: %w", err)
	}

	recovered := 0
	for _, emergency := range active {
		started, err := s.StartMonitoring(ctx, emergency.ID)
		if err != nil {
			s.logger.WithEmergencyID(emergency.ID).WithError(err).Error("Failed to recover emergency monitoring")
			continue
		}
		if started {
			recovered++
		}
	}

	return recovered, nil
}

// Monitoring reports whether the incident currently has an active monitor.
func (s *Scheduler) Monitoring(id primitive.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.monitors[id.Hex()]
	return ok
}

func (s *Scheduler) run(m *monitor, createdAt time.Time, pending []Level) {
	defer s.remove(m)

	ctx := context.Background()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for _, level := range pending {
		wait := time.Until(createdAt.Add(level.Deadline))
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)

		select {
		case <-m.stop:
			return
		case <-timer.C:
		}

		if !s.fire(ctx, m.id, level) {
			return
		}
	}
}

// fire advances one level. Returns false when monitoring should end: the
// incident was resolved, the level moved under us, or the terminal level was
// reached.
func (s *Scheduler) fire(ctx context.Context, id primitive.ObjectID, level Level) bool {
	log := s.logger.WithEmergencyID(id).WithField("level", level.Level)

	entry := models.EscalationEntry{
		Level:       level.Level,
		Action:      "escalated",
		TriggeredBy: models.EscalationActorAuto,
		Timestamp:   time.Now(),
	}
	if level.Terminal {
		entry.Action = "dispatch_requested"
	}

	advanced, err := s.repo.AdvanceLevel(ctx, id, level.Level-1, entry)
	if err != nil {
		log.WithError(err).Error("Failed to advance escalation level")
		return false
	}
	if !advanced {
		// Resolution won the race; no action may follow a terminal status.
		log.Info("Escalation suppressed, emergency no longer eligible")
		return false
	}

	emergency, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to load emergency after escalation")
		return false
	}

	s.logger.LogEscalationEvent(id, level.Level, map[string]interface{}{
		"recipients": string(level.Recipients),
		"terminal":   level.Terminal,
	})

	s.notifier.NotifyLevel(ctx, emergency, level)

	if level.Terminal {
		s.notifier.RequestDispatch(ctx, emergency)
		return false
	}

	return true
}

func (s *Scheduler) remove(m *monitor) {
	s.mu.Lock()
	if current, ok := s.monitors[m.id.Hex()]; ok && current == m {
		delete(s.monitors, m.id.Hex())
	}
	s.mu.Unlock()
}
