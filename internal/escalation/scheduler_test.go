package escalation

import (
	"context"
	"sync"
	"testing"
	"time"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/repositories/memory"
	"rideguard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingNotifier struct {
	mu         sync.Mutex
	levels     []int
	dispatches int
}

func (n *recordingNotifier) NotifyLevel(ctx context.Context, emergency *models.Emergency, level Level) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level.Level)
}

func (n *recordingNotifier) RequestDispatch(ctx context.Context, emergency *models.Emergency) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatches++
}

func (n *recordingNotifier) notified() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.levels...)
}

func (n *recordingNotifier) dispatchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dispatches
}

// fastPolicy compresses the timetable so a full walk finishes in well under a
// second.
func fastPolicy(base time.Duration) *Policy {
	policy := DefaultPolicy()
	for i := range policy.Levels {
		policy.Levels[i].Deadline = base * time.Duration(i+1)
	}
	return policy
}

func newTestScheduler(t *testing.T, policy *Policy) (*Scheduler, interfaces.EmergencyRepository, *recordingNotifier) {
	t.Helper()

	repo := memory.NewEmergencyRepository()
	notifier := &recordingNotifier{}
	scheduler, err := NewScheduler(repo, policy, notifier, logger.NewNopLogger())
	require.NoError(t, err)
	return scheduler, repo, notifier
}

func createEmergency(t *testing.T, repo interfaces.EmergencyRepository) *models.Emergency {
	t.Helper()

	emergency := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(37.7749, -122.4194),
	}
	require.NoError(t, repo.Create(context.Background(), emergency))
	return emergency
}

func TestNewSchedulerRejectsInvalidPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.Levels[3].Terminal = false

	_, err := NewScheduler(memory.NewEmergencyRepository(), policy, &recordingNotifier{}, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestSchedulerWalksAllLevels(t *testing.T) {
	scheduler, repo, notifier := newTestScheduler(t, fastPolicy(20*time.Millisecond))
	emergency := createEmergency(t, repo)

	started, err := scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.True(t, started)

	require.Eventually(t, func() bool {
		return notifier.dispatchCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	final, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusEscalated, final.Status)
	assert.Equal(t, models.MaxEscalationLevel, final.EscalationLevel)
	assert.Equal(t, []int{1, 2, 3, 4}, notifier.notified())

	// The timeline holds the trigger entry plus one entry per level, in order.
	require.Len(t, final.EscalationTimeline, 5)
	for i, entry := range final.EscalationTimeline {
		assert.Equal(t, i, entry.Level)
		if i > 0 {
			assert.Equal(t, models.EscalationActorAuto, entry.TriggeredBy)
			assert.False(t, entry.Timestamp.Before(final.EscalationTimeline[i-1].Timestamp))
		}
	}
	assert.Equal(t, "dispatch_requested", final.EscalationTimeline[4].Action)

	// The walk is complete, so the monitor is gone.
	assert.Eventually(t, func() bool {
		return !scheduler.Monitoring(emergency.ID)
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerStartMonitoringIdempotent(t *testing.T) {
	scheduler, repo, _ := newTestScheduler(t, fastPolicy(time.Hour))
	emergency := createEmergency(t, repo)

	started, err := scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.False(t, started)

	scheduler.StopMonitoring(emergency.ID)
}

func TestSchedulerStartMonitoringSkipsTerminal(t *testing.T) {
	scheduler, repo, _ := newTestScheduler(t, fastPolicy(time.Hour))
	emergency := createEmergency(t, repo)

	_, applied, err := repo.Resolve(context.Background(), emergency.ID, models.EmergencyStatusResolved, models.Resolution{Outcome: "safe", ResolvedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	started, err := scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.False(t, started)
	assert.False(t, scheduler.Monitoring(emergency.ID))
}

// resolveOnFirstRead resolves the emergency right after the first GetByID, so
// the terminal transition lands between the scheduler's status check and its
// registry insert.
type resolveOnFirstRead struct {
	interfaces.EmergencyRepository
	mu    sync.Mutex
	reads int
}

func (r *resolveOnFirstRead) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Emergency, error) {
	r.mu.Lock()
	r.reads++
	first := r.reads == 1
	r.mu.Unlock()

	emergency, err := r.EmergencyRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if first {
		if _, _, err := r.EmergencyRepository.Resolve(ctx, id, models.EmergencyStatusResolved, models.Resolution{Outcome: "safe", ResolvedAt: time.Now()}); err != nil {
			return nil, err
		}
	}
	return emergency, nil
}

func TestSchedulerStartMonitoringLosesToConcurrentResolve(t *testing.T) {
	base := memory.NewEmergencyRepository()
	repo := &resolveOnFirstRead{EmergencyRepository: base}
	notifier := &recordingNotifier{}
	scheduler, err := NewScheduler(repo, fastPolicy(20*time.Millisecond), notifier, logger.NewNopLogger())
	require.NoError(t, err)

	emergency := createEmergency(t, base)

	started, err := scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.False(t, started)
	assert.False(t, scheduler.Monitoring(emergency.ID))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, notifier.notified())
	assert.Zero(t, notifier.dispatchCount())
}

func TestSchedulerStopMonitoringCancelsPendingLevels(t *testing.T) {
	scheduler, repo, notifier := newTestScheduler(t, fastPolicy(60*time.Millisecond))
	emergency := createEmergency(t, repo)

	started, err := scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.True(t, started)

	scheduler.StopMonitoring(emergency.ID)
	scheduler.StopMonitoring(emergency.ID) // repeat is a no-op

	time.Sleep(200 * time.Millisecond)

	current, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.EscalationLevel)
	assert.Equal(t, models.EmergencyStatusActive, current.Status)
	assert.Empty(t, notifier.notified())
	assert.Zero(t, notifier.dispatchCount())
}

func TestSchedulerResolutionWinsRace(t *testing.T) {
	scheduler, repo, notifier := newTestScheduler(t, fastPolicy(50*time.Millisecond))
	emergency := createEmergency(t, repo)

	started, err := scheduler.StartMonitoring(context.Background(), emergency.ID)
	require.NoError(t, err)
	require.True(t, started)

	// Resolve before the first deadline; the fire must observe the terminal
	// status and stand down without notifying anyone.
	_, applied, err := repo.Resolve(context.Background(), emergency.ID, models.EmergencyStatusResolved, models.Resolution{Outcome: "safe", ResolvedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	require.Eventually(t, func() bool {
		return !scheduler.Monitoring(emergency.ID)
	}, 2*time.Second, 5*time.Millisecond)

	current, err := repo.GetByID(context.Background(), emergency.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.EscalationLevel)
	assert.Empty(t, notifier.notified())
	assert.Zero(t, notifier.dispatchCount())
}

func TestSchedulerRecoverActive(t *testing.T) {
	scheduler, repo, notifier := newTestScheduler(t, fastPolicy(25*time.Millisecond))

	// An incident created long before recovery has every deadline overdue.
	overdue := &models.Emergency{
		TriggeredBy: primitive.NewObjectID(),
		Type:        models.EmergencyTypeSOS,
		Location:    models.NewPoint(37.7749, -122.4194),
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), overdue))

	resolved := createEmergency(t, repo)
	_, applied, err := repo.Resolve(context.Background(), resolved.ID, models.EmergencyStatusCancelled, models.Resolution{Outcome: "cancelled", ResolvedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	recovered, err := scheduler.RecoverActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	require.Eventually(t, func() bool {
		return notifier.dispatchCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Overdue levels fire immediately but still strictly in order.
	assert.Equal(t, []int{1, 2, 3, 4}, notifier.notified())

	final, err := repo.GetByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusEscalated, final.Status)
	assert.Equal(t, models.MaxEscalationLevel, final.EscalationLevel)
}
