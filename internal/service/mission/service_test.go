package mission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/profile"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockPermissionChecker struct {
	CanPerformFunc func(ctx context.Context, labID, uid string, action domain.Action) (bool, error)
}

func (m *mockPermissionChecker) CanPerform(ctx context.Context, labID, uid string, action domain.Action) (bool, error) {
	return m.CanPerformFunc(ctx, labID, uid, action)
}

type mockRewarder struct {
	mu         sync.Mutex
	experience map[string]int
	stats      []string
	xpErr      error
}

func (m *mockRewarder) AddExperience(_ context.Context, uid string, amount int) (*profile.ExperienceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.xpErr != nil {
		return nil, m.xpErr
	}
	if m.experience == nil {
		m.experience = make(map[string]int)
	}
	prev := m.experience[uid]
	m.experience[uid] = prev + amount
	return &profile.ExperienceResult{
		Experience:    prev + amount,
		PreviousLevel: domain.LevelForExperience(prev),
		Level:         domain.LevelForExperience(prev + amount),
		LeveledUp:     domain.LevelForExperience(prev+amount) > domain.LevelForExperience(prev),
	}, nil
}

func (m *mockRewarder) IncrementStatistic(_ context.Context, uid, name string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, uid+":"+name)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testEnv struct {
	svc     *Service
	rewards *mockRewarder
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	store := docstore.New(docstore.NewMemory(), docstore.WithClock(clock))
	labs := &mockPermissionChecker{
		CanPerformFunc: func(_ context.Context, labID, uid string, action domain.Action) (bool, error) {
			return labID == "lab-1" && action == domain.ActionManageMissions && (uid == "alice" || uid == "bob"), nil
		},
	}
	rewards := &mockRewarder{}
	return testEnv{
		svc:     NewService(slog.Default(), store, labs, rewards, clock),
		rewards: rewards,
		clock:   clock,
	}
}

func validInput() CreateInput {
	return CreateInput{
		LaboratoryID: "lab-1",
		Title:        "Lead in tap water",
		Description:  "Quantify Pb in three samples",
		Client:       "City of Lyon",
		Difficulty:   domain.DifficultyMedium,
		Objectives: []ObjectiveInput{
			{Description: "Prepare samples"},
			{Description: "Run ICP-MS", TargetCompound: "Pb", RequiredAccuracy: 0.95},
		},
		Rewards: domain.MissionReward{Money: 1500, Experience: 250},
	}
}

func (e testEnv) create(t *testing.T, input CreateInput) *domain.Mission {
	t.Helper()
	m, err := e.svc.Create(context.Background(), "alice", input)
	require.NoError(t, err)
	return m
}

// ---------------------------------------------------------------------------
// Create / Get / ListAvailable
// ---------------------------------------------------------------------------

func TestCreate_Success(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	m := env.create(t, validInput())

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, domain.MissionAvailable, m.Status)
	assert.Equal(t, "lab-1", m.LaboratoryID)
	require.Len(t, m.Objectives, 2)
	assert.Equal(t, "obj-1", m.Objectives[0].ID)
	assert.Equal(t, "Pb", m.Objectives[1].TargetCompound)
	assert.False(t, m.Objectives[1].Completed)
	assert.Equal(t, 250, m.Rewards.Experience)
	assert.Empty(t, m.AssignedTo)
	assert.True(t, m.CreatedAt.Equal(testNow))
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	past := testNow.Add(-time.Hour)
	_, err := env.svc.Create(context.Background(), "alice", CreateInput{
		LaboratoryID: "lab-1",
		Difficulty:   "trivial",
		Deadline:     &past,
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"title", "difficulty", "objectives", "deadline"}, fields)
}

func TestCreate_Forbidden(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), "mallory", validInput())
	assert.ErrorIs(t, err, domain.ErrInsufficientPerm)

	_, err = env.svc.Create(context.Background(), "", validInput())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGet_ReportsExpired(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	input := validInput()
	deadline := testNow.Add(time.Hour)
	input.Deadline = &deadline
	m := env.create(t, input)

	env.clock.Advance(2 * time.Hour)

	got, err := env.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionExpired, got.Status)
}

func TestListAvailable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	deadline := testNow.Add(30 * time.Minute)
	shortLived := validInput()
	shortLived.Deadline = &deadline
	env.create(t, shortLived)

	env.clock.Advance(time.Second)
	older := env.create(t, validInput())
	env.clock.Advance(time.Second)
	newer := env.create(t, validInput())
	env.clock.Advance(time.Second)
	taken := env.create(t, validInput())
	_, err := env.svc.Accept(ctx, "bob", taken.ID)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)

	got, err := env.svc.ListAvailable(ctx, "lab-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	other, err := env.svc.ListAvailable(ctx, "lab-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestLifecycle_Complete(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, validInput())

	accepted, err := env.svc.Accept(ctx, "bob", m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionAccepted, accepted.Status)
	assert.Equal(t, "bob", accepted.AssignedTo)
	require.NotNil(t, accepted.AcceptedAt)

	_, err = env.svc.Start(ctx, "bob", m.ID)
	require.NoError(t, err)

	_, err = env.svc.Complete(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, domain.ErrObjectivesPending)

	for _, o := range m.Objectives {
		_, err = env.svc.CompleteObjective(ctx, "bob", m.ID, o.ID)
		require.NoError(t, err)
	}

	env.clock.Advance(time.Minute)
	res, err := env.svc.Complete(ctx, "bob", m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionCompleted, res.Mission.Status)
	require.NotNil(t, res.Mission.CompletedAt)
	assert.True(t, res.Mission.CompletedAt.Equal(testNow.Add(time.Minute)))
	require.NotNil(t, res.Experience)
	assert.Equal(t, 250, res.Experience.Experience)
	assert.True(t, res.Experience.LeveledUp)
	assert.Equal(t, []string{"bob:missionsCompleted"}, env.rewards.stats)

	stored, err := env.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionCompleted, stored.Status)
	assert.True(t, stored.CreatedAt.Equal(testNow))
	assert.True(t, stored.AllObjectivesCompleted())
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, validInput())

	_, err := env.svc.Start(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, domain.ErrNotAssignee)

	_, err = env.svc.Accept(ctx, "bob", m.ID)
	require.NoError(t, err)

	_, err = env.svc.Accept(ctx, "alice", m.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.svc.Complete(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.svc.CompleteObjective(ctx, "bob", m.ID, "obj-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.svc.Start(ctx, "alice", m.ID)
	assert.ErrorIs(t, err, domain.ErrNotAssignee)

	_, err = env.svc.Start(ctx, "bob", m.ID)
	require.NoError(t, err)

	_, err = env.svc.CompleteObjective(ctx, "bob", m.ID, "obj-9")
	assert.ErrorIs(t, err, domain.ErrObjectiveNotFound)

	failed, err := env.svc.Fail(ctx, "bob", m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionFailed, failed.Status)

	_, err = env.svc.Fail(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAccept_NonMember(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	m := env.create(t, validInput())

	_, err := env.svc.Accept(context.Background(), "mallory", m.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientPerm)
}

func TestAccept_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.svc.Accept(context.Background(), "bob", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpiredMissionIsPersisted(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	input := validInput()
	deadline := testNow.Add(time.Hour)
	input.Deadline = &deadline
	m := env.create(t, input)

	_, err := env.svc.Accept(ctx, "bob", m.ID)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)

	_, err = env.svc.Start(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, domain.ErrMissionExpired)

	// Get reports expiry on its own, so read the raw document.
	doc, err := env.svc.store.Get(ctx, missionRef(m.ID))
	require.NoError(t, err)
	assert.Equal(t, string(domain.MissionExpired), doc.Data["status"])
}

func TestComplete_RewardFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	input := validInput()
	input.Objectives = input.Objectives[:1]
	m := env.create(t, input)

	_, err := env.svc.Accept(ctx, "bob", m.ID)
	require.NoError(t, err)
	_, err = env.svc.Start(ctx, "bob", m.ID)
	require.NoError(t, err)
	_, err = env.svc.CompleteObjective(ctx, "bob", m.ID, "obj-1")
	require.NoError(t, err)

	boom := errors.New("profile store down")
	env.rewards.xpErr = boom

	_, err = env.svc.Complete(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, env.rewards.stats)
}
