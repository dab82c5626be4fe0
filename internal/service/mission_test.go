package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/repository/memory"
	"github.com/shenikar/sos_dispatch_system/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeClock - управляемые часы для проверок срока действия
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type missionFixture struct {
	service   MissionService
	incidents *memory.IncidentStore
	missions  *memory.MissionStore
	events    *recordingPublisher
	clock     *fakeClock
	incident  models.Incident
}

func newMissionFixture(t *testing.T) missionFixture {
	t.Helper()
	f := missionFixture{
		incidents: memory.NewIncidentStore(),
		missions:  memory.NewMissionStore(),
		events:    &recordingPublisher{},
		clock:     &fakeClock{now: testNow},
		incident:  activeIncident(),
	}
	require.NoError(t, f.incidents.Create(context.Background(), f.incident))
	f.service = NewMissionService(f.missions, f.incidents, f.events, silentLogger(), testConfig(),
		WithMissionClock(f.clock.Now))
	return f
}

func (f missionFixture) issue(t *testing.T, ttl int) models.Mission {
	t.Helper()
	mission, err := f.service.IssueMission(context.Background(), models.MissionRequest{
		IncidentID: f.incident.ID,
		CityScope:  f.incident.CityScope,
		IssuedBy:   "dispatcher-1",
		TTLMinutes: ttl,
	})
	require.NoError(t, err)
	return mission
}

func TestIssueMission_TokenFormat(t *testing.T) {
	f := newMissionFixture(t)

	mission := f.issue(t, 60)

	assert.True(t, strings.HasPrefix(mission.Token, "msn_"))
	assert.Len(t, mission.Token, len("msn_")+43)
	assert.Equal(t, HashMissionToken(mission.Token), mission.TokenHash)
	assert.Equal(t, testNow.Add(60*time.Minute), mission.ExpiresAt)
	assert.ElementsMatch(t, models.MissionCapabilities(), mission.Capabilities)
	assert.Equal(t, []events.Type{events.MissionIssued}, f.events.types())
}

func TestIssueMission_DefaultTTL(t *testing.T) {
	f := newMissionFixture(t)

	mission := f.issue(t, 0)

	assert.Equal(t, testNow.Add(120*time.Minute), mission.ExpiresAt)
}

func TestVerifyMission_ValidUntilExpiry(t *testing.T) {
	// Подготовка
	f := newMissionFixture(t)
	mission := f.issue(t, 60)
	ctx := context.Background()

	// Действие и проверки: +59 минут действует
	f.clock.Advance(59 * time.Minute)
	verified, err := f.service.VerifyMission(ctx, mission.Token)
	require.NoError(t, err)
	assert.Equal(t, f.incident.ID, verified.IncidentID)
	assert.True(t, verified.Grants(f.incident.ID, models.CapabilityUpdateStatus))
	assert.Empty(t, verified.Token)

	// +61 минута - истекла
	f.clock.Advance(2 * time.Minute)
	_, err = f.service.VerifyMission(ctx, mission.Token)
	assert.True(t, apperror.IsMissionExpired(err))
}

func TestVerifyMission_OneMinuteTTLFailsAfterTwoMinutes(t *testing.T) {
	f := newMissionFixture(t)
	mission := f.issue(t, 1)

	f.clock.Advance(2 * time.Minute)
	_, err := f.service.VerifyMission(context.Background(), mission.Token)

	assert.True(t, apperror.IsMissionExpired(err))
}

func TestVerifyMission_UnknownAndEmptyToken(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()

	_, err := f.service.VerifyMission(ctx, "msn_unknown")
	assert.True(t, apperror.IsMissionExpired(err))

	_, err = f.service.VerifyMission(ctx, "")
	assert.True(t, apperror.IsMissionExpired(err))
}

func TestRevokeMission_Idempotent(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()
	mission := f.issue(t, 60)

	require.NoError(t, f.service.RevokeMission(ctx, mission.ID))
	require.NoError(t, f.service.RevokeMission(ctx, mission.ID))
	require.NoError(t, f.service.RevokeMission(ctx, uuid.New()))

	_, err := f.service.VerifyMission(ctx, mission.Token)
	assert.True(t, apperror.IsMissionExpired(err))
	assert.Equal(t, []events.Type{events.MissionIssued, events.MissionRevoked}, f.events.types())
}

func TestRevokeAllForIncident_SecondCallReturnsZero(t *testing.T) {
	// Подготовка
	f := newMissionFixture(t)
	ctx := context.Background()
	first := f.issue(t, 60)
	second := f.issue(t, 30)

	// Действие
	count, err := f.service.RevokeAllForIncident(ctx, f.incident.ID)
	require.NoError(t, err)
	again, err := f.service.RevokeAllForIncident(ctx, f.incident.ID)
	require.NoError(t, err)

	// Проверки
	assert.Equal(t, 2, count)
	assert.Zero(t, again)
	assert.Equal(t, []events.Type{events.MissionIssued, events.MissionIssued, events.MissionRevoked}, f.events.types())
	for _, m := range []models.Mission{first, second} {
		_, err := f.service.VerifyMission(ctx, m.Token)
		assert.True(t, apperror.IsMissionExpired(err))
	}
	payload := f.events.events[2].Payload.(events.MissionPayload)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, payload.MissionIDs)
}

func TestRevokeMission_PayloadCarriesMissionID(t *testing.T) {
	f := newMissionFixture(t)
	mission := f.issue(t, 60)

	require.NoError(t, f.service.RevokeMission(context.Background(), mission.ID))

	payload := f.events.events[1].Payload.(events.MissionPayload)
	assert.Equal(t, []uuid.UUID{mission.ID}, payload.MissionIDs)
}

func TestGetMission(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()
	mission := f.issue(t, 60)

	got, err := f.service.GetMission(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, mission.ID, got.ID)
	assert.Equal(t, f.incident.CityScope, got.CityScope)
	assert.Empty(t, got.Token)

	_, err = f.service.GetMission(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestIssueMission_Rejections(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()

	closed := activeIncident()
	closed.Status = models.StatusResolved
	require.NoError(t, f.incidents.Create(ctx, closed))

	cases := []struct {
		name  string
		req   models.MissionRequest
		check func(error) bool
	}{
		{"unknown incident", models.MissionRequest{IncidentID: uuid.New(), CityScope: "manila", TTLMinutes: 10}, apperror.IsNotFound},
		{"city mismatch", models.MissionRequest{IncidentID: f.incident.ID, CityScope: "cebu", TTLMinutes: 10}, apperror.IsValidation},
		{"terminal incident", models.MissionRequest{IncidentID: closed.ID, CityScope: "manila", TTLMinutes: 10}, apperror.IsValidation},
		{"ttl above max", models.MissionRequest{IncidentID: f.incident.ID, CityScope: "manila", TTLMinutes: 1441}, apperror.IsValidation},
		{"negative ttl", models.MissionRequest{IncidentID: f.incident.ID, CityScope: "manila", TTLMinutes: -5}, apperror.IsValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.IssueMission(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
	assert.Empty(t, f.events.types())
}

func TestSweepExpired_MarksOnce(t *testing.T) {
	f := newMissionFixture(t)
	ctx := context.Background()
	f.issue(t, 1)
	f.issue(t, 60)

	f.clock.Advance(5 * time.Minute)
	count, err := f.service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = f.service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIssueMission_TokenGeneratorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockMissionRepository(ctrl)
	incidents := mocks.NewMockIncidentReader(ctrl)
	current := activeIncident()
	ctx := context.Background()

	incidents.EXPECT().GetByID(ctx, current.ID).Return(current, nil)

	service := NewMissionService(repo, incidents, &recordingPublisher{}, silentLogger(), testConfig(),
		WithTokenGenerator(func() (string, error) { return "", errors.New("entropy exhausted") }))

	_, err := service.IssueMission(ctx, models.MissionRequest{IncidentID: current.ID, CityScope: "manila"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not generate mission token")
}

func TestVerifyMission_RepositoryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockMissionRepository(ctrl)
	ctx := context.Background()

	repo.EXPECT().GetByTokenHash(ctx, HashMissionToken("msn_x")).Return(models.Mission{}, errors.New("db error"))

	service := NewMissionService(repo, mocks.NewMockIncidentReader(ctrl), &recordingPublisher{}, silentLogger(), testConfig())
	_, err := service.VerifyMission(ctx, "msn_x")

	require.Error(t, err)
	assert.False(t, apperror.IsMissionExpired(err))
}

func TestMissionSweeper_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	missions := mocks.NewMockMissionService(ctrl)
	missions.EXPECT().SweepExpired(gomock.Any()).Return(0, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewMissionSweeper(missions, 5*time.Millisecond, silentLogger()).Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
