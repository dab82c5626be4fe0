package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/shenikar/sos_dispatch_system/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scenario struct {
	sos       SOSService
	missions  MissionService
	gateway   *realtime.Gateway
	incidents *memory.IncidentStore
	clock     *fakeClock
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	logger := silentLogger()
	cfg := testConfig()
	clock := &fakeClock{now: testNow}

	bus := events.NewBus(logger, nil)
	gateway := realtime.NewGateway(realtime.NewRegistry(), logger, nil, 32)
	gateway.Attach(bus)

	incidents := memory.NewIncidentStore()
	missions := NewMissionService(memory.NewMissionStore(), incidents, bus, logger, cfg, WithMissionClock(clock.Now))
	sos := NewSOSService(incidents, bus, logger, cfg,
		WithMissionRevoker(missions),
		WithSOSClock(clock.Now),
	)
	return scenario{sos: sos, missions: missions, gateway: gateway, incidents: incidents, clock: clock}
}

func drainEnvelopes(conn *realtime.Connection) []events.Envelope {
	var out []events.Envelope
	for {
		select {
		case f := <-conn.Frames():
			if f.Name == realtime.FrameEvent {
				out = append(out, f.Data.(events.Envelope))
			}
		default:
			return out
		}
	}
}

func envelopesOfType(envs []events.Envelope, t events.Type) []events.Envelope {
	var out []events.Envelope
	for _, e := range envs {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestScenario_CreateThenAssign(t *testing.T) {
	// Подготовка
	s := newScenario(t)
	ctx := context.Background()

	incident, err := s.sos.CreateIncident(ctx, models.IncidentDraft{
		CityScope: "manila",
		CitizenID: "citizen-1",
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
	})
	require.NoError(t, err)

	citizen := s.gateway.Connect("citizen-1", models.RoleCitizen, false)
	_, err = s.gateway.JoinRoom(citizen.ID, incident.ID)
	require.NoError(t, err)
	drainEnvelopes(citizen)

	// Действие
	assigned, err := s.sos.AssignRescuer(ctx, incident.ID, "R1", dispatcher)
	require.NoError(t, err)

	// Проверки
	assert.Equal(t, models.StatusEnRoute, assigned.Status)
	assert.Equal(t, "R1", assigned.AssignedRescuerID)

	frames := drainEnvelopes(citizen)
	rescuerFrames := envelopesOfType(frames, events.RescuerAssigned)
	require.Len(t, rescuerFrames, 1)
	assert.Equal(t, incident.ID, rescuerFrames[0].SOSID)
	payload := rescuerFrames[0].Data.(events.AssignmentPayload)
	assert.Equal(t, "R1", payload.RescuerID)
	assert.Equal(t, string(models.StatusEnRoute), payload.Status)

	stored, err := s.incidents.GetByID(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnRoute, stored.Status)
}

func TestScenario_RoomIsolation(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	draft := models.IncidentDraft{CityScope: "manila", CitizenID: "citizen-1", Location: models.Point{Lat: 14.5, Lng: 120.9}}

	first, err := s.sos.CreateIncident(ctx, draft)
	require.NoError(t, err)
	second, err := s.sos.CreateIncident(ctx, draft)
	require.NoError(t, err)

	watcher := s.gateway.Connect("citizen-2", models.RoleCitizen, false)
	_, err = s.gateway.JoinRoom(watcher.ID, second.ID)
	require.NoError(t, err)
	drainEnvelopes(watcher)

	_, err = s.sos.SendMessage(ctx, first.ID, models.Actor{ID: "citizen-1", Role: models.RoleCitizen}, "hello")
	require.NoError(t, err)
	_, err = s.sos.RecordLocation(ctx, first.ID, models.Point{Lat: 14.51, Lng: 120.91}, 5)
	require.NoError(t, err)

	assert.Empty(t, drainEnvelopes(watcher))
}

func TestScenario_ConcurrentAssignOneWinner(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	incident, err := s.sos.CreateIncident(ctx, models.IncidentDraft{
		CityScope: "manila",
		CitizenID: "citizen-1",
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
	})
	require.NoError(t, err)

	rescuers := []string{"R1", "R2", "R3", "R4"}
	errs := make([]error, len(rescuers))
	var wg sync.WaitGroup
	for i, rescuer := range rescuers {
		wg.Add(1)
		go func(i int, rescuer string) {
			defer wg.Done()
			_, errs[i] = s.sos.AssignRescuer(ctx, incident.ID, rescuer, dispatcher)
		}(i, rescuer)
	}
	wg.Wait()

	stored, err := s.incidents.GetByID(ctx, incident.ID)
	require.NoError(t, err)

	winners := 0
	for i, err := range errs {
		if err == nil {
			winners++
			assert.Equal(t, rescuers[i], stored.AssignedRescuerID)
			continue
		}
		assert.True(t, apperror.IsConflict(err), "got %v", err)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, models.StatusEnRoute, stored.Status)
}

func TestScenario_ResolveRevokesMissions(t *testing.T) {
	// Подготовка
	s := newScenario(t)
	ctx := context.Background()
	incident, err := s.sos.CreateIncident(ctx, models.IncidentDraft{
		CityScope: "manila",
		CitizenID: "citizen-1",
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
	})
	require.NoError(t, err)

	mission, err := s.missions.IssueMission(ctx, models.MissionRequest{
		IncidentID: incident.ID,
		CityScope:  "manila",
		IssuedBy:   dispatcher.ID,
		TTLMinutes: 60,
	})
	require.NoError(t, err)

	// Действие: полный жизненный цикл
	_, err = s.sos.AssignRescuer(ctx, incident.ID, "R1", dispatcher)
	require.NoError(t, err)
	s.clock.Advance(10 * time.Minute)
	_, err = s.sos.UpdateStatus(ctx, incident.ID, models.StatusOnScene, dispatcher)
	require.NoError(t, err)
	resolved, err := s.sos.UpdateStatus(ctx, incident.ID, models.StatusResolved, dispatcher)
	require.NoError(t, err)

	// Проверки
	assert.Equal(t, models.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	_, err = s.missions.VerifyMission(ctx, mission.Token)
	assert.True(t, apperror.IsMissionExpired(err))

	_, err = s.sos.UpdateStatus(ctx, incident.ID, models.StatusCancelled, dispatcher)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestScenario_DashboardSeesCreatedAndStatusOnly(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	dashboard := s.gateway.Connect("ops-1", models.RoleDashboard, true)
	drainEnvelopes(dashboard)

	incident, err := s.sos.CreateIncident(ctx, models.IncidentDraft{
		CityScope: "manila",
		CitizenID: "citizen-1",
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
	})
	require.NoError(t, err)
	_, err = s.sos.SendMessage(ctx, incident.ID, models.Actor{ID: "citizen-1", Role: models.RoleCitizen}, "help")
	require.NoError(t, err)
	_, err = s.sos.AssignRescuer(ctx, incident.ID, "R1", dispatcher)
	require.NoError(t, err)

	var types []events.Type
	for _, env := range drainEnvelopes(dashboard) {
		types = append(types, env.Type)
	}
	assert.Equal(t, []events.Type{events.IncidentCreated, events.StatusChanged}, types)
}

func TestScenario_ClosingIncidentDropsMissionConnections(t *testing.T) {
	// Подготовка
	s := newScenario(t)
	ctx := context.Background()
	incident, err := s.sos.CreateIncident(ctx, models.IncidentDraft{
		CityScope: "manila",
		CitizenID: "citizen-1",
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
	})
	require.NoError(t, err)
	mission, err := s.missions.IssueMission(ctx, models.MissionRequest{
		IncidentID: incident.ID,
		CityScope:  "manila",
		IssuedBy:   dispatcher.ID,
		TTLMinutes: 60,
	})
	require.NoError(t, err)

	rescuer := s.gateway.Connect(realtime.MissionPrincipalID(mission.ID), models.RoleRescuer, false)
	_, err = s.gateway.JoinRoom(rescuer.ID, incident.ID)
	require.NoError(t, err)
	drainEnvelopes(rescuer)

	// Действие
	_, err = s.sos.UpdateStatus(ctx, incident.ID, models.StatusCancelled, dispatcher)
	require.NoError(t, err)

	// Проверки
	select {
	case <-rescuer.Done():
	default:
		t.Fatal("mission connection must be closed once its incident is cancelled")
	}
	assert.Zero(t, s.gateway.CountActive(incident.ID))
}

func TestScenario_RevokedMissionStopsReceivingMessages(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	incident, err := s.sos.CreateIncident(ctx, models.IncidentDraft{
		CityScope: "manila",
		CitizenID: "citizen-1",
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
	})
	require.NoError(t, err)
	mission, err := s.missions.IssueMission(ctx, models.MissionRequest{
		IncidentID: incident.ID,
		CityScope:  "manila",
		IssuedBy:   dispatcher.ID,
		TTLMinutes: 60,
	})
	require.NoError(t, err)

	rescuer := s.gateway.Connect(realtime.MissionPrincipalID(mission.ID), models.RoleRescuer, false)
	_, err = s.gateway.JoinRoom(rescuer.ID, incident.ID)
	require.NoError(t, err)
	drainEnvelopes(rescuer)

	require.NoError(t, s.missions.RevokeMission(ctx, mission.ID))
	_, err = s.sos.SendMessage(ctx, incident.ID, models.Actor{ID: "citizen-1", Role: models.RoleCitizen}, "flat 12, gate code 4411")
	require.NoError(t, err)

	assert.Empty(t, envelopesOfType(drainEnvelopes(rescuer), events.MessageSent))
	assert.Zero(t, s.gateway.CountActive(incident.ID))
}
