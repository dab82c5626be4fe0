package statemachine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dispatcher = models.Actor{ID: "disp-1", Role: models.RoleDispatcher}

func newIncident(status models.Status) models.Incident {
	return models.Incident{
		ID:        uuid.New(),
		CityScope: "manila",
		CitizenID: "citizen-1",
		Status:    status,
		Version:   3,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransition_Table(t *testing.T) {
	all := []models.Status{
		models.StatusActive,
		models.StatusEnRoute,
		models.StatusOnScene,
		models.StatusResolved,
		models.StatusCancelled,
	}
	allowed := map[models.Status][]models.Status{
		models.StatusActive:  {models.StatusCancelled},
		models.StatusEnRoute: {models.StatusOnScene, models.StatusCancelled},
		models.StatusOnScene: {models.StatusResolved},
	}
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	for _, from := range all {
		for _, to := range all {
			inc := newIncident(from)
			next, change, err := Transition(inc, to, dispatcher, now)

			if contains(allowed[from], to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, next.Status)
				assert.Equal(t, inc.Version+1, next.Version)
				assert.Equal(t, now, next.UpdatedAt)
				assert.True(t, change.StatusChanged)
				assert.Equal(t, from, change.From)
				continue
			}

			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, apperror.IsInvalidTransition(err))
			assert.Equal(t, from, next.Status, "status must stay unchanged")
			assert.Equal(t, inc.Version, next.Version)
		}
	}
}

func TestTransition_EchoesEdge(t *testing.T) {
	_, _, err := Transition(newIncident(models.StatusResolved), models.StatusActive, dispatcher, time.Now())

	var target *apperror.InvalidTransitionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "RESOLVED", target.From)
	assert.Equal(t, "ACTIVE", target.To)
}

func TestTransition_StampsTerminalTimes(t *testing.T) {
	now := time.Now().UTC()

	resolved, _, err := Transition(newIncident(models.StatusOnScene), models.StatusResolved, dispatcher, now)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, now, *resolved.ResolvedAt)

	cancelled, _, err := Transition(newIncident(models.StatusActive), models.StatusCancelled, dispatcher, now)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestTransition_UnknownStatus(t *testing.T) {
	_, _, err := Transition(newIncident(models.StatusActive), models.Status("FLYING"), dispatcher, time.Now())
	assert.True(t, apperror.IsValidation(err))
}

func TestAssign_ActiveMovesToEnRoute(t *testing.T) {
	inc := newIncident(models.StatusActive)
	now := time.Now().UTC()

	next, change, err := Assign(inc, "R1", dispatcher, now)

	require.NoError(t, err)
	assert.Equal(t, models.StatusEnRoute, next.Status)
	assert.Equal(t, "R1", next.AssignedRescuerID)
	assert.Equal(t, inc.Version+1, next.Version)
	assert.True(t, change.Assigned)
	assert.True(t, change.StatusChanged)
	assert.Equal(t, models.StatusActive, change.From)
	assert.Equal(t, models.StatusEnRoute, change.To)
	assert.Equal(t, "", inc.AssignedRescuerID, "input value must not be mutated")
}

func TestAssign_OnSceneKeepsStatus(t *testing.T) {
	inc := newIncident(models.StatusOnScene)

	next, change, err := Assign(inc, "R2", dispatcher, time.Now())

	require.NoError(t, err)
	assert.Equal(t, models.StatusOnScene, next.Status)
	assert.Equal(t, "R2", next.AssignedRescuerID)
	assert.False(t, change.StatusChanged)
	assert.True(t, change.Assigned)
}

func TestAssign_DifferentRescuerConflicts(t *testing.T) {
	inc := newIncident(models.StatusEnRoute)
	inc.AssignedRescuerID = "R1"

	next, _, err := Assign(inc, "R2", dispatcher, time.Now())

	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, "R1", next.AssignedRescuerID)
}

func TestAssign_SameRescuerIsNoop(t *testing.T) {
	inc := newIncident(models.StatusEnRoute)
	inc.AssignedRescuerID = "R1"

	next, change, err := Assign(inc, "R1", dispatcher, time.Now())

	require.NoError(t, err)
	assert.True(t, change.Noop)
	assert.Equal(t, inc, next)
}

func TestAssign_TerminalRejected(t *testing.T) {
	for _, status := range []models.Status{models.StatusResolved, models.StatusCancelled} {
		_, _, err := Assign(newIncident(status), "R1", dispatcher, time.Now())
		assert.True(t, apperror.IsInvalidTransition(err), status)
	}
}

func TestAssign_EmptyRescuer(t *testing.T) {
	_, _, err := Assign(newIncident(models.StatusActive), "", dispatcher, time.Now())
	assert.True(t, apperror.IsValidation(err))
}

func contains(list []models.Status, s models.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
