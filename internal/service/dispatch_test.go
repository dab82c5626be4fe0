package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/geo"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/repository/memory"
	"github.com/shenikar/sos_dispatch_system/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var manila = models.Point{Lat: 14.5995, Lng: 120.9842}

func hq(id string, p models.Point, departments ...string) models.Headquarters {
	return models.Headquarters{
		ID:              id,
		Name:            id,
		ScopeLevel:      models.ScopeCity,
		CityCode:        "manila",
		Location:        p,
		DepartmentCodes: departments,
		Active:          true,
	}
}

func newTestDispatchService(t *testing.T, hqs HQReference, departments DepartmentDirectory, incidents IncidentReader) (DispatchService, *recordingPublisher) {
	t.Helper()
	publisher := &recordingPublisher{}
	return NewDispatchService(hqs, departments, incidents, publisher, silentLogger(), testConfig(), nil), publisher
}

func TestNearestHQ_RejectsBeyondRadius(t *testing.T) {
	// Подготовка: единственный штаб в 6.5 км
	store := memory.NewHQStore(hq("far", geo.Offset(manila, 6.5, 0)))
	service, _ := newTestDispatchService(t, store, nil, nil)

	// Действие
	_, found, err := service.NearestHQ(context.Background(), manila, 6, nil)

	// Проверки
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNearestHQ_PicksClosest(t *testing.T) {
	store := memory.NewHQStore(
		hq("a", geo.Offset(manila, 5, 0)),
		hq("b", geo.Offset(manila, 0, 1.5)),
		hq("c", geo.Offset(manila, -3, 0)),
		hq("far", geo.Offset(manila, 6.5, 0)),
	)
	service, _ := newTestDispatchService(t, store, nil, nil)

	decision, found, err := service.NearestHQ(context.Background(), manila, 0, nil)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", decision.Headquarters.ID)
	assert.InDelta(t, 1.5, decision.DistanceKm, 0.01)
}

func TestNearestHQ_ReRanksReferenceCandidates(t *testing.T) {
	// Справочник вернул кандидатов не по порядку и один за пределами радиуса
	ctrl := gomock.NewController(t)
	ref := mocks.NewMockHQReference(ctrl)
	ctx := context.Background()
	inactive := hq("inactive", geo.Offset(manila, 0.1, 0))
	inactive.Active = false

	ref.EXPECT().FindActiveWithin(ctx, manila, 6.0, []string(nil)).Return([]models.Headquarters{
		hq("outside", geo.Offset(manila, 7, 0)),
		hq("second", geo.Offset(manila, 4, 0)),
		inactive,
		hq("first", geo.Offset(manila, 2, 0)),
	}, nil)
	service, _ := newTestDispatchService(t, ref, nil, nil)

	decision, found, err := service.NearestHQ(ctx, manila, 6, nil)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", decision.Headquarters.ID)
}

func TestNearestHQ_CoverageRadius(t *testing.T) {
	limited := hq("limited", geo.Offset(manila, 2, 0))
	radius := 1.0
	limited.CoverageRadiusKm = &radius
	store := memory.NewHQStore(limited, hq("wide", geo.Offset(manila, 3, 0)))
	service, _ := newTestDispatchService(t, store, nil, nil)

	decision, found, err := service.NearestHQ(context.Background(), manila, 6, nil)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "wide", decision.Headquarters.ID)
}

func TestNearestHQ_DepartmentFilter(t *testing.T) {
	store := memory.NewHQStore(
		hq("police", geo.Offset(manila, 1, 0), "police"),
		hq("fire", geo.Offset(manila, 2, 0), "fire", "rescue"),
	)
	service, _ := newTestDispatchService(t, store, nil, nil)

	decision, found, err := service.NearestHQ(context.Background(), manila, 6, []string{"rescue"})

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "fire", decision.Headquarters.ID)
}

func TestNearestHQ_ReferenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	ref := mocks.NewMockHQReference(ctrl)
	ref.EXPECT().FindActiveWithin(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
	service, _ := newTestDispatchService(t, ref, nil, nil)

	_, _, err := service.NearestHQ(context.Background(), manila, 6, nil)

	assert.True(t, apperror.IsDependency(err))
}

func TestNearestHQ_InvalidPoint(t *testing.T) {
	service, _ := newTestDispatchService(t, memory.NewHQStore(), nil, nil)

	_, _, err := service.NearestHQ(context.Background(), models.Point{Lat: 100, Lng: 0}, 6, nil)

	assert.True(t, apperror.IsValidation(err))
}

func TestDispatch_DegradesWithoutDepartments(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDepartmentDirectory(ctrl)
	incidents := mocks.NewMockIncidentReader(ctrl)
	current := activeIncident()
	ctx := context.Background()
	store := memory.NewHQStore(hq("police", geo.Offset(manila, 1, 0), "police"))

	// Ожидания
	incidents.EXPECT().GetByID(ctx, current.ID).Return(current, nil)
	directory.EXPECT().DepartmentsFor(ctx, "fire", "manila").Return(nil, errors.New("registry unavailable"))

	service, publisher := newTestDispatchService(t, store, directory, incidents)

	// Действие
	decision, err := service.Dispatch(ctx, current.ID, "fire", 0)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "police", decision.Headquarters.ID)
	assert.Equal(t, []events.Type{events.DispatchResolved}, publisher.types())
}

func TestDispatch_NothingInRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	incidents := mocks.NewMockIncidentReader(ctrl)
	current := activeIncident()
	ctx := context.Background()

	incidents.EXPECT().GetByID(ctx, current.ID).Return(current, nil)
	service, publisher := newTestDispatchService(t, memory.NewHQStore(hq("far", geo.Offset(manila, 20, 0))), nil, incidents)

	_, err := service.Dispatch(ctx, current.ID, "", 0)

	var notFound *apperror.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "headquarters", notFound.Resource)
	assert.Empty(t, publisher.types())
}

func TestDispatch_UnknownIncident(t *testing.T) {
	ctrl := gomock.NewController(t)
	incidents := mocks.NewMockIncidentReader(ctrl)
	ctx := context.Background()
	current := activeIncident()

	incidents.EXPECT().GetByID(ctx, current.ID).Return(models.Incident{}, apperror.ErrNotFound)
	service, _ := newTestDispatchService(t, memory.NewHQStore(), nil, incidents)

	_, err := service.Dispatch(ctx, current.ID, "", 0)

	assert.True(t, apperror.IsNotFound(err))
}
