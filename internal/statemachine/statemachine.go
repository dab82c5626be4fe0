// Package statemachine содержит чистые функции жизненного цикла SOS-инцидента.
// Хранилище и публикация событий здесь не участвуют.
package statemachine

import (
	"time"

	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// edges - допустимые переходы. Терминальные состояния отсутствуют как ключи.
var edges = map[models.Status][]models.Status{
	models.StatusActive:  {models.StatusEnRoute, models.StatusCancelled},
	models.StatusEnRoute: {models.StatusOnScene, models.StatusCancelled},
	models.StatusOnScene: {models.StatusResolved},
}

// Change описывает примененное действие для построения событий
type Change struct {
	From          models.Status
	To            models.Status
	Actor         models.Actor
	StatusChanged bool
	Assigned      bool
	Noop          bool
	At            time.Time
}

// CanTransition сообщает, есть ли ребро (from, to) в таблице
func CanTransition(from, to models.Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom возвращает состояния, достижимые из from
func AllowedFrom(from models.Status) []models.Status {
	next := edges[from]
	out := make([]models.Status, len(next))
	copy(out, next)
	return out
}

// Transition применяет внешний запрос смены статуса.
// EN_ROUTE по прямому запросу недоступен: он наступает только при назначении спасателя.
func Transition(inc models.Incident, requested models.Status, actor models.Actor, now time.Time) (models.Incident, Change, error) {
	if !requested.IsValid() {
		return inc, Change{}, apperror.NewValidation("status", "unknown status "+string(requested))
	}
	if requested == models.StatusEnRoute {
		return inc, Change{}, &apperror.InvalidTransitionError{
			From:   string(inc.Status),
			To:     string(requested),
			Reason: "EN_ROUTE is entered by rescuer assignment only",
		}
	}
	if !CanTransition(inc.Status, requested) {
		return inc, Change{}, &apperror.InvalidTransitionError{From: string(inc.Status), To: string(requested)}
	}

	next := advance(inc, requested, now)
	return next, Change{
		From:          inc.Status,
		To:            requested,
		Actor:         actor,
		StatusChanged: true,
		At:            now,
	}, nil
}

// Assign назначает спасателя. Для ACTIVE одновременно переводит инцидент в EN_ROUTE.
// Повторное назначение того же спасателя ничего не меняет, другого - конфликт.
func Assign(inc models.Incident, rescuerID string, actor models.Actor, now time.Time) (models.Incident, Change, error) {
	if rescuerID == "" {
		return inc, Change{}, apperror.NewValidation("rescuer_id", "must not be empty")
	}
	if inc.Status.IsTerminal() {
		return inc, Change{}, &apperror.InvalidTransitionError{
			From:   string(inc.Status),
			To:     string(models.StatusEnRoute),
			Reason: "incident is closed",
		}
	}
	if inc.IsAssigned() {
		if inc.AssignedRescuerID == rescuerID {
			return inc, Change{From: inc.Status, To: inc.Status, Actor: actor, Noop: true, At: now}, nil
		}
		return inc, Change{}, &apperror.ConflictError{
			Resource: "incident",
			ID:       inc.ID.String(),
			Reason:   "rescuer " + inc.AssignedRescuerID + " is already assigned",
		}
	}

	change := Change{From: inc.Status, To: inc.Status, Actor: actor, Assigned: true, At: now}
	next := inc
	if inc.Status == models.StatusActive {
		next = advance(inc, models.StatusEnRoute, now)
		change.To = models.StatusEnRoute
		change.StatusChanged = true
	} else {
		next.UpdatedAt = now
		next.Version = inc.Version + 1
	}
	next.AssignedRescuerID = rescuerID
	return next, change, nil
}

func advance(inc models.Incident, to models.Status, now time.Time) models.Incident {
	next := inc
	next.Status = to
	next.UpdatedAt = now
	next.Version = inc.Version + 1
	switch to {
	case models.StatusResolved:
		at := now
		next.ResolvedAt = &at
	case models.StatusCancelled:
		at := now
		next.CancelledAt = &at
	}
	return next
}
