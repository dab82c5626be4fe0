package v1

import (
	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
)

// DTOToIncidentDraft преобразует DTO открытия SOS в черновик инцидента
func DTOToIncidentDraft(dto CreateSOSRequest, citizenID string) models.IncidentDraft {
	return models.IncidentDraft{
		CityScope: dto.CityScope,
		CitizenID: citizenID,
		Location:  models.Point{Lat: *dto.Latitude, Lng: *dto.Longitude},
		Accuracy:  dto.Accuracy,
		Notes:     dto.Notes,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model models.Incident) IncidentResponse {
	return IncidentResponse{
		ID:                model.ID,
		CityScope:         model.CityScope,
		CitizenID:         model.CitizenID,
		Status:            string(model.Status),
		Latitude:          model.Location.Lat,
		Longitude:         model.Location.Lng,
		Accuracy:          model.LocationAccuracy,
		AssignedRescuerID: model.AssignedRescuerID,
		Notes:             model.Notes,
		Version:           model.Version,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
		ResolvedAt:        model.ResolvedAt,
		CancelledAt:       model.CancelledAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(items []models.Incident) []IncidentResponse {
	return lo.Map(items, func(item models.Incident, _ int) IncidentResponse {
		return ModelToIncidentResponse(item)
	})
}

func ModelToIncidentDetailsResponse(details models.IncidentDetails) IncidentDetailsResponse {
	return IncidentDetailsResponse{
		IncidentResponse: ModelToIncidentResponse(details.Incident),
		CitizenName:      details.CitizenName,
		RescuerName:      details.RescuerName,
	}
}

func ModelToLocationResponse(update models.LocationUpdate) LocationResponse {
	return LocationResponse{
		ID:         update.ID,
		IncidentID: update.IncidentID,
		Latitude:   update.Point.Lat,
		Longitude:  update.Point.Lng,
		Accuracy:   update.Accuracy,
		RecordedAt: update.RecordedAt,
	}
}

func ModelToMessageResponse(msg models.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		IncidentID: msg.IncidentID,
		SenderID:   msg.SenderID,
		SenderRole: string(msg.SenderRole),
		Content:    msg.Content,
		SentAt:     msg.SentAt,
	}
}

func ModelsToMessageResponses(items []models.Message) []MessageResponse {
	return lo.Map(items, func(item models.Message, _ int) MessageResponse {
		return ModelToMessageResponse(item)
	})
}

func ModelToMissionResponse(mission models.Mission) MissionResponse {
	return MissionResponse{
		ID:         mission.ID,
		Token:      mission.Token,
		IncidentID: mission.IncidentID,
		CityScope:  mission.CityScope,
		Capabilities: lo.Map(mission.Capabilities, func(c models.Capability, _ int) string {
			return string(c)
		}),
		IssuedBy:  mission.IssuedBy,
		IssuedAt:  mission.IssuedAt,
		ExpiresAt: mission.ExpiresAt,
		RevokedAt: mission.RevokedAt,
	}
}

// ModelsToMissionResponses никогда не отдает токены, только метаданные
func ModelsToMissionResponses(items []models.Mission) []MissionResponse {
	return lo.Map(items, func(item models.Mission, _ int) MissionResponse {
		item.Token = ""
		return ModelToMissionResponse(item)
	})
}

func ModelToDispatchResponse(decision models.DispatchDecision) DispatchResponse {
	hq := decision.Headquarters
	return DispatchResponse{
		HeadquartersID:     hq.ID,
		Name:               hq.Name,
		ScopeLevel:         string(hq.ScopeLevel),
		CityCode:           hq.CityCode,
		Latitude:           hq.Location.Lat,
		Longitude:          hq.Location.Lng,
		DistanceKm:         decision.DistanceKm,
		DepartmentCodes:    hq.DepartmentCodes,
		MatchedDepartments: decision.Departments,
	}
}

func ParticipantToResponse(p realtime.Participant) ParticipantResponse {
	return ParticipantResponse{
		ConnectionID: p.ConnectionID,
		UserID:       p.UserID,
		Role:         string(p.Role),
		JoinedAt:     p.JoinedAt,
	}
}

func ParticipantsToResponses(items []realtime.Participant) []ParticipantResponse {
	return lo.Map(items, func(p realtime.Participant, _ int) ParticipantResponse {
		return ParticipantToResponse(p)
	})
}

// StatusCountsToResponse сворачивает счетчики по статусам, отсутствующие статусы - нули
func StatusCountsToResponse(cityScope string, windowMinutes int, counts map[models.Status]int) StatsResponse {
	resp := StatsResponse{
		CityScope:     cityScope,
		WindowMinutes: windowMinutes,
		ByStatus:      make(map[string]int, 5),
	}
	for _, status := range []models.Status{
		models.StatusActive,
		models.StatusEnRoute,
		models.StatusOnScene,
		models.StatusResolved,
		models.StatusCancelled,
	} {
		resp.ByStatus[string(status)] = counts[status]
		resp.Total += counts[status]
	}
	return resp
}
