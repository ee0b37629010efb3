package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/mission"
)

type missionService interface {
	Create(ctx context.Context, uid string, input mission.CreateInput) (*domain.Mission, error)
	Get(ctx context.Context, id string) (*domain.Mission, error)
	ListAvailable(ctx context.Context, labID string) ([]domain.Mission, error)
	Accept(ctx context.Context, uid, id string) (*domain.Mission, error)
	Start(ctx context.Context, uid, id string) (*domain.Mission, error)
	CompleteObjective(ctx context.Context, uid, id, objectiveID string) (*domain.Mission, error)
	Complete(ctx context.Context, uid, id string) (*mission.CompletionResult, error)
	Fail(ctx context.Context, uid, id string) (*domain.Mission, error)
}

// MissionHandler serves laboratory missions and their lifecycle.
type MissionHandler struct {
	missions missionService
	labs     membershipChecker
	log      *slog.Logger
}

// NewMissionHandler creates a MissionHandler.
func NewMissionHandler(missions missionService, labs membershipChecker, log *slog.Logger) *MissionHandler {
	return &MissionHandler{missions: missions, labs: labs, log: log}
}

func (h *MissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input mission.CreateInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.missions.Create(r.Context(), userID(r), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.missions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := requireMember(r.Context(), h.labs, m.LaboratoryID, userID(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MissionHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	labID := r.PathValue("id")
	if err := requireMember(r.Context(), h.labs, labID, userID(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	missions, err := h.missions.ListAvailable(r.Context(), labID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, missions)
}

func (h *MissionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.missions.Accept)
}

func (h *MissionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.missions.Start)
}

func (h *MissionHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.missions.Fail)
}

func (h *MissionHandler) CompleteObjective(w http.ResponseWriter, r *http.Request) {
	m, err := h.missions.CompleteObjective(r.Context(), userID(r), r.PathValue("id"), r.PathValue("objectiveId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Complete finishes the mission and returns the experience awarded.
func (h *MissionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	res, err := h.missions.Complete(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *MissionHandler) step(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, uid, id string) (*domain.Mission, error)) {
	m, err := fn(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
