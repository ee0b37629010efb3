package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/profile"
	"github.com/heartmarshall/labsim/pkg/ctxutil"
)

type profileService interface {
	CreateOrUpdateProfile(ctx context.Context, id auth.Identity) (*domain.UserProfile, error)
	GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, input profile.UpdateProfileInput) (*domain.UserProfile, error)
	SetCurrentLaboratory(ctx context.Context, uid, labID string) error
	UpdateStatistics(ctx context.Context, uid string, partial profile.StatisticsUpdate) (*domain.Statistics, error)
	AddExperience(ctx context.Context, uid string, amount int) (*profile.ExperienceResult, error)
	SaveSnapshot(ctx context.Context, uid string, snap domain.SaveGame) error
	LoadSnapshot(ctx context.Context, uid string) (*domain.SaveGame, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.UserProfile, error)
}

type saveObserver interface {
	SnapshotSaved(err error)
}

// ProfileHandler serves the signed-in player's profile and save game.
type ProfileHandler struct {
	profiles profileService
	saves    saveObserver
	log      *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles profileService, saves saveObserver, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, saves: saves, log: log}
}

// CurrentLaboratoryRequest is the body of PUT /profile/current-laboratory.
type CurrentLaboratoryRequest struct {
	LaboratoryID string `json:"laboratoryId"`
}

// ExperienceRequest is the body of POST /profile/experience.
type ExperienceRequest struct {
	Amount int `json:"amount"`
}

// Sync creates the profile on first sign-in and refreshes lastLogin after.
func (h *ProfileHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromCtx(r.Context())
	p, err := h.profiles.CreateOrUpdateProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input profile.UpdateProfileInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.profiles.UpdateProfile(r.Context(), userID(r), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) SetCurrentLaboratory(w http.ResponseWriter, r *http.Request) {
	var req CurrentLaboratoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.profiles.SetCurrentLaboratory(r.Context(), userID(r), req.LaboratoryID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) UpdateStatistics(w http.ResponseWriter, r *http.Request) {
	var input profile.StatisticsUpdate
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	stats, err := h.profiles.UpdateStatistics(r.Context(), userID(r), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ProfileHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	var req ExperienceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	res, err := h.profiles.AddExperience(r.Context(), userID(r), req.Amount)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LoadSave returns the player's snapshot, or 204 when none was saved yet.
func (h *ProfileHandler) LoadSave(w http.ResponseWriter, r *http.Request) {
	snap, err := h.profiles.LoadSnapshot(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *ProfileHandler) StoreSave(w http.ResponseWriter, r *http.Request) {
	var snap domain.SaveGame
	if err := decodeJSON(w, r, &snap); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	err := h.profiles.SaveSnapshot(r.Context(), userID(r), snap)
	h.saves.SnapshotSaved(err)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard lists the top players. ?limit= is optional.
func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, r, h.log, domain.NewValidationError("limit", "must be between 1 and 100"))
			return
		}
		limit = n
	}
	profiles, err := h.profiles.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// userID is set by the auth middleware; routes that call it are wrapped in
// RequireIdentity.
func userID(r *http.Request) string {
	uid, _ := ctxutil.UserIDFromCtx(r.Context())
	return uid
}
