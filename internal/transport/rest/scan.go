package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/labsim/internal/domain"
)

type scanService interface {
	Record(ctx context.Context, uid, deviceID, raw string) (*domain.ScanRecord, error)
}

// ScanHandler accepts write-only scan records.
type ScanHandler struct {
	scans scanService
	log   *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scans scanService, log *slog.Logger) *ScanHandler {
	return &ScanHandler{scans: scans, log: log}
}

// ScanRequest is the body of POST /scans.
type ScanRequest struct {
	DeviceID string `json:"deviceId"`
	Raw      string `json:"raw"`
}

// ScanResponse acknowledges a stored scan. Records are never read back.
type ScanResponse struct {
	ID string `json:"id"`
}

func (h *ScanHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	rec, err := h.scans.Record(r.Context(), userID(r), req.DeviceID, req.Raw)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, ScanResponse{ID: rec.ID})
}
