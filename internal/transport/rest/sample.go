package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/sample"
)

type sampleService interface {
	Create(ctx context.Context, uid string, input sample.CreateInput) (*domain.Sample, error)
	Get(ctx context.Context, id string) (*domain.Sample, error)
	ListByLaboratory(ctx context.Context, labID string) ([]domain.Sample, error)
	UpdateStatus(ctx context.Context, uid, id string, status domain.SampleStatus) (*domain.Sample, error)
	ValidateScan(ctx context.Context, raw, labID string) (*domain.Sample, error)
	QRCodeSVG(ctx context.Context, id string) (string, error)
}

type membershipChecker interface {
	Get(ctx context.Context, labID string) (*domain.Laboratory, error)
}

// SampleHandler serves QR-tracked samples.
type SampleHandler struct {
	samples sampleService
	labs    membershipChecker
	log     *slog.Logger
}

// NewSampleHandler creates a SampleHandler.
func NewSampleHandler(samples sampleService, labs membershipChecker, log *slog.Logger) *SampleHandler {
	return &SampleHandler{samples: samples, labs: labs, log: log}
}

// StatusRequest is the body of PATCH /samples/{id}/status.
type StatusRequest struct {
	Status domain.SampleStatus `json:"status"`
}

// ScanValidationRequest is the body of POST /laboratories/{id}/scan-validations.
type ScanValidationRequest struct {
	Raw string `json:"raw"`
}

func (h *SampleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input sample.CreateInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.samples.Create(r.Context(), userID(r), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *SampleHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.readable(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SampleHandler) ListByLaboratory(w http.ResponseWriter, r *http.Request) {
	labID := r.PathValue("id")
	if err := requireMember(r.Context(), h.labs, labID, userID(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	samples, err := h.samples.ListByLaboratory(r.Context(), labID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *SampleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.samples.UpdateStatus(r.Context(), userID(r), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// QRCode renders the sample's QR code as SVG for printing.
func (h *SampleHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	s, err := h.readable(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	svg, err := h.samples.QRCodeSVG(r.Context(), s.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(svg)) //nolint:errcheck
}

// ValidateScan checks a scanned code against the laboratory in the path.
func (h *SampleHandler) ValidateScan(w http.ResponseWriter, r *http.Request) {
	labID := r.PathValue("id")
	if err := requireMember(r.Context(), h.labs, labID, userID(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req ScanValidationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.samples.ValidateScan(r.Context(), req.Raw, labID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SampleHandler) readable(r *http.Request) (*domain.Sample, error) {
	s, err := h.samples.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if err := requireMember(r.Context(), h.labs, s.LaboratoryID, userID(r)); err != nil {
		return nil, err
	}
	return s, nil
}

func requireMember(ctx context.Context, labs membershipChecker, labID, uid string) error {
	lab, err := labs.Get(ctx, labID)
	if err != nil {
		return err
	}
	if !lab.IsMember(uid) {
		return domain.ErrNotMember
	}
	return nil
}
