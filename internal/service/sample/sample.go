package sample

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heartmarshall/labsim/internal/blob"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/qrcode"
)

// Create registers a sample, renders its QR code to blob storage and
// stores the image URL on the sample. uid needs canManageSamples.
func (s *Service) Create(ctx context.Context, uid string, input CreateInput) (*domain.Sample, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	labID := strings.TrimSpace(input.LaboratoryID)
	if err := s.requirePermission(ctx, labID, uid); err != nil {
		return nil, fmt.Errorf("sample.Create: %w", err)
	}

	now := s.clock.Now()
	id := qrcode.GenerateSampleID(now)
	payload, err := qrcode.Encode(qrcode.NewPayload(id, labID, now))
	if err != nil {
		return nil, fmt.Errorf("sample.Create: %w", err)
	}

	png, err := qrcode.PNG(payload, qrcode.ImageSize)
	if err != nil {
		return nil, fmt.Errorf("sample.Create: %w", err)
	}
	key := blob.QRCodeKey(id)
	if err := s.images.Put(ctx, key, png, "image/png"); err != nil {
		return nil, fmt.Errorf("sample.Create: store qr image: %w", err)
	}
	url, err := s.images.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sample.Create: qr image url: %w", err)
	}

	data, err := docstore.Encode(domain.Sample{
		ID:           id,
		LaboratoryID: labID,
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Matrix:       strings.TrimSpace(input.Matrix),
		Origin:       strings.TrimSpace(input.Origin),
		QRCode:       url,
		QRPayload:    payload,
		Status:       domain.SampleReceived,
		SubmittedBy:  uid,
	})
	if err != nil {
		return nil, fmt.Errorf("sample.Create: %w", err)
	}
	data["createdAt"] = docstore.ServerTimestamp()
	data["updatedAt"] = docstore.ServerTimestamp()

	if err := s.store.Create(ctx, sampleRef(id), data); err != nil {
		return nil, fmt.Errorf("sample.Create: %w", err)
	}

	s.log.InfoContext(ctx, "sample created",
		slog.String("sample_id", id),
		slog.String("lab_id", labID),
		slog.String("user_id", uid),
	)

	return s.Get(ctx, id)
}

// Get returns the sample or an error wrapping domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Sample, error) {
	doc, err := s.store.Get(ctx, sampleRef(id))
	if err != nil {
		return nil, fmt.Errorf("sample.Get: %w", err)
	}
	sample, err := decodeSample(doc)
	if err != nil {
		return nil, fmt.Errorf("sample.Get: %w", err)
	}
	return sample, nil
}

// ListByLaboratory returns the laboratory's samples, newest first.
func (s *Service) ListByLaboratory(ctx context.Context, labID string) ([]domain.Sample, error) {
	docs, err := s.store.Query(ctx, docstore.From(Collection).
		Where("laboratoryId", docstore.OpEqual, labID).
		Order("createdAt", true))
	if err != nil {
		return nil, fmt.Errorf("sample.ListByLaboratory: %w", err)
	}

	out := make([]domain.Sample, 0, len(docs))
	for i := range docs {
		sample, err := decodeSample(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("sample.ListByLaboratory: %w", err)
		}
		out = append(out, *sample)
	}
	return out, nil
}

// UpdateStatus moves the sample to status. Completing a sample counts
// towards the player's samplesAnalyzed statistic.
func (s *Service) UpdateStatus(ctx context.Context, uid, id string, status domain.SampleStatus) (*domain.Sample, error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePermission(ctx, current.LaboratoryID, uid); err != nil {
		return nil, fmt.Errorf("sample.UpdateStatus: %w", err)
	}

	var from domain.SampleStatus
	err = s.store.Mutate(ctx, sampleRef(id), func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, fmt.Errorf("%s: %w", sampleRef(id), domain.ErrNotFound)
		}
		from = domain.SampleStatus(fmt.Sprint(data["status"]))
		if !from.CanTransitionTo(status) {
			return nil, domain.ErrInvalidTransition
		}
		data["status"] = string(status)
		data["updatedAt"] = docstore.ServerTimestamp()
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sample.UpdateStatus: %w", err)
	}

	if status == domain.SampleCompleted {
		if err := s.stats.IncrementStatistic(ctx, uid, "samplesAnalyzed", 1); err != nil {
			s.log.WarnContext(ctx, "record analyzed sample",
				slog.String("user_id", uid),
				slog.String("error", err.Error()),
			)
		}
	}

	s.log.InfoContext(ctx, "sample status changed",
		slog.String("sample_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(status)),
	)
	return s.Get(ctx, id)
}

// ValidateScan checks a scanned QR payload against labID and returns the
// sample it designates.
func (s *Service) ValidateScan(ctx context.Context, raw, labID string) (*domain.Sample, error) {
	id, err := s.qr.Validate(raw, labID)
	if err != nil {
		return nil, fmt.Errorf("sample.ValidateScan: %w", err)
	}
	sample, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sample.LaboratoryID != labID {
		return nil, fmt.Errorf("sample.ValidateScan: %w", qrcode.ErrLaboratoryMismatch)
	}
	return sample, nil
}

// QRCodeSVG renders the sample's QR code as a printable SVG document.
func (s *Service) QRCodeSVG(ctx context.Context, id string) (string, error) {
	sample, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	svg, err := qrcode.SVG(sample.QRPayload, qrcode.ImageSize)
	if err != nil {
		return "", fmt.Errorf("sample.QRCodeSVG: %w", err)
	}
	return svg, nil
}
