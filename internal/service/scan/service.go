// Package scan stores QR scans submitted by mobile companions. Records are
// write-only: nothing in the server reads them back.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/qrcode"
)

// Collection holds scan records.
const Collection = "scans"

const maxRawLength = 4096

type documentStore interface {
	Create(ctx context.Context, ref docstore.Ref, data map[string]any) error
}

type payloadParser interface {
	Parse(raw string) (domain.QRPayload, error)
}

type scanObserver interface {
	ScanRecorded(outcome string)
}

type noopObserver struct{}

func (noopObserver) ScanRecorded(string) {}

// Service writes scan records.
type Service struct {
	store    documentStore
	parser   payloadParser
	observer scanObserver
	clock    clockwork.Clock
	log      *slog.Logger
}

// NewService creates a new scan service. observer may be nil.
func NewService(log *slog.Logger, store documentStore, parser payloadParser, observer scanObserver, clock clockwork.Clock) *Service {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Service{
		store:    store,
		parser:   parser,
		observer: observer,
		clock:    clock,
		log:      log.With("service", "scan"),
	}
}

// Record parses raw and stores it as a new scan for uid.
func (s *Service) Record(ctx context.Context, uid, deviceID, raw string) (*domain.ScanRecord, error) {
	if uid == "" {
		return nil, domain.ErrUnauthorized
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.NewValidationError("raw", "required")
	}
	if len(raw) > maxRawLength {
		return nil, domain.NewValidationError("raw", "max 4096 bytes")
	}

	payload, err := s.parser.Parse(raw)
	if err != nil {
		s.observer.ScanRecorded(rejection(err))
		return nil, domain.NewValidationError("raw", err.Error())
	}

	rec := domain.ScanRecord{
		ID:        uuid.NewString(),
		UserID:    uid,
		DeviceID:  strings.TrimSpace(deviceID),
		Raw:       raw,
		Payload:   payload,
		ScannedAt: s.clock.Now().UTC(),
	}
	data, err := docstore.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("scan.Record: %w", err)
	}
	data = docstore.StripNil(data)
	delete(data, "id")

	if err := s.store.Create(ctx, docstore.Doc(Collection, rec.ID), data); err != nil {
		s.observer.ScanRecorded("error")
		return nil, fmt.Errorf("scan.Record: %w", err)
	}

	s.observer.ScanRecorded("accepted")
	s.log.InfoContext(ctx, "scan recorded",
		slog.String("scan_id", rec.ID),
		slog.String("user_id", uid),
		slog.String("sample_id", payload.SampleID),
	)
	return &rec, nil
}

func rejection(err error) string {
	switch {
	case errors.Is(err, qrcode.ErrMalformed):
		return "malformed"
	case errors.Is(err, qrcode.ErrWrongType):
		return "wrong_type"
	case errors.Is(err, qrcode.ErrMissingField):
		return "missing_field"
	case errors.Is(err, qrcode.ErrExpired):
		return "expired"
	default:
		return "rejected"
	}
}
