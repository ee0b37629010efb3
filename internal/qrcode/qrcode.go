// Package qrcode builds, renders and validates the JSON payloads printed on
// sample QR codes.
package qrcode

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goqrcode "github.com/skip2/go-qrcode"

	"github.com/heartmarshall/labsim/internal/domain"
)

// PayloadType is the only accepted payload type.
const PayloadType = "sample"

// DefaultMaxAge is how long a printed code stays valid.
const DefaultMaxAge = 24 * time.Hour

// ImageSize is the PNG edge length in pixels.
const ImageSize = 256

var (
	ErrMalformed          = &domain.DomainError{Msg: "QR code is not a valid payload", Kind: domain.ErrValidation}
	ErrWrongType          = &domain.DomainError{Msg: "QR code is not a sample code", Kind: domain.ErrValidation}
	ErrMissingField       = &domain.DomainError{Msg: "QR code is missing required fields", Kind: domain.ErrValidation}
	ErrExpired            = &domain.DomainError{Msg: "QR code has expired", Kind: domain.ErrValidation}
	ErrLaboratoryMismatch = &domain.DomainError{Msg: "QR code belongs to a different laboratory", Kind: domain.ErrValidation}
)

// NewPayload returns the payload for a sample printed at now.
func NewPayload(sampleID, laboratoryID string, now time.Time) domain.QRPayload {
	return domain.QRPayload{
		Type:         PayloadType,
		SampleID:     sampleID,
		LaboratoryID: laboratoryID,
		Timestamp:    now.UnixMilli(),
	}
}

// Encode renders p as the JSON string stored in the code.
func Encode(p domain.QRPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(b), nil
}

// GenerateSampleID returns SAMPLE-<base36 unix ms>-<first uuid segment>,
// upper-cased.
func GenerateSampleID(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	random, _, _ := strings.Cut(uuid.NewString(), "-")
	return strings.ToUpper("SAMPLE-" + ts + "-" + random)
}

// PNG renders content as a QR image with medium error correction.
func PNG(content string, size int) ([]byte, error) {
	png, err := goqrcode.Encode(content, goqrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}
	return png, nil
}

// SVG renders content as a printable SVG document.
func SVG(content string, size int) (string, error) {
	q, err := goqrcode.New(content, goqrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("render qr svg: %w", err)
	}
	bitmap := q.Bitmap()
	n := len(bitmap)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#FFFFFF"/>`, n, n)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="1" height="1" fill="#000000"/>`, x, y)
			}
		}
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}

// Validator parses scanned payloads against the current time.
type Validator struct {
	clock  clockwork.Clock
	maxAge time.Duration
}

// NewValidator creates a Validator. A zero maxAge means DefaultMaxAge.
func NewValidator(clock clockwork.Clock, maxAge time.Duration) *Validator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Validator{clock: clock, maxAge: maxAge}
}

// Parse decodes raw and checks type, required fields and age.
func (v *Validator) Parse(raw string) (domain.QRPayload, error) {
	var p domain.QRPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return domain.QRPayload{}, ErrMalformed
	}
	if p.Type != PayloadType {
		return domain.QRPayload{}, ErrWrongType
	}
	if p.SampleID == "" || p.LaboratoryID == "" || p.Timestamp == 0 {
		return domain.QRPayload{}, ErrMissingField
	}
	if v.clock.Since(time.UnixMilli(p.Timestamp)) > v.maxAge {
		return domain.QRPayload{}, ErrExpired
	}
	return p, nil
}

// Validate parses raw and checks it was printed for laboratoryID. It
// returns the sample id.
func (v *Validator) Validate(raw, laboratoryID string) (string, error) {
	p, err := v.Parse(raw)
	if err != nil {
		return "", err
	}
	if p.LaboratoryID != laboratoryID {
		return "", ErrLaboratoryMismatch
	}
	return p.SampleID, nil
}
