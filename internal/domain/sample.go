package domain

import "time"

// Sample is a physical sample tracked by QR code, stored at samples/{id}.
type Sample struct {
	ID           string       `json:"id"`
	LaboratoryID string       `json:"laboratoryId"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Matrix       string       `json:"matrix"`
	Origin       string       `json:"origin,omitempty"`
	QRCode       string       `json:"qrCode"`
	QRPayload    string       `json:"qrPayload"`
	Status       SampleStatus `json:"status"`
	SubmittedBy  string       `json:"submittedBy"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
