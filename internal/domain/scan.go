package domain

import "time"

// ScanRecord is written to scans/{id} by the mobile companion. Records are
// never read back by the server.
type ScanRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Raw       string    `json:"raw"`
	Payload   QRPayload `json:"payload"`
	ScannedAt time.Time `json:"scannedAt"`
}

// QRPayload is the JSON body encoded in sample QR codes. Timestamp is in
// Unix milliseconds.
type QRPayload struct {
	Type         string `json:"type"`
	SampleID     string `json:"sampleId"`
	LaboratoryID string `json:"laboratoryId"`
	Timestamp    int64  `json:"timestamp"`
}
