package domain

import "time"

// AttachmentType differentiates evidence files within a stage.
type AttachmentType string

const (
	AttachmentTypeGeneral   AttachmentType = "GENERAL"
	AttachmentTypeCost      AttachmentType = "COST"
	AttachmentTypeReport    AttachmentType = "REPORT"
	AttachmentTypeSignature AttachmentType = "SIGNATURE"
)

// Valid reports whether t is a known attachment type.
func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentTypeGeneral, AttachmentTypeCost, AttachmentTypeReport, AttachmentTypeSignature:
		return true
	}
	return false
}

// AttachmentReference stores metadata for a file uploaded to a case stage.
// The bytes live in external storage addressed by StorageKey.
type AttachmentReference struct {
	ID         string
	CaseID     string
	Stage      Stage
	Type       AttachmentType
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
