package model

import "time"

// DocumentStatus is the lifecycle status of a registered document.
// It is a closed enumeration; the store rejects anything else.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusConfirmed DocumentStatus = "confirmed"
	DocumentStatusNotFound  DocumentStatus = "not_found"
)

// Document represents a registered file fingerprint in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	FileHash        string         `json:"file_hash"`
	FileSize        int64          `json:"file_size"`
	MimeType        string         `json:"mime_type"`
	UploaderAddress string         `json:"uploader_address"`
	Tags            []string       `json:"tags,omitempty"`
	Status          DocumentStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
