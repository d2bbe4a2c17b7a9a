// Package media implements the upload, retrieval, and deletion pipeline for
// stored images: filename normalization, key derivation, the upload
// orchestrator, URL synthesis, and the listing facade.
package media

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a media record.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusDeleted Status = "DELETED"
)

// MediaObject is the metadata record for one stored image. Immutable after
// creation except for the single ACTIVE -> DELETED transition.
type MediaObject struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	OriginalName string     `json:"originalName"`
	StoredKey    string     `json:"storedKey"`
	MimeType     string     `json:"mimeType"`
	SizeBytes    int64      `json:"sizeBytes"`
	Width        *int       `json:"width,omitempty"`
	Height       *int       `json:"height,omitempty"`
	Status       Status     `json:"status"`
	UploadedAt   time.Time  `json:"uploadedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// ErrNotFound is returned when a media record does not exist, or is already
// deleted for operations that require an ACTIVE record.
var ErrNotFound = errors.New("media not found")
