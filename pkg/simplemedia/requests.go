package simplemedia

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// UploadImageRequest contains parameters for uploading an image
type UploadImageRequest struct {
	Owner       Owner
	Filename    string
	Reader      io.Reader
	IntendedUse IntendedUse
	Caption     string
	Flags       []Flag
}

// UploadVideoRequest contains parameters for uploading a video. Exactly one of
// Reader or URL is set; URL uploads are stored as external embeds.
type UploadVideoRequest struct {
	Owner    Owner
	Filename string
	Reader   io.Reader
	URL      string
	Caption  string
	Flags    []Flag
}

// UpdateMediaRequest contains the mutable fields of a media asset. Nil fields
// are left unchanged.
type UpdateMediaRequest struct {
	ID           uuid.UUID
	Caption      *string
	Flags        *[]Flag
	DisplayOrder *int
}
