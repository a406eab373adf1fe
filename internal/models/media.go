package models

import "time"

// MediaType classifies uploaded learning material.
type MediaType string

const (
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
	MediaTypeImage    MediaType = "image"
)

// Dir returns the storage sub-directory files of this type are written to.
func (t MediaType) Dir() string {
	switch t {
	case MediaTypeVideo:
		return "videos"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeDocument:
		return "documents"
	case MediaTypeImage:
		return "images"
	}
	return "other"
}

// Valid reports whether the media type is supported.
func (t MediaType) Valid() bool {
	return t.Dir() != "other"
}

// Media is a file shared with a class.
type Media struct {
	ID              string      `db:"id" json:"id"`
	Title           string      `db:"title" json:"title"`
	Description     *string     `db:"description" json:"description,omitempty"`
	Type            MediaType   `db:"type" json:"type"`
	ClassID         string      `db:"class_id" json:"class_id"`
	UploadedBy      string      `db:"uploaded_by" json:"uploaded_by"`
	FilePath        string      `db:"file_path" json:"-"`
	FileName        string      `db:"file_name" json:"file_name"`
	MimeType        string      `db:"mime_type" json:"mime_type"`
	SizeBytes       int64       `db:"size_bytes" json:"size_bytes"`
	DurationSeconds *int        `db:"duration_seconds" json:"duration_seconds,omitempty"`
	ViewCount       int         `db:"view_count" json:"view_count"`
	Active          bool        `db:"active" json:"active"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
	Views           []MediaView `db:"-" json:"views,omitempty"`
}

// MediaView records how far one student got through a media item.
// There is at most one view per (media, student) and Percentage only grows.
type MediaView struct {
	MediaID    string    `db:"media_id" json:"media_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Percentage int       `db:"percentage" json:"percentage"`
	ViewedAt   time.Time `db:"viewed_at" json:"viewed_at"`
}

// MediaFilter scopes media listings.
type MediaFilter struct {
	ClassID string
	Type    MediaType
	PageQuery
}

// UploadMediaRequest carries the form fields accompanying an upload.
type UploadMediaRequest struct {
	Title           string    `form:"title" validate:"required,min=1,max=200"`
	Description     *string   `form:"description" validate:"omitempty,max=2000"`
	Type            MediaType `form:"type" validate:"required,oneof=video audio document image"`
	ClassID         string    `form:"class_id" validate:"required"`
	DurationSeconds *int      `form:"duration_seconds" validate:"omitempty,min=0"`
}

// UpdateMediaRequest edits media metadata.
type UpdateMediaRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// AddViewRequest reports the watched percentage of a media item.
type AddViewRequest struct {
	Percentage int `json:"percentage" validate:"min=0,max=100"`
}

// MediaDownload is a short-lived signed link to a media file.
type MediaDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
