package models

import "time"

// Upload is binary content attached to a task. Content is only loaded for
// downloads and commits.
type Upload struct {
	ID         int       `json:"id"`
	TaskID     int       `json:"task_id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	Content    []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RepositoryFile is a committed copy of an upload. It outlives the task it
// came from.
type RepositoryFile struct {
	ID           int       `json:"id"`
	FileName     string    `json:"file_name"`
	StoredPath   string    `json:"-"`
	Description  string    `json:"description"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	UploadedBy   *int      `json:"uploaded_by"`
	SourceTaskID *int      `json:"source_task_id"`
	SourceUserID *int      `json:"source_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}
