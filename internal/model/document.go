package model

import (
	"strings"
	"time"
)

type FileType string

const (
	FileTypeMarkdown FileType = "md"
	FileTypeHTML     FileType = "html"
	FileTypeText     FileType = "txt"
	// FileTypePDF is accepted for bookkeeping only, its text cannot be extracted.
	FileTypePDF FileType = "pdf"
)

func ParseFileType(value string) (FileType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "md", "markdown":
		return FileTypeMarkdown, true
	case "html", "htm":
		return FileTypeHTML, true
	case "txt", "text", "plain":
		return FileTypeText, true
	case "pdf":
		return FileTypePDF, true
	}
	return "", false
}

type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID         string         `json:"_id"`
	Title      string         `json:"title"`
	FileType   FileType       `json:"filetype"`
	Content    *string        `json:"content,omitempty"`
	Filename   *string        `json:"filename,omitempty"`
	FileURL    *string        `json:"fileUrl,omitempty"`
	Status     DocumentStatus `json:"status"`
	Summary    *string        `json:"summary,omitempty"`
	ChunkCount int            `json:"chunkCount"`
	LastError  *string        `json:"lastError,omitempty"`
	UploadedAt time.Time      `json:"uploadedAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (d *Document) HasContent() bool {
	return d.Content != nil && strings.TrimSpace(*d.Content) != ""
}

// DocumentRef is the slice of document metadata attached to search hits.
type DocumentRef struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	FileType   FileType  `json:"filetype"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (d *Document) Ref() DocumentRef {
	return DocumentRef{ID: d.ID, Title: d.Title, FileType: d.FileType, UploadedAt: d.UploadedAt}
}
