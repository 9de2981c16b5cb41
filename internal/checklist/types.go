package checklist

import (
	"time"

	"concierge/api/internal/store"
)

// MergedItem is one template joined with the client's progress on it.
type MergedItem struct {
	ID          string            `json:"id,omitempty"`
	TemplateID  string            `json:"templateId"`
	Title       string            `json:"title"`
	Category    string            `json:"category"`
	SubCategory string            `json:"subCategory"`
	Phase       Phase             `json:"phase"`
	Description store.Description `json:"description"`
	IsCompleted bool              `json:"isCompleted"`
	Memo        string            `json:"memo"`
	Files       []Attachment      `json:"files"`
	IsRequired  bool              `json:"isRequired"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	OrderNum    int               `json:"orderNum"`
}

// MergeResult carries the merged view. Degraded is set when progress data
// could not be loaded and defaults were substituted.
type MergeResult struct {
	Items    []MergedItem
	Degraded bool
}

type UpdateRequest struct {
	TemplateID  string     `json:"templateId"`
	IsCompleted *bool      `json:"is_completed,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ProgressRecord struct {
	ID          string     `json:"id"`
	TemplateID  string     `json:"templateId"`
	IsCompleted bool       `json:"is_completed"`
	Notes       *string    `json:"notes"`
	CompletedAt *time.Time `json:"completed_at"`
}

type ItemFailure struct {
	TemplateID string `json:"templateId"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// BatchResult reports a batch write. Count is len(Updated); a Count below
// Attempted means some items failed and are listed in Failures.
type BatchResult struct {
	Updated   []ProgressRecord `json:"updated"`
	Attempted int              `json:"attempted"`
	Count     int              `json:"count"`
	Failures  []ItemFailure    `json:"failures"`
}

func (r BatchResult) Partial() bool {
	return r.Count < r.Attempted
}

type Attachment struct {
	ID         string    `json:"id"`
	ProgressID string    `json:"progressId"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// AttachInput identifies the target row by ProgressID or, when the client has
// not touched the item yet, by TemplateID.
type AttachInput struct {
	ClientID   string
	ProgressID string
	TemplateID string
	Data       []byte
	Name       string
	MimeType   string
	UploaderID string
}

type DeleteResult struct {
	Warning string `json:"warning,omitempty"`
}

func toProgressRecord(row store.Progress) ProgressRecord {
	return ProgressRecord{
		ID:          row.ID,
		TemplateID:  row.TemplateID,
		IsCompleted: row.IsCompleted,
		Notes:       row.Notes,
		CompletedAt: row.CompletedAt,
	}
}

func toAttachment(row store.Attachment) Attachment {
	return Attachment{
		ID:         row.ID,
		ProgressID: row.ProgressID,
		Name:       row.Name,
		MimeType:   row.MimeType,
		URL:        row.URL,
		Size:       row.Size,
		UploadedBy: row.UploadedBy,
		UploadedAt: row.UploadedAt,
	}
}
