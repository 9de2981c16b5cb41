package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Client is a relocating family. UserID links the family's own login,
// AgentID the real-estate agent assigned to them.
type Client struct {
	ID              string     `db:"id"`
	UserID          *string    `db:"user_id"`
	AgentID         *string    `db:"agent_id"`
	FamilyName      string     `db:"family_name"`
	OriginCountry   string     `db:"origin_country"`
	DestinationCity string     `db:"destination_city"`
	ArrivalDate     *time.Time `db:"arrival_date"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// DescriptionBlock is one paragraph of a template's rich description.
type DescriptionBlock struct {
	Text      string   `json:"text"`
	Items     []string `json:"items,omitempty"`
	Important bool     `json:"important,omitempty"`
}

// Description is stored as a JSON array in a text column.
type Description []DescriptionBlock

func (d Description) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]DescriptionBlock(d))
	if err != nil {
		return nil, fmt.Errorf("marshal description: %w", err)
	}
	return string(raw), nil
}

func (d *Description) Scan(src any) error {
	return scanJSON(src, (*[]DescriptionBlock)(d))
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(raw), nil
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

func scanJSON(src any, target any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

type Template struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Category    string      `db:"category"`
	SubCategory string      `db:"sub_category"`
	Description Description `db:"description"`
	OrderNum    int         `db:"order_num"`
	IsRequired  bool        `db:"is_required"`
	CreatedAt   time.Time   `db:"created_at"`
}

// Progress is one client's mutable state for one template.
type Progress struct {
	ID          string     `db:"id"`
	ClientID    string     `db:"client_id"`
	TemplateID  string     `db:"template_id"`
	IsCompleted bool       `db:"is_completed"`
	Notes       *string    `db:"notes"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// ProgressPatch lists the columns an update touches. Nil fields are left
// alone; SetCompletedAt writes CompletedAt even when it is nil.
type ProgressPatch struct {
	IsCompleted    *bool
	Notes          *string
	SetCompletedAt bool
	CompletedAt    *time.Time
}

func (p ProgressPatch) Empty() bool {
	return p.IsCompleted == nil && p.Notes == nil && !p.SetCompletedAt
}

type Attachment struct {
	ID         string    `db:"id"`
	ProgressID string    `db:"progress_id"`
	Name       string    `db:"name"`
	MimeType   string    `db:"mime_type"`
	URL        string    `db:"url"`
	ObjectKey  string    `db:"object_key"`
	Size       int64     `db:"size_bytes"`
	UploadedBy string    `db:"uploaded_by"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// AttachmentOwner pairs an attachment with the client that owns its progress row.
type AttachmentOwner struct {
	Attachment
	ClientID string `db:"client_id"`
}

type HousingPreference struct {
	ClientID      string     `db:"client_id"`
	BudgetMin     int        `db:"budget_min"`
	BudgetMax     int        `db:"budget_max"`
	Bedrooms      int        `db:"bedrooms"`
	Neighborhoods StringList `db:"neighborhoods"`
	MoveInDate    *time.Time `db:"move_in_date"`
	Notes         string     `db:"notes"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type Message struct {
	ID         string    `db:"id"`
	ClientID   string    `db:"client_id"`
	SenderID   string    `db:"sender_id"`
	SenderName string    `db:"sender_name"`
	SenderRole string    `db:"sender_role"`
	Body       string    `db:"body"`
	CreatedAt  time.Time `db:"created_at"`
}

// Listing is a property link extracted from a chat message.
type Listing struct {
	ID        string    `db:"id"`
	ClientID  string    `db:"client_id"`
	MessageID string    `db:"message_id"`
	URL       string    `db:"url"`
	CreatedAt time.Time `db:"created_at"`
}
