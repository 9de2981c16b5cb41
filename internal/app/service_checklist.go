package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"concierge/api/internal/checklist"
	"concierge/api/internal/export"
	"concierge/api/internal/search"
	"concierge/api/internal/store"
	"concierge/api/internal/util"
)

type ChecklistUpdateInput struct {
	Client string                    `json:"client"`
	Items  []checklist.UpdateRequest `json:"items" validate:"required,min=1,max=200"`
}

type TemplateInput struct {
	ID          string            `json:"id"`
	Title       string            `json:"title" validate:"required,max=200"`
	Category    string            `json:"category" validate:"required"`
	SubCategory string            `json:"subCategory" validate:"max=120"`
	Description store.Description `json:"description"`
	OrderNum    int               `json:"orderNum" validate:"gte=0"`
	IsRequired  bool              `json:"isRequired"`
}

func (s *Service) Checklist(ctx context.Context, session Session, requestedClient string) (map[string]any, error) {
	client, err := s.ResolveClient(ctx, session, requestedClient)
	if err != nil {
		return nil, err
	}
	merged, err := s.checklist.MergedChecklist(ctx, client.ID)
	if err != nil {
		return nil, err
	}

	grouped := checklist.GroupByPhase(merged.Items)
	groups := make(map[string][]checklist.MergedItem, len(grouped))
	for phase, items := range grouped {
		groups[string(phase)] = items
	}
	return map[string]any{
		"clientId":          client.ID,
		"checklist":         merged.Items,
		"groupedByCategory": groups,
		"phases":            checklist.Phases(),
		"degraded":          merged.Degraded,
	}, nil
}

func (s *Service) UpdateChecklist(ctx context.Context, session Session, input ChecklistUpdateInput) (checklist.BatchResult, error) {
	client, err := s.ResolveClient(ctx, session, input.Client)
	if err != nil {
		return checklist.BatchResult{}, err
	}
	return s.checklist.ApplyUpdates(ctx, client.ID, input.Items)
}

type UploadInput struct {
	Client     string
	ProgressID string
	TemplateID string
	Name       string
	MimeType   string
	Data       []byte
}

func (s *Service) UploadAttachment(ctx context.Context, session Session, input UploadInput) (checklist.Attachment, error) {
	client, err := s.ResolveClient(ctx, session, input.Client)
	if err != nil {
		return checklist.Attachment{}, err
	}
	return s.checklist.AttachFile(ctx, checklist.AttachInput{
		ClientID:   client.ID,
		ProgressID: strings.TrimSpace(input.ProgressID),
		TemplateID: strings.TrimSpace(input.TemplateID),
		Data:       input.Data,
		Name:       input.Name,
		MimeType:   input.MimeType,
		UploaderID: session.UserID,
	})
}

func (s *Service) ListAttachments(ctx context.Context, session Session, requestedClient, progressID string) ([]checklist.Attachment, error) {
	client, err := s.ResolveClient(ctx, session, requestedClient)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(progressID) == "" {
		return nil, validationError("progressId is required")
	}
	return s.checklist.ListAttachments(ctx, client.ID, progressID)
}

func (s *Service) DeleteAttachment(ctx context.Context, session Session, requestedClient, attachmentID string) (checklist.DeleteResult, error) {
	client, err := s.ResolveClient(ctx, session, requestedClient)
	if err != nil {
		return checklist.DeleteResult{}, err
	}
	return s.checklist.DeleteAttachment(ctx, client.ID, attachmentID)
}

func (s *Service) ExportChecklist(ctx context.Context, session Session, requestedClient, format string) (*export.Result, error) {
	client, err := s.ResolveClient(ctx, session, requestedClient)
	if err != nil {
		return nil, err
	}
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{ClientID: client.ID, Format: parsed})
}

func (s *Service) SearchTemplates(text, phase string, limit int) (search.Response, error) {
	phase = strings.TrimSpace(phase)
	if phase != "" {
		parsed, err := checklist.ParsePhase(phase)
		if err != nil {
			return search.Response{}, validationError("phase is not recognised")
		}
		phase = string(parsed)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: strings.TrimSpace(text), Source: "none"}, nil
	}
	return s.search.Search(search.Query{Text: text, Phase: phase, Limit: limit}), nil
}

// CreateTemplate adds a catalog entry. Existing entries are never edited
// here; the catalog is append-only from the API.
func (s *Service) CreateTemplate(ctx context.Context, input TemplateInput) (map[string]any, error) {
	if _, err := checklist.PhaseForCategory(input.Category); err != nil {
		return nil, validationError("category does not map to a phase")
	}
	tpl := store.Template{
		ID:          firstNonBlank(input.ID, util.NewID("tpl")),
		Title:       strings.TrimSpace(input.Title),
		Category:    strings.TrimSpace(input.Category),
		SubCategory: strings.TrimSpace(input.SubCategory),
		Description: input.Description,
		OrderNum:    input.OrderNum,
		IsRequired:  input.IsRequired,
	}
	if err := s.store.InsertTemplate(ctx, tpl); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domainError(http.StatusConflict, "TEMPLATE_EXISTS", "Template id already exists", nil)
		}
		return nil, unavailable(err)
	}
	if s.search != nil {
		s.search.IndexTemplate(search.RecordFromTemplate(tpl))
	}
	return templatePayload(tpl), nil
}

func templatePayload(tpl store.Template) map[string]any {
	phase, _ := checklist.PhaseForCategory(tpl.Category)
	return map[string]any{
		"id":          tpl.ID,
		"title":       tpl.Title,
		"category":    tpl.Category,
		"subCategory": tpl.SubCategory,
		"phase":       phase,
		"description": tpl.Description,
		"orderNum":    tpl.OrderNum,
		"isRequired":  tpl.IsRequired,
	}
}
