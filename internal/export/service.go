package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"concierge/api/internal/checklist"
	"concierge/api/internal/store"
)

// ChecklistSource yields the merged checklist for a client.
type ChecklistSource interface {
	MergedChecklist(ctx context.Context, clientID string) (checklist.MergeResult, error)
}

// ClientLookup resolves the client the export is for.
type ClientLookup interface {
	GetClient(ctx context.Context, id string) (store.Client, error)
}

// Service provides checklist export functionality
type Service struct {
	checklists ChecklistSource
	clients    ClientLookup
	renderPDF  PDFRenderer
	now        func() time.Time
}

// NewService creates a new export service
func NewService(checklists ChecklistSource, clients ClientLookup) *Service {
	return &Service{
		checklists: checklists,
		clients:    clients,
		renderPDF:  ChromePDF,
		now:        time.Now,
	}
}

// WithPDFRenderer swaps the headless Chrome renderer.
func (s *Service) WithPDFRenderer(render PDFRenderer) *Service {
	s.renderPDF = render
	return s
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	format := req.Format
	if format == "" {
		format = FormatPDF
	}
	if format != FormatPDF && format != FormatHTML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	merged, err := s.checklists.MergedChecklist(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("merge checklist: %w", err)
	}

	data := BuildTemplateData(client, merged, s.now().UTC())
	html, err := RenderChecklistHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := sanitizeFilename(client.FamilyName + " checklist")
	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: filename + ".html",
			MimeType: "text/html; charset=utf-8",
			Degraded: merged.Degraded,
		}, nil
	default:
		pdf, err := s.renderPDF(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     pdf,
			Filename: filename + ".pdf",
			MimeType: "application/pdf",
			Degraded: merged.Degraded,
		}, nil
	}
}

// BuildTemplateData groups merged items into timeline order. Items whose
// category has no phase are collected last under "unknown".
func BuildTemplateData(client store.Client, merged checklist.MergeResult, generatedAt time.Time) TemplateData {
	data := TemplateData{
		FamilyName:      client.FamilyName,
		DestinationCity: client.DestinationCity,
		GeneratedAt:     generatedAt,
		Total:           len(merged.Items),
		Degraded:        merged.Degraded,
		Phases:          []TemplatePhase{},
	}

	grouped := checklist.GroupByPhase(merged.Items)
	order := append(checklist.Phases(), checklist.PhaseUnknown)
	for _, phase := range order {
		items := grouped[phase]
		if len(items) == 0 {
			continue
		}
		section := TemplatePhase{Name: string(phase)}
		for _, item := range items {
			if item.IsCompleted {
				data.Completed++
			}
			row := TemplateItem{
				Title:           item.Title,
				SubCategory:     item.SubCategory,
				Required:        item.IsRequired,
				Completed:       item.IsCompleted,
				CompletedAt:     item.CompletedAt,
				Memo:            item.Memo,
				DescriptionHTML: template.HTML(DescriptionToHTML(item.Description)),
			}
			for _, file := range item.Files {
				row.Files = append(row.Files, file.Name)
			}
			section.Items = append(section.Items, row)
		}
		data.Phases = append(data.Phases, section)
	}
	return data
}
