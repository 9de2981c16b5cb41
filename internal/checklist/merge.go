package checklist

import (
	"context"

	"github.com/sirupsen/logrus"

	"concierge/api/internal/store"
)

// MergedChecklist returns one item per catalog template, in catalog order,
// carrying the client's progress where a row exists. The caller is trusted
// to have authorised clientID.
func (s *Service) MergedChecklist(ctx context.Context, clientID string) (MergeResult, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return MergeResult{}, unavailable("list templates", err)
	}

	result := MergeResult{Items: make([]MergedItem, 0, len(templates))}
	log := s.log.WithField("client_id", clientID)

	byTemplate := map[string]store.Progress{}
	rows, err := s.store.ListProgress(ctx, clientID)
	if err != nil {
		log.WithError(err).Warn("checklist progress unavailable, serving template defaults")
		result.Degraded = true
	} else {
		for _, row := range rows {
			byTemplate[row.TemplateID] = row
		}
	}

	warned := map[string]bool{}
	for _, tpl := range templates {
		phase, err := PhaseForCategory(tpl.Category)
		if err != nil && !warned[tpl.Category] {
			warned[tpl.Category] = true
			log.WithFields(logrus.Fields{
				"template_id": tpl.ID,
				"category":    tpl.Category,
			}).WithError(err).Error("checklist template has unmapped category")
		}

		item := defaultItem(tpl, phase)
		if row, ok := byTemplate[tpl.ID]; ok {
			item.ID = row.ID
			item.IsCompleted = row.IsCompleted
			item.CompletedAt = row.CompletedAt
			if row.Notes != nil {
				item.Memo = *row.Notes
			}

			files, err := s.store.ListAttachments(ctx, row.ID)
			if err != nil {
				log.WithError(err).WithField("progress_id", row.ID).Warn("checklist attachments unavailable")
				result.Degraded = true
			} else {
				for _, file := range files {
					item.Files = append(item.Files, toAttachment(file))
				}
			}
		}
		result.Items = append(result.Items, item)
	}

	return result, nil
}

func defaultItem(tpl store.Template, phase Phase) MergedItem {
	description := tpl.Description
	if description == nil {
		description = store.Description{}
	}
	return MergedItem{
		TemplateID:  tpl.ID,
		Title:       tpl.Title,
		Category:    tpl.Category,
		SubCategory: tpl.SubCategory,
		Phase:       phase,
		Description: description,
		Files:       []Attachment{},
		IsRequired:  tpl.IsRequired,
		OrderNum:    tpl.OrderNum,
	}
}
