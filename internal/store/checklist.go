package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"concierge/api/internal/util"
)

const templateColumns = `id, title, category, sub_category, description, order_num, is_required, created_at`

const progressColumns = `id, client_id, template_id, is_completed, notes, completed_at, created_at, updated_at`

const attachmentColumns = `id, progress_id, name, mime_type, url, object_key, size_bytes, uploaded_by, uploaded_at`

// ListTemplates returns the catalog in its canonical order.
func (s *SQLStore) ListTemplates(ctx context.Context) ([]Template, error) {
	items := make([]Template, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+templateColumns+`
		FROM checklist_templates
		ORDER BY category ASC, order_num ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return items, nil
}

func (s *SQLStore) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	var item Template
	err := s.db.GetContext(ctx, &item, s.q(`SELECT `+templateColumns+` FROM checklist_templates WHERE id=?`), templateID)
	if err != nil {
		return Template{}, err
	}
	return item, nil
}

func (s *SQLStore) CountTemplates(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM checklist_templates`); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return count, nil
}

func (s *SQLStore) InsertTemplate(ctx context.Context, item Template) error {
	if item.ID == "" {
		item.ID = util.NewID("tpl")
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO checklist_templates (id, title, category, sub_category, description, order_num, is_required, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), item.ID, item.Title, item.Category, item.SubCategory, item.Description, item.OrderNum, item.IsRequired, now())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// SearchTemplates matches title, sub-category and description text with a
// case-insensitive LIKE. Categories are compared after lowercasing and
// folding '-' and ' ' to '_'; an empty list matches every category.
func (s *SQLStore) SearchTemplates(ctx context.Context, text string, categories []string, limit int) ([]Template, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(text)) + "%"
	query := `
		SELECT ` + templateColumns + `
		FROM checklist_templates
		WHERE (LOWER(title) LIKE ? OR LOWER(sub_category) LIKE ? OR LOWER(description) LIKE ?)`
	args := []any{pattern, pattern, pattern}
	if len(categories) > 0 {
		query += ` AND REPLACE(REPLACE(LOWER(TRIM(category)), '-', '_'), ' ', '_') IN (?)`
		args = append(args, categories)
	}
	query += ` ORDER BY category ASC, order_num ASC, id ASC LIMIT ?`
	args = append(args, limit)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search templates: %w", err)
	}
	items := make([]Template, 0)
	if err := s.db.SelectContext(ctx, &items, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("search templates: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListProgress(ctx context.Context, clientID string) ([]Progress, error) {
	items := make([]Progress, 0)
	err := s.db.SelectContext(ctx, &items, s.q(`
		SELECT `+progressColumns+`
		FROM checklist_progress
		WHERE client_id=?
	`), clientID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return items, nil
}

// FindProgress looks up the row for (client, template).
func (s *SQLStore) FindProgress(ctx context.Context, clientID, templateID string) (Progress, error) {
	var item Progress
	err := s.db.GetContext(ctx, &item, s.q(`
		SELECT `+progressColumns+`
		FROM checklist_progress
		WHERE client_id=? AND template_id=?
	`), clientID, templateID)
	if err != nil {
		return Progress{}, err
	}
	return item, nil
}

// GetProgress loads a row by id, scoped to its owning client. A row owned by
// another client reports sql.ErrNoRows.
func (s *SQLStore) GetProgress(ctx context.Context, clientID, progressID string) (Progress, error) {
	var item Progress
	err := s.db.GetContext(ctx, &item, s.q(`
		SELECT `+progressColumns+`
		FROM checklist_progress
		WHERE id=? AND client_id=?
	`), progressID, clientID)
	if err != nil {
		return Progress{}, err
	}
	return item, nil
}

// EnsureProgress is the find-or-create path for (client, template). The
// unique index makes concurrent callers converge on one row; created reports
// whether this call inserted it.
func (s *SQLStore) EnsureProgress(ctx context.Context, clientID, templateID string) (Progress, bool, error) {
	ts := now()
	result, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO checklist_progress (id, client_id, template_id, is_completed, notes, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)
		ON CONFLICT (client_id, template_id) DO NOTHING
	`), util.NewID("prg"), clientID, templateID, false, ts, ts)
	if err != nil {
		return Progress{}, false, fmt.Errorf("ensure progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Progress{}, false, fmt.Errorf("ensure progress rows: %w", err)
	}

	item, err := s.FindProgress(ctx, clientID, templateID)
	if err != nil {
		return Progress{}, false, fmt.Errorf("load ensured progress: %w", err)
	}
	return item, affected > 0, nil
}

// UpdateProgress applies patch to the row identified by (client, progress id)
// and returns the stored result.
func (s *SQLStore) UpdateProgress(ctx context.Context, clientID, progressID string, patch ProgressPatch) (Progress, error) {
	if patch.Empty() {
		return s.GetProgress(ctx, clientID, progressID)
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if patch.IsCompleted != nil {
		sets = append(sets, "is_completed=?")
		args = append(args, *patch.IsCompleted)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, *patch.Notes)
	}
	if patch.SetCompletedAt {
		sets = append(sets, "completed_at=?")
		if patch.CompletedAt != nil {
			args = append(args, patch.CompletedAt.UTC())
		} else {
			args = append(args, nil)
		}
	}
	sets = append(sets, "updated_at=?")
	args = append(args, now(), progressID, clientID)

	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE checklist_progress
		SET `+strings.Join(sets, ", ")+`
		WHERE id=? AND client_id=?
	`), args...)
	if err != nil {
		return Progress{}, fmt.Errorf("update progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Progress{}, fmt.Errorf("update progress rows: %w", err)
	}
	if affected == 0 {
		return Progress{}, sql.ErrNoRows
	}
	return s.GetProgress(ctx, clientID, progressID)
}

func (s *SQLStore) InsertAttachment(ctx context.Context, item Attachment) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO checklist_attachments (id, progress_id, name, mime_type, url, object_key, size_bytes, uploaded_by, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), item.ID, item.ProgressID, item.Name, item.MimeType, item.URL, item.ObjectKey, item.Size, item.UploadedBy, item.UploadedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *SQLStore) ListAttachments(ctx context.Context, progressID string) ([]Attachment, error) {
	items := make([]Attachment, 0)
	err := s.db.SelectContext(ctx, &items, s.q(`
		SELECT `+attachmentColumns+`
		FROM checklist_attachments
		WHERE progress_id=?
		ORDER BY uploaded_at ASC, id ASC
	`), progressID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}

// GetAttachment loads an attachment only if its progress row belongs to clientID.
func (s *SQLStore) GetAttachment(ctx context.Context, clientID, attachmentID string) (AttachmentOwner, error) {
	var item AttachmentOwner
	err := s.db.GetContext(ctx, &item, s.q(`
		SELECT a.id, a.progress_id, a.name, a.mime_type, a.url, a.object_key, a.size_bytes, a.uploaded_by, a.uploaded_at, p.client_id
		FROM checklist_attachments a
		JOIN checklist_progress p ON p.id = a.progress_id
		WHERE a.id=? AND p.client_id=?
	`), attachmentID, clientID)
	if err != nil {
		return AttachmentOwner{}, err
	}
	return item, nil
}

func (s *SQLStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM checklist_attachments WHERE id=?`), attachmentID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attachment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
