package checklist

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"concierge/api/internal/store"
	"concierge/api/internal/util"
)

const genericMimeType = "application/octet-stream"

// AttachFile stores a file against a progress row, materialising the row
// from its template first when the client has not touched the item yet.
func (s *Service) AttachFile(ctx context.Context, in AttachInput) (Attachment, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return Attachment{}, ErrUnauthorized
	}
	name := cleanFileName(in.Name)
	if name == "" || len(in.Data) == 0 {
		return Attachment{}, fmt.Errorf("%w: file name and content are required", ErrInvalidInput)
	}
	if in.ProgressID == "" && in.TemplateID == "" {
		return Attachment{}, fmt.Errorf("%w: progressId or templateId is required", ErrInvalidInput)
	}
	if s.blobs == nil {
		return Attachment{}, fmt.Errorf("%w: no blob store configured", ErrStoreUnavailable)
	}

	progress, err := s.resolveProgress(ctx, in)
	if err != nil {
		return Attachment{}, err
	}

	id := util.NewID("att")
	mimeType := detectMimeType(in.Data, in.MimeType)
	key := path.Join(in.ClientID, progress.ID, id+"-"+name)
	url, err := s.blobs.Put(ctx, key, in.Data, mimeType)
	if err != nil {
		return Attachment{}, unavailable("upload attachment", err)
	}

	row := store.Attachment{
		ID:         id,
		ProgressID: progress.ID,
		Name:       name,
		MimeType:   mimeType,
		URL:        url,
		ObjectKey:  key,
		Size:       int64(len(in.Data)),
		UploadedBy: in.UploaderID,
		UploadedAt: s.now(),
	}
	if err := s.store.InsertAttachment(ctx, row); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.WithField("object_key", key).WithError(delErr).Warn("orphaned attachment blob")
		}
		return Attachment{}, unavailable("insert attachment", err)
	}
	return toAttachment(row), nil
}

func (s *Service) resolveProgress(ctx context.Context, in AttachInput) (store.Progress, error) {
	if in.ProgressID != "" {
		progress, err := s.store.GetProgress(ctx, in.ClientID, in.ProgressID)
		if store.IsNotFound(err) {
			return store.Progress{}, ErrNotFound
		}
		if err != nil {
			return store.Progress{}, unavailable("get progress", err)
		}
		return progress, nil
	}

	if _, err := s.store.GetTemplate(ctx, in.TemplateID); err != nil {
		if store.IsNotFound(err) {
			return store.Progress{}, ErrTemplateNotFound
		}
		return store.Progress{}, unavailable("get template", err)
	}
	unlock := s.locks.Lock(progressKey(in.ClientID, in.TemplateID))
	defer unlock()
	return s.findOrCreate(ctx, in.ClientID, in.TemplateID)
}

// ListAttachments reads a progress row's files live from the store.
func (s *Service) ListAttachments(ctx context.Context, clientID, progressID string) ([]Attachment, error) {
	if _, err := s.store.GetProgress(ctx, clientID, progressID); err != nil {
		if store.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get progress", err)
	}
	rows, err := s.store.ListAttachments(ctx, progressID)
	if err != nil {
		return nil, unavailable("list attachments", err)
	}
	items := make([]Attachment, 0, len(rows))
	for _, row := range rows {
		items = append(items, toAttachment(row))
	}
	return items, nil
}

// DeleteAttachment removes the blob and its metadata row. A failed blob
// delete still removes the row and is reported as a warning.
func (s *Service) DeleteAttachment(ctx context.Context, clientID, attachmentID string) (DeleteResult, error) {
	owned, err := s.store.GetAttachment(ctx, clientID, attachmentID)
	if store.IsNotFound(err) {
		return DeleteResult{}, ErrNotFound
	}
	if err != nil {
		return DeleteResult{}, unavailable("get attachment", err)
	}

	var result DeleteResult
	if s.blobs == nil {
		result.Warning = "file storage unavailable; stored file was not removed"
	} else if err := s.blobs.Delete(ctx, owned.ObjectKey); err != nil {
		result.Warning = "stored file could not be removed"
		s.log.WithFields(logrus.Fields{
			"client_id":     clientID,
			"attachment_id": attachmentID,
			"object_key":    owned.ObjectKey,
		}).WithError(err).Warn("attachment blob delete failed, removing metadata anyway")
	}

	if err := s.store.DeleteAttachment(ctx, attachmentID); err != nil {
		if store.IsNotFound(err) {
			return DeleteResult{}, ErrNotFound
		}
		return DeleteResult{}, unavailable("delete attachment", err)
	}
	return result, nil
}

// detectMimeType prefers the declared type unless it is missing, generic, or
// contradicted by the content.
func detectMimeType(data []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	detected := mimetype.Detect(data)
	if declared == "" || declared == genericMimeType {
		return detected.String()
	}
	if detected.Is(genericMimeType) || detected.Is(declared) {
		return declared
	}
	if strings.HasPrefix(detected.String(), "text/plain") {
		return declared
	}
	return detected.String()
}

func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}
