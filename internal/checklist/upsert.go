package checklist

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"concierge/api/internal/store"
)

// ApplyUpdates writes each request independently. A failed item is reported
// in Failures and never stops the rest of the batch.
func (s *Service) ApplyUpdates(ctx context.Context, clientID string, updates []UpdateRequest) (BatchResult, error) {
	if strings.TrimSpace(clientID) == "" {
		return BatchResult{}, ErrUnauthorized
	}

	result := BatchResult{
		Updated:   make([]ProgressRecord, 0, len(updates)),
		Attempted: len(updates),
		Failures:  []ItemFailure{},
	}
	for _, req := range updates {
		record, err := s.applyOne(ctx, clientID, req)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"client_id":   clientID,
				"template_id": req.TemplateID,
			}).WithError(err).Warn("checklist update failed")
			result.Failures = append(result.Failures, itemFailure(req.TemplateID, err))
			continue
		}
		result.Updated = append(result.Updated, record)
	}
	result.Count = len(result.Updated)
	return result, nil
}

func (s *Service) applyOne(ctx context.Context, clientID string, req UpdateRequest) (ProgressRecord, error) {
	templateID := strings.TrimSpace(req.TemplateID)
	if templateID == "" {
		return ProgressRecord{}, ErrInvalidInput
	}

	tpl, err := s.store.GetTemplate(ctx, templateID)
	if store.IsNotFound(err) {
		return ProgressRecord{}, ErrTemplateNotFound
	}
	if err != nil {
		return ProgressRecord{}, unavailable("get template", err)
	}

	unlock := s.locks.Lock(progressKey(clientID, templateID))
	defer unlock()

	current, err := s.findOrCreate(ctx, clientID, templateID)
	if err != nil {
		return ProgressRecord{}, err
	}

	patch, completedNow := s.derivePatch(current, req)
	updated, err := s.store.UpdateProgress(ctx, clientID, current.ID, patch)
	if store.IsNotFound(err) {
		return ProgressRecord{}, ErrNotFound
	}
	if err != nil {
		return ProgressRecord{}, unavailable("update progress", err)
	}

	record := toProgressRecord(updated)
	if completedNow && s.onCompleted != nil {
		s.onCompleted(ctx, clientID, tpl, record)
	}
	return record, nil
}

// findOrCreate must run under the (client, template) lock.
func (s *Service) findOrCreate(ctx context.Context, clientID, templateID string) (store.Progress, error) {
	current, err := s.store.FindProgress(ctx, clientID, templateID)
	if err == nil {
		return current, nil
	}
	if !store.IsNotFound(err) {
		return store.Progress{}, unavailable("find progress", err)
	}

	current, created, err := s.store.EnsureProgress(ctx, clientID, templateID)
	if err != nil {
		return store.Progress{}, unavailable("create progress", err)
	}
	if created {
		s.log.WithFields(logrus.Fields{
			"client_id":   clientID,
			"template_id": templateID,
			"progress_id": current.ID,
		}).Debug("checklist progress created")
	}
	return current, nil
}

// derivePatch turns a request into column writes. completed_at is stamped
// only when the item moves from open to completed, cleared when it is
// reopened, and an explicit completed_at is honoured only while the item
// ends up completed.
func (s *Service) derivePatch(current store.Progress, req UpdateRequest) (store.ProgressPatch, bool) {
	patch := store.ProgressPatch{
		IsCompleted: req.IsCompleted,
		Notes:       req.Notes,
	}

	completedNow := false
	switch {
	case req.IsCompleted != nil && *req.IsCompleted:
		completedNow = !current.IsCompleted
		if req.CompletedAt != nil {
			stamp := req.CompletedAt.UTC()
			patch.SetCompletedAt = true
			patch.CompletedAt = &stamp
		} else if completedNow || current.CompletedAt == nil {
			stamp := s.now()
			patch.SetCompletedAt = true
			patch.CompletedAt = &stamp
		}
	case req.IsCompleted != nil:
		patch.SetCompletedAt = true
		patch.CompletedAt = nil
	case req.CompletedAt != nil && current.IsCompleted:
		stamp := req.CompletedAt.UTC()
		patch.SetCompletedAt = true
		patch.CompletedAt = &stamp
	}
	return patch, completedNow
}

func itemFailure(templateID string, err error) ItemFailure {
	failure := ItemFailure{TemplateID: templateID, Message: err.Error()}
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		failure.Code = "TEMPLATE_NOT_FOUND"
	case errors.Is(err, ErrNotFound):
		failure.Code = "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		failure.Code = "VALIDATION_ERROR"
	case errors.Is(err, ErrStoreUnavailable):
		failure.Code = "STORE_UNAVAILABLE"
		failure.Message = "progress store unavailable"
	default:
		failure.Code = "SERVER_ERROR"
		failure.Message = "update failed"
	}
	return failure
}
