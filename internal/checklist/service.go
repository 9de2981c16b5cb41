// Package checklist merges the template catalog with per-client progress and
// applies client edits back onto it.
package checklist

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"concierge/api/internal/store"
)

type dataStore interface {
	ListTemplates(context.Context) ([]store.Template, error)
	GetTemplate(context.Context, string) (store.Template, error)
	ListProgress(context.Context, string) ([]store.Progress, error)
	FindProgress(context.Context, string, string) (store.Progress, error)
	GetProgress(context.Context, string, string) (store.Progress, error)
	EnsureProgress(context.Context, string, string) (store.Progress, bool, error)
	UpdateProgress(context.Context, string, string, store.ProgressPatch) (store.Progress, error)
	InsertAttachment(context.Context, store.Attachment) error
	ListAttachments(context.Context, string) ([]store.Attachment, error)
	GetAttachment(context.Context, string, string) (store.AttachmentOwner, error)
	DeleteAttachment(context.Context, string) error
}

// BlobStore persists attachment bytes and hands back a URL for them.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// CompletionHook runs after an item flips from open to completed.
type CompletionHook func(ctx context.Context, clientID string, tpl store.Template, record ProgressRecord)

type Service struct {
	store       dataStore
	blobs       BlobStore
	log         logrus.FieldLogger
	now         func() time.Time
	locks       *keyedMutex
	onCompleted CompletionHook
}

type Option func(*Service)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithCompletionHook(hook CompletionHook) Option {
	return func(s *Service) {
		s.onCompleted = hook
	}
}

func NewService(st dataStore, blobs BlobStore, opts ...Option) *Service {
	s := &Service{
		store: st,
		blobs: blobs,
		log:   logrus.StandardLogger(),
		now:   func() time.Time { return time.Now().UTC() },
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func progressKey(clientID, templateID string) string {
	return clientID + "/" + templateID
}
