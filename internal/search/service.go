package search

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili *Meili
	sql   *SQLSearch
	log   logrus.FieldLogger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, sql *SQLSearch, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{meili: meili, sql: sql, log: log.WithField("component", "search")}
}

// Search tries Meilisearch if healthy, otherwise falls back to SQL matching.
func (s *Service) Search(q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "meilisearch"}
		}
		s.log.WithError(err).Warn("meilisearch error, falling back to sql")
	}

	if s.sql == nil {
		return Response{Results: []Result{}, Query: q.Text, Source: "none"}
	}
	results, total, err := s.sql.Search(q)
	if err != nil {
		s.log.WithError(err).Error("sql search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Source: "sql"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "sql"}
}

// IndexTemplate indexes one catalog entry (fire-and-forget to Meilisearch).
func (s *Service) IndexTemplate(record TemplateRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTemplates([]TemplateRecord{record}); err != nil {
			s.log.WithError(err).WithField("template_id", record.ID).Warn("index template")
		}
	}()
}

// ReindexAll pushes the whole catalog from the database into Meilisearch.
// Called during Bootstrap.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.sql == nil {
		return
	}
	records, err := s.sql.LoadAllRecords(ctx)
	if err != nil {
		s.log.WithError(err).Warn("reindex load failed")
		return
	}
	if err := s.meili.IndexTemplates(records); err != nil {
		s.log.WithError(err).Warn("reindex templates")
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
