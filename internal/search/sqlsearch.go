package search

import (
	"context"
	"strings"
	"unicode"

	"concierge/api/internal/checklist"
	"concierge/api/internal/store"
)

// TemplateFinder is the relational side of catalog search.
type TemplateFinder interface {
	SearchTemplates(ctx context.Context, text string, categories []string, limit int) ([]store.Template, error)
	ListTemplates(ctx context.Context) ([]store.Template, error)
}

// SQLSearch implements Searcher with case-insensitive LIKE matching. It is
// the fallback whenever Meilisearch is missing or unhealthy.
type SQLSearch struct {
	store TemplateFinder
}

func NewSQLSearch(store TemplateFinder) *SQLSearch {
	return &SQLSearch{store: store}
}

// Healthy always returns true; if the database is down the whole app is down.
func (p *SQLSearch) Healthy() bool {
	return true
}

func (p *SQLSearch) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var categories []string
	if q.Phase != "" {
		categories = checklist.CategoriesForPhase(checklist.Phase(q.Phase))
		if len(categories) == 0 {
			return []Result{}, 0, nil
		}
	}
	rows, err := p.store.SearchTemplates(context.Background(), q.Text, categories, limit)
	if err != nil {
		return nil, 0, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		record := RecordFromTemplate(row)
		results = append(results, Result{
			ID:          record.ID,
			Title:       record.Title,
			Category:    record.Category,
			SubCategory: record.SubCategory,
			Phase:       record.Phase,
			Snippet:     snippet(record.Body, q.Text),
			IsRequired:  record.IsRequired,
		})
	}
	return results, len(results), nil
}

// LoadAllRecords reads the whole catalog in index form.
func (p *SQLSearch) LoadAllRecords(ctx context.Context) ([]TemplateRecord, error) {
	rows, err := p.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]TemplateRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RecordFromTemplate(row))
	}
	return records, nil
}

// RecordFromTemplate flattens a template's description into searchable text.
func RecordFromTemplate(tpl store.Template) TemplateRecord {
	phase, _ := checklist.PhaseForCategory(tpl.Category)
	var body []string
	for _, block := range tpl.Description {
		if text := strings.TrimSpace(block.Text); text != "" {
			body = append(body, text)
		}
		body = append(body, block.Items...)
	}
	return TemplateRecord{
		ID:          tpl.ID,
		Title:       tpl.Title,
		Category:    tpl.Category,
		SubCategory: tpl.SubCategory,
		Phase:       string(phase),
		Body:        strings.Join(body, " "),
		IsRequired:  tpl.IsRequired,
		OrderNum:    tpl.OrderNum,
	}
}

const snippetRadius = 60

func snippet(body, text string) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) == 0 {
		return ""
	}
	needle := []rune(strings.ToLower(strings.TrimSpace(text)))
	idx := indexFold(runes, needle)
	if idx < 0 {
		idx = 0
	}
	start := max(idx-snippetRadius, 0)
	end := min(idx+len(needle)+snippetRadius, len(runes))
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}

// indexFold returns the rune offset of the lowercase needle in haystack,
// comparing case-insensitively, or -1.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
