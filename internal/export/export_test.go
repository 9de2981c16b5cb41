package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"concierge/api/internal/checklist"
	"concierge/api/internal/store"
)

type fakeChecklists struct {
	result checklist.MergeResult
	err    error
}

func (f fakeChecklists) MergedChecklist(context.Context, string) (checklist.MergeResult, error) {
	return f.result, f.err
}

type fakeClients map[string]store.Client

func (f fakeClients) GetClient(_ context.Context, id string) (store.Client, error) {
	client, ok := f[id]
	if !ok {
		return store.Client{}, errors.New("client not found")
	}
	return client, nil
}

func sampleMerge() checklist.MergeResult {
	done := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return checklist.MergeResult{Items: []checklist.MergedItem{
		{TemplateID: "t3", Title: "Book movers", Category: "before_arrival", Phase: checklist.PhasePreDeparture},
		{TemplateID: "t1", Title: "Open bank account", Category: "arrival", Phase: checklist.PhaseArrival,
			IsRequired: true, IsCompleted: true, CompletedAt: &done, Memo: "Chase on 5th",
			Files: []checklist.Attachment{{Name: "lease.pdf"}}},
		{TemplateID: "t9", Title: "Mystery task", Category: "misc", Phase: checklist.PhaseUnknown},
		{TemplateID: "t2", Title: "Get SSN", Category: "arrival", Phase: checklist.PhaseArrival,
			Description: store.Description{{Text: "Bring <passport>", Important: true, Items: []string{"I-94"}}}},
	}}
}

func TestDescriptionToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    store.Description
		expected string
	}{
		{"nil input", nil, ""},
		{"plain paragraph", store.Description{{Text: "Hello world"}}, "<p>Hello world</p>\n"},
		{"important is bold", store.Description{{Text: "Deadline", Important: true}}, "<p><strong>Deadline</strong></p>\n"},
		{"items become a list", store.Description{{Text: "Bring", Items: []string{"passport", "visa"}}},
			"<p>Bring</p>\n<ul>\n<li>passport</li>\n<li>visa</li>\n</ul>\n"},
		{"escapes markup", store.Description{{Text: "<script>x</script>"}}, "<p>&lt;script&gt;x&lt;/script&gt;</p>\n"},
		{"blank text with items", store.Description{{Text: "  ", Items: []string{"a"}}}, "<ul>\n<li>a</li>\n</ul>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DescriptionToHTML(tt.input)
			if result != tt.expected {
				t.Errorf("DescriptionToHTML() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"Smith family v1.2", "Smith-family-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "checklist"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatPDF {
		t.Fatalf("ParseFormat(\"\") = %q, %v", f, err)
	}
	if f, err := ParseFormat("html"); err != nil || f != FormatHTML {
		t.Fatalf("ParseFormat(html) = %q, %v", f, err)
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBuildTemplateDataOrdersPhases(t *testing.T) {
	client := store.Client{FamilyName: "Smith", DestinationCity: "Austin"}
	data := BuildTemplateData(client, sampleMerge(), time.Now())

	var names []string
	for _, phase := range data.Phases {
		names = append(names, phase.Name)
	}
	if got := strings.Join(names, ","); got != "pre_departure,arrival,unknown" {
		t.Fatalf("phase order = %q", got)
	}
	if data.Total != 4 || data.Completed != 1 {
		t.Fatalf("counts = %d/%d", data.Completed, data.Total)
	}
	arrival := data.Phases[1].Items
	if len(arrival) != 2 || arrival[0].Title != "Open bank account" || arrival[1].Title != "Get SSN" {
		t.Fatalf("arrival items out of order: %+v", arrival)
	}
	if len(arrival[0].Files) != 1 || arrival[0].Files[0] != "lease.pdf" {
		t.Fatalf("files = %v", arrival[0].Files)
	}
}

func TestRenderChecklistHTML(t *testing.T) {
	client := store.Client{FamilyName: "Smith", DestinationCity: "Austin"}
	merged := sampleMerge()
	merged.Degraded = true
	data := BuildTemplateData(client, merged, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	html, err := RenderChecklistHTML(data)
	if err != nil {
		t.Fatalf("RenderChecklistHTML() error = %v", err)
	}

	for _, want := range []string{
		"Smith", "Austin", "1 of 4 complete", "Mar 5, 2026",
		"Pre Departure", "Arrival", "Unknown",
		"completed Mar 4, 2026", "Chase on 5th", "lease.pdf",
		"<strong>Bring &lt;passport&gt;</strong>", "<li>I-94</li>",
		"could not be loaded",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;strong&gt;") {
		t.Error("description HTML was escaped - should be rendered as raw HTML")
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(fakeChecklists{result: sampleMerge()}, fakeClients{"c1": {ID: "c1", FamilyName: "Smith"}})

	result, err := svc.Export(context.Background(), Request{ClientID: "c1", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "Smith-checklist.html" {
		t.Errorf("filename = %q", result.Filename)
	}
	if !strings.HasPrefix(result.MimeType, "text/html") {
		t.Errorf("mime = %q", result.MimeType)
	}
	if !strings.Contains(string(result.Data), "Open bank account") {
		t.Error("export body missing items")
	}
}

func TestExportPDFUsesRenderer(t *testing.T) {
	var rendered string
	svc := NewService(fakeChecklists{result: sampleMerge()}, fakeClients{"c1": {ID: "c1", FamilyName: "Smith"}}).
		WithPDFRenderer(func(_ context.Context, html string) ([]byte, error) {
			rendered = html
			return []byte("%PDF-1.4"), nil
		})

	result, err := svc.Export(context.Background(), Request{ClientID: "c1"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.MimeType != "application/pdf" || result.Filename != "Smith-checklist.pdf" {
		t.Errorf("unexpected result %q %q", result.MimeType, result.Filename)
	}
	if !strings.Contains(rendered, "Book movers") {
		t.Error("renderer did not receive checklist HTML")
	}
}

func TestExportErrors(t *testing.T) {
	clients := fakeClients{"c1": {ID: "c1"}}

	_, err := NewService(fakeChecklists{}, clients).Export(context.Background(), Request{ClientID: "c1", Format: "docx"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	_, err = NewService(fakeChecklists{}, clients).Export(context.Background(), Request{ClientID: "missing", Format: FormatHTML})
	if err == nil {
		t.Error("expected error for unknown client")
	}

	storeDown := errors.New("store down")
	_, err = NewService(fakeChecklists{err: storeDown}, clients).Export(context.Background(), Request{ClientID: "c1", Format: FormatHTML})
	if !errors.Is(err, storeDown) {
		t.Errorf("expected wrapped store error, got %v", err)
	}

	missing := NewService(fakeChecklists{}, clients).WithPDFRenderer(func(context.Context, string) ([]byte, error) {
		return nil, ErrPDFDependencyMissing
	})
	if _, err := missing.Export(context.Background(), Request{ClientID: "c1"}); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Errorf("expected ErrPDFDependencyMissing, got %v", err)
	}
}
