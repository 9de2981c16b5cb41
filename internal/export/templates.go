package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var checklistTemplate = template.Must(
	template.New("checklist.html").Funcs(template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"phaseTitle": phaseTitle,
	}).ParseFS(templateFS, "templates/checklist.html"),
)

// TemplateData holds data for checklist template rendering
type TemplateData struct {
	FamilyName      string
	DestinationCity string
	GeneratedAt     time.Time
	Completed       int
	Total           int
	Degraded        bool
	Phases          []TemplatePhase
}

// TemplatePhase is one timeline stage with its items in catalog order.
type TemplatePhase struct {
	Name  string
	Items []TemplateItem
}

// TemplateItem holds one checklist row for the template
type TemplateItem struct {
	Title           string
	SubCategory     string
	Required        bool
	Completed       bool
	CompletedAt     *time.Time
	Memo            string
	DescriptionHTML template.HTML
	Files           []string
}

// RenderChecklistHTML renders the checklist template with provided data
func RenderChecklistHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := checklistTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func phaseTitle(phase string) string {
	words := strings.Split(strings.ReplaceAll(phase, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
