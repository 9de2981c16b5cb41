package search

// Result is a single catalog hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
	Phase       string `json:"phase"`
	Snippet     string `json:"snippet"`
	IsRequired  bool   `json:"isRequired"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Phase string // empty = all phases
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// Searcher can execute a catalog search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TemplateRecord is the data we index for a checklist template.
type TemplateRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
	Phase       string `json:"phase"`
	Body        string `json:"body"`
	IsRequired  bool   `json:"isRequired"`
	OrderNum    int    `json:"orderNum"`
}
