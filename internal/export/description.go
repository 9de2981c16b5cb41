package export

import (
	"fmt"
	"html"
	"strings"

	"concierge/api/internal/store"
)

// DescriptionToHTML renders a template description. Important blocks are
// wrapped in <strong>; bullet items become a list under their paragraph.
func DescriptionToHTML(blocks store.Description) string {
	var out strings.Builder
	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text != "" {
			escaped := html.EscapeString(text)
			if block.Important {
				escaped = "<strong>" + escaped + "</strong>"
			}
			fmt.Fprintf(&out, "<p>%s</p>\n", escaped)
		}
		if len(block.Items) == 0 {
			continue
		}
		out.WriteString("<ul>\n")
		for _, item := range block.Items {
			fmt.Fprintf(&out, "<li>%s</li>\n", html.EscapeString(item))
		}
		out.WriteString("</ul>\n")
	}
	return out.String()
}
