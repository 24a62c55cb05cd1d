package evidence

import (
	"fmt"
	"strings"
)

// FormatContext renders passages into the numbered, source/page-labelled
// context block fed to the assessment and synthesis prompts:
//
//	[S1] (policy.pdf p.3)
//	<content>
func FormatContext(passages []Passage) string {
	var b strings.Builder
	for i, p := range passages {
		src := p.Source
		if src == "" {
			src = "unknown"
		}
		page := p.Page
		if page == "" {
			page = "?"
		}
		fmt.Fprintf(&b, "[S%d] (%s p.%s)\n%s\n", i+1, src, page, p.Content)
		if i < len(passages)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
