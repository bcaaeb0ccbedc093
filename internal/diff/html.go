// internal/diff/html.go
package diff

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
	"\n", "&para;<br>",
)

// RenderHTML diffs the two texts and marks insertions and deletions up for
// review pages
func (e *Engine) RenderHTML(oldText, newText string) string {
	return RenderOpsHTML(e.Compute(oldText, newText))
}

// RenderOpsHTML renders an existing operation sequence. Fragment text is
// escaped before it is wrapped.
func RenderOpsHTML(ops []Operation) string {
	var b strings.Builder
	for _, op := range ops {
		text := htmlEscaper.Replace(op.Text)
		switch op.Op {
		case Insert:
			b.WriteString(`<ins style="background:#e6ffe6;">`)
			b.WriteString(text)
			b.WriteString("</ins>")
		case Delete:
			b.WriteString(`<del style="background:#ffe6e6;">`)
			b.WriteString(text)
			b.WriteString("</del>")
		case Equal:
			b.WriteString(text)
		}
	}
	return b.String()
}
