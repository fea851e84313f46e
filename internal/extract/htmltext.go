package extract

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// flatten renders HTML to a single line of plain text: tags become
// spaces, entities are decoded, whitespace runs collapse. Keyword and
// labeled-value rules match against this form.
func flatten(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTagPattern.ReplaceAllString(html, " ")
	text = entityReplacer.Replace(text)
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

// cleanFragment normalizes a captured product name or label value:
// entities decoded, whitespace collapsed, edges trimmed.
func cleanFragment(s string) string {
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
