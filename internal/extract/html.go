// Package extract turns raw HTML into normalized text, links, and
// best-effort structured event information. It is deliberately a
// pattern-based extractor, not a DOM engine: malformed HTML degrades to
// whatever text survives, and nothing in here returns an error.
package extract

import (
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	navRe    = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	footerRe = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)

	headingRe = regexp.MustCompile(`(?is)<h[1-6][^>]*>([^<]+)</h[1-6]>`)
	strongRe  = regexp.MustCompile(`(?is)<strong[^>]*>([^<]+)</strong>`)
	boldRe    = regexp.MustCompile(`(?is)<b[^>]*>([^<]+)</b>`)
	emRe      = regexp.MustCompile(`(?is)<em[^>]*>([^<]+)</em>`)
	italicRe  = regexp.MustCompile(`(?is)<i[^>]*>([^<]+)</i>`)

	listOpenRe  = regexp.MustCompile(`(?i)<[uo]l[^>]*>`)
	listCloseRe = regexp.MustCompile(`(?i)</[uo]l>`)
	listItemRe  = regexp.MustCompile(`(?is)<li[^>]*>([^<]+)</li>`)

	paraOpenRe  = regexp.MustCompile(`(?i)<p[^>]*>`)
	paraCloseRe = regexp.MustCompile(`(?i)</p>`)
	breakRe     = regexp.MustCompile(`(?i)<br[^>]*>`)

	anyTagRe     = regexp.MustCompile(`<[^>]*>`)
	blankLinesRe = regexp.MustCompile(`\n[ \t]*\n[ \t]*\n+`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
)

// Text converts raw HTML into a lightweight markdown-like plain text.
// Script, style, nav, and footer blocks are removed entirely; headings land
// on their own lines, bold and italic spans keep markdown markers, and list
// items become bullets. Runs of whitespace collapse.
func Text(html string) string {
	text := scriptRe.ReplaceAllString(html, "")
	text = styleRe.ReplaceAllString(text, "")
	text = navRe.ReplaceAllString(text, "")
	text = footerRe.ReplaceAllString(text, "")

	text = headingRe.ReplaceAllString(text, "\n\n$1\n")
	text = strongRe.ReplaceAllString(text, "**$1**")
	text = boldRe.ReplaceAllString(text, "**$1**")
	text = emRe.ReplaceAllString(text, "*$1*")
	text = italicRe.ReplaceAllString(text, "*$1*")

	text = listOpenRe.ReplaceAllString(text, "\n")
	text = listCloseRe.ReplaceAllString(text, "\n")
	text = listItemRe.ReplaceAllString(text, "• $1\n")

	text = paraOpenRe.ReplaceAllString(text, "\n")
	text = paraCloseRe.ReplaceAllString(text, "\n\n")
	text = breakRe.ReplaceAllString(text, "\n")

	text = anyTagRe.ReplaceAllString(text, " ")

	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// WordCount counts whitespace-separated words in normalized text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
