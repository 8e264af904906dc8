package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageLinksClassifiesByHost(t *testing.T) {
	t.Parallel()

	html := `<a href="/rules">Rules</a>
<a href="https://example.com/prizes">Prizes</a>
<a href="https://twitter.com/event">Twitter</a>`

	links := PageLinks(html, "https://example.com/")
	require.Equal(t, []string{"https://example.com/rules", "https://example.com/prizes"}, links.Internal)
	require.Equal(t, []string{"https://twitter.com/event"}, links.External)
}

func TestPageLinksDeduplicates(t *testing.T) {
	t.Parallel()

	html := `<a href="/rules">one</a><a href="/rules">two</a>`
	links := PageLinks(html, "https://example.com/")
	require.Len(t, links.Internal, 1)
}

func TestPageLinksSkipsNonHTTPSchemes(t *testing.T) {
	t.Parallel()

	html := `<a href="mailto:team@example.com">Mail</a>
<a href="javascript:void(0)">JS</a>
<a href="https://example.com/ok">OK</a>`

	links := PageLinks(html, "https://example.com/")
	require.Equal(t, []string{"https://example.com/ok"}, links.Internal)
	require.Empty(t, links.External)
}

func TestPageLinksResolvesRelativePaths(t *testing.T) {
	t.Parallel()

	links := PageLinks(`<a href="../faq">FAQ</a>`, "https://example.com/event/2026/")
	require.Equal(t, []string{"https://example.com/event/faq"}, links.Internal)
}
