package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var anchorRe = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"'#]+)["'][^>]*>`)

// Links holds absolute URLs discovered on a page, split by whether the host
// matches the page's own host.
type Links struct {
	Internal []string
	External []string
}

// PageLinks extracts anchor targets from raw HTML, resolves them against
// baseURL, and classifies them by hostname. Unresolvable hrefs are skipped.
func PageLinks(html, baseURL string) Links {
	var links Links
	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	seen := make(map[string]bool)
	for _, match := range anchorRe.FindAllStringSubmatch(html, -1) {
		ref, err := url.Parse(strings.TrimSpace(match[1]))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		absStr := abs.String()
		if seen[absStr] {
			continue
		}
		seen[absStr] = true

		if strings.EqualFold(abs.Hostname(), base.Hostname()) {
			links.Internal = append(links.Internal, absStr)
		} else {
			links.External = append(links.External, absStr)
		}
	}
	return links
}
