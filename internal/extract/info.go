package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Title selectors, tried in order: semantic class hints, <title>, first
// <h1>, Open Graph title. First match wins.
var titleSelectors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<h1[^>]*class=["'][^"']*(?:title|event-title|hackathon)[^"']*["'][^>]*>([^<]+)</h1>`),
	regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`),
	regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`),
	regexp.MustCompile(`(?i)<meta[^>]*property=["']og:title["'][^>]*content=["']([^"']+)["']`),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:date|when|starts?|ends?|begins?)[\s:]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
	regexp.MustCompile(`(?i)(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})\s*(?:to|until|till|-|\x{2013})\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
	regexp.MustCompile(`(?i)(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)[\s\d]{1,30}`),
}

var prizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:prize pool|prize|award|reward|winning)[\s:]*\$?[\d,]+(?:\s*(?:usd|dollars?|cash))?`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\s*(?:in prizes?|awards?|cash))?`),
	regexp.MustCompile(`(?i)(?:first|second|third|1st|2nd|3rd)\s+place[\s:]*\$?[\d,]+`),
}

var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:registration|register|sign.?up)[\s:]*(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2}|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[\s\d]{1,30}`),
	regexp.MustCompile(`(?i)(?:deadline|due|submit)[\s:]*(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2}|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[\s\d]{1,30}`),
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:location|venue|where)[\s:]*([^\n\r]{10,100})`),
	regexp.MustCompile(`(?i)virtual|online|remote`),
	regexp.MustCompile(`\d+\s+[A-Za-z\s]+,\s*[A-Za-z\s]+`),
}

var techPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:technology|tech|stack|tools)[\s:]*[^\n\r]{10,200}`),
	regexp.MustCompile(`(?i)\b(?:react|vue|angular|node|python|javascript|typescript|java|swift|kotlin|flutter|docker|kubernetes|aws|azure|gcp|firebase|mongodb|postgresql|mysql|graphql|rest api)\b`),
}

// infoExtractor fills one PageInfo category from text and/or HTML. Each
// extractor is independent: a miss leaves its field empty, never errors.
type infoExtractor func(html, text string, info *pipeline.PageInfo)

var infoExtractors = []infoExtractor{
	extractTitle,
	extractDates,
	extractPrizes,
	extractDeadlines,
	extractLocation,
	extractTechnologies,
}

// Info scans HTML and normalized text for event details. The result is
// advisory context for the chat model; every field may be empty.
func Info(html, text string) pipeline.PageInfo {
	var info pipeline.PageInfo
	for _, fn := range infoExtractors {
		fn(html, text, &info)
	}
	return info
}

func extractTitle(html, _ string, info *pipeline.PageInfo) {
	info.Title = Title(html)
}

// Title returns the page title via the selector order above, or "".
func Title(html string) string {
	for _, re := range titleSelectors {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if title := strings.TrimSpace(m[1]); title != "" {
				return title
			}
		}
	}
	return ""
}

// HostnameOf returns the hostname of a URL, or the input when unparseable.
// Used as a title fallback so pages never persist with an empty title.
func HostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

func extractDates(_, text string, info *pipeline.PageInfo) {
	info.Dates = matchAll(text, datePatterns)
}

func extractPrizes(_, text string, info *pipeline.PageInfo) {
	info.Prizes = matchAll(text, prizePatterns)
}

func extractDeadlines(_, text string, info *pipeline.PageInfo) {
	info.Deadlines = matchAll(text, deadlinePatterns)
}

func extractLocation(_, text string, info *pipeline.PageInfo) {
	for _, re := range locationPatterns {
		if m := re.FindString(text); m != "" {
			info.Location = strings.TrimSpace(m)
			return
		}
	}
}

func extractTechnologies(_, text string, info *pipeline.PageInfo) {
	info.Technologies = matchAll(text, techPatterns)
}

// matchAll collects matches across patterns, deduplicated, trimmed, in
// first-seen order.
func matchAll(text string, patterns []*regexp.Regexp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
