package field

import (
	"math"
	"regexp"
	"strings"
)

const (
	// MaxHeadlinesPerFeed caps the items taken from a single feed.
	MaxHeadlinesPerFeed = 10

	// MaxHeadlines caps the headlines reported in a Context.
	MaxHeadlines = 15

	// dedupPrefix is how many leading runes identify a duplicate headline.
	dedupPrefix = 40

	// maxEngineHeadlines and maxWordsPerHeadline bound TopicsForEngine.
	maxEngineHeadlines  = 5
	maxWordsPerHeadline = 3
)

var (
	reCDATATitle = regexp.MustCompile(`<title><!\[CDATA\[(.*?)\]\]></title>`)
	rePlainTitle = regexp.MustCompile(`<title>(.*?)</title>`)
)

// ExtractHeadlines pulls item titles out of RSS XML. CDATA titles are
// preferred; plain titles are used only when no CDATA title exists. The
// first title belongs to the feed itself and is skipped.
func ExtractHeadlines(xml string, maxItems int) []string {
	matches := reCDATATitle.FindAllStringSubmatch(xml, -1)
	if len(matches) == 0 {
		matches = rePlainTitle.FindAllStringSubmatch(xml, -1)
	}

	headlines := make([]string, 0, maxItems)
	if len(matches) <= 1 {
		return headlines
	}

	end := len(matches)
	if maxItems >= 0 && 1+maxItems < end {
		end = 1 + maxItems
	}
	for _, m := range matches[1:end] {
		if t := strings.TrimSpace(m[1]); t != "" {
			headlines = append(headlines, t)
		}
	}
	return headlines
}

// Dedupe drops headlines whose first 40 runes, lowercased, were already seen.
// Order is preserved.
func Dedupe(headlines []string) []string {
	seen := make(map[string]bool, len(headlines))
	out := make([]string, 0, len(headlines))
	for _, h := range headlines {
		key := h
		if r := []rune(h); len(r) > dedupPrefix {
			key = string(r[:dedupPrefix])
		}
		key = strings.ToLower(key)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

// TopicsForEngine flattens a field context into engine topics: the hot topic
// names followed by up to three lowercase words longer than four characters
// from each of the first five headlines.
func TopicsForEngine(c *Context) []string {
	if c == nil {
		return []string{}
	}

	topics := append([]string{}, c.HotTopics...)
	headlines := c.Headlines
	if len(headlines) > maxEngineHeadlines {
		headlines = headlines[:maxEngineHeadlines]
	}
	for _, h := range headlines {
		taken := 0
		for _, w := range strings.Fields(h) {
			if taken == maxWordsPerHeadline {
				break
			}
			if len([]rune(w)) > 4 {
				topics = append(topics, strings.ToLower(w))
				taken++
			}
		}
	}
	return topics
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
