package monitors

import (
	"regexp"
	"strconv"
	"strings"
)

// scrapeUA identifies the poller to the scraped properties. Several of them
// refuse requests with the default Go client agent.
const scrapeUA = "Mozilla/5.0 (HYDRA Signal Engine)"

func scrapeHeaders() map[string]string {
	return map[string]string{"User-Agent": scrapeUA}
}

// The scraped pages are read with targeted expressions rather than a DOM
// parser: every extraction here is a single number or link text, and the
// page layouts shift too often to make structural selectors worth keeping.
var (
	tableRowPattern  = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	tableCellPattern = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	anchorPattern    = regexp.MustCompile(`(?is)<a\s[^>]*>(.*?)</a>`)
	headingPattern   = regexp.MustCompile(`(?is)<h[23][^>]*>(.*?)</h[23]>`)
	tagPattern       = regexp.MustCompile(`(?s)<[^>]*>`)
	digitsPattern    = regexp.MustCompile(`[^\d]`)
)

// stripTags flattens an HTML fragment to its text content.
func stripTags(fragment string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(fragment, " "))
}

// digitsIn extracts the integer formed by all digits in s, or 0.
func digitsIn(s string) int {
	n, _ := strconv.Atoi(digitsPattern.ReplaceAllString(s, ""))
	return n
}

// commas renders n with thousand separators, e.g. 108000 -> "108,000".
func commas(n int) string {
	if n < 0 {
		return "-" + commas(-n)
	}
	s := strconv.Itoa(n)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return strings.Join(append([]string{s}, parts...), ",")
}

// parseFloatDefault parses s, returning def when it does not parse.
func parseFloatDefault(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return v
}

// truncate caps s at n bytes. Scraped fragments feed signal IDs and names,
// which must stay bounded.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
