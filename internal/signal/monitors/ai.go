package monitors

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/signal"
)

// aiOrgs are the GitHub organizations whose releases move the SaaS complex.
var aiOrgs = []string{"anthropics", "openai", "google-deepmind", "meta-llama"}

// enterpriseKeywords mark a repo as targeting enterprise software workflows.
var enterpriseKeywords = []string{
	"agent", "cowork", "plugin", "workflow", "enterprise", "assistant", "copilot", "tool",
}

// GitHubAI watches the major AI labs for fresh enterprise-targeting repos.
// Release activity here front-runs the disruption headlines.
type GitHubAI struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
	token   string
}

func NewGitHubAI(fetcher *fetch.Client, token string) *GitHubAI {
	return &GitHubAI{
		Meta:    signal.NewMeta("GitHub AI Releases", signal.CategoryAIDisruption, 2*time.Hour, 0.72),
		fetcher: fetcher,
		baseURL: "https://api.github.com",
		token:   token,
	}
}

func (c *GitHubAI) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	headers := scrapeHeaders()
	if c.token != "" {
		headers["Authorization"] = "token " + c.token
	}

	var signals []signal.Signal
	fetched := 0
	for _, org := range aiOrgs {
		var repos []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			CreatedAt   string `json:"created_at"`
			HTMLURL     string `json:"html_url"`
		}
		url := fmt.Sprintf("%s/orgs/%s/repos", c.baseURL, org)
		params := map[string]string{"sort": "created", "per_page": "5"}
		if !c.fetcher.GetJSON(ctx, url, params, headers, &repos) {
			continue
		}
		fetched++

		for _, repo := range repos {
			created, err := time.Parse(time.RFC3339, repo.CreatedAt)
			if err != nil || now.Sub(created) > 48*time.Hour {
				continue
			}
			haystack := strings.ToLower(repo.Name + " " + repo.Description)
			matched := false
			for _, kw := range enterpriseKeywords {
				if strings.Contains(haystack, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}

			signals = append(signals, signal.Signal{
				ID:         signal.MakeID("github", org, repo.Name),
				Name:       fmt.Sprintf("NEW AI RELEASE: %s/%s", org, repo.Name),
				SourceName: "GitHub API",
				SourceAPI:  "api.github.com",
				Category:   signal.CategoryAIDisruption,
				Priority:   signal.PriorityCritical,
				Direction:  -1.0,
				Strength:   0.80,
				Description: fmt.Sprintf(
					"New enterprise-targeting repo from %s: '%s'. Description: %s. Anthropic's Cowork plugins were detected on GitHub before the $285B SaaS crash. This is the early warning system.",
					org, repo.Name, truncate(repo.Description, 200)),
				AffectedAssets: []string{"IGV", "CRM", "SHOP", "ADBE", "WDAY", "LZ", "TRI"},
				TradeImplications: []string{
					"BUY puts on vulnerable SaaS (IGV, LZ) immediately",
					"Wait 2-3 days then buy calls on quality names (CRM, ADBE, SHOP)",
					"Buy VIX calls if software sector already weak",
				},
				Opportunities: []string{
					"AI integration consulting demand will spike",
					"Data migration services needed as companies adopt AI agents",
					"Cybersecurity for AI agents = emerging market",
				},
				RawData: map[string]interface{}{
					"org": org, "repo": repo.Name,
					"description": repo.Description, "url": repo.HTMLURL,
				},
				DetectedAt:       now,
				TTLHours:         72.0,
				ReliabilityScore: c.Reliability(),
			})
		}
	}
	if fetched == 0 {
		return nil, fmt.Errorf("all org listings failed")
	}
	return signals, nil
}

// hnKeywords mark a front-page story as part of the AI disruption narrative.
var hnKeywords = []string{
	"anthropic", "openai", "claude", "gpt", "llm", "ai agent",
	"copilot", "ai replace", "saas", "software disruption",
}

// HackerNews counts AI-narrative stories on the front page. HN trends lead
// mainstream coverage by half a day or more.
type HackerNews struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewHackerNews(fetcher *fetch.Client) *HackerNews {
	return &HackerNews{
		Meta:    signal.NewMeta("Hacker News Trends", signal.CategoryAIDisruption, time.Hour, 0.55),
		fetcher: fetcher,
		baseURL: "https://hacker-news.firebaseio.com/v0",
	}
}

type hnStory struct {
	Title       string `json:"title"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

func (c *HackerNews) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	var ids []int64
	if !c.fetcher.GetJSON(ctx, c.baseURL+"/topstories.json", nil, nil, &ids) {
		return nil, fmt.Errorf("topstories fetch failed")
	}
	if len(ids) > 30 {
		ids = ids[:30]
	}

	var matched []hnStory
	for _, id := range ids {
		var story hnStory
		if !c.fetcher.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), nil, nil, &story) {
			continue
		}
		lower := strings.ToLower(story.Title)
		for _, kw := range hnKeywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, story)
				break
			}
		}
	}
	if len(matched) < 2 {
		return nil, nil
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Score > matched[j].Score })
	top := matched[0]

	stories := make([]map[string]interface{}, 0, len(matched))
	for _, s := range matched {
		stories = append(stories, map[string]interface{}{"title": s.Title, "score": s.Score})
	}

	return []signal.Signal{{
		ID:         signal.MakeID("hn", truncate(top.Title, 30)),
		Name:       fmt.Sprintf("HN AI Buzz: %d stories trending", len(matched)),
		SourceName: "Hacker News",
		SourceAPI:  "hacker-news.firebaseio.com",
		Category:   signal.CategoryAIDisruption,
		Priority:   signal.PriorityMedium,
		Direction:  -0.3,
		Strength:   math.Min(0.7, float64(len(matched))/5),
		Description: fmt.Sprintf(
			"%d AI-related stories in HN top 30. Top: '%s' (%d points, %d comments). HN trends precede mainstream coverage by 12-24hr.",
			len(matched), top.Title, top.Score, top.Descendants),
		AffectedAssets: []string{"IGV", "CRM", "ADBE"},
		TradeImplications: []string{
			"Monitor for mainstream pickup",
			"Prepare SaaS hedges if narrative accelerates",
		},
		Opportunities:    []string{"Early signal for sector positioning"},
		RawData:          map[string]interface{}{"stories": stories},
		DetectedAt:       now,
		TTLHours:         12.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

var phKeywords = []string{"ai", "gpt", "llm", "agent", "copilot", "automate"}

// ProductHunt measures AI product launch velocity on the AI topic page.
type ProductHunt struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewProductHunt(fetcher *fetch.Client) *ProductHunt {
	return &ProductHunt{
		Meta:    signal.NewMeta("Product Hunt AI", signal.CategoryAIDisruption, 4*time.Hour, 0.50),
		fetcher: fetcher,
		baseURL: "https://www.producthunt.com/topics/artificial-intelligence",
	}
}

func (c *ProductHunt) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("topic page fetch failed")
	}

	var products []string
	for _, m := range headingPattern.FindAllStringSubmatch(html, -1) {
		title := stripTags(m[1])
		lower := strings.ToLower(title)
		for _, kw := range phKeywords {
			if strings.Contains(lower, kw) {
				products = append(products, truncate(title, 50))
				break
			}
		}
	}
	if len(products) < 3 {
		return nil, nil
	}

	examples := products
	if len(examples) > 3 {
		examples = examples[:3]
	}
	rawProducts := products
	if len(rawProducts) > 5 {
		rawProducts = rawProducts[:5]
	}

	return []signal.Signal{{
		ID:         signal.MakeID("ph_ai", len(products), now.Format("2006-01-02")),
		Name:       fmt.Sprintf("Product Hunt: %d AI Products Trending", len(products)),
		SourceName: "Product Hunt",
		SourceAPI:  "producthunt.com (scraped)",
		Category:   signal.CategoryAIDisruption,
		Priority:   signal.PriorityLow,
		Direction:  -0.2,
		Strength:   math.Min(0.5, float64(len(products))/10),
		Description: fmt.Sprintf(
			"%d AI products trending on Product Hunt today. Examples: %s. AI product velocity = disruption narrative accelerating.",
			len(products), strings.Join(examples, ", ")),
		AffectedAssets: []string{"IGV", "CRM", "ADBE"},
		TradeImplications: []string{
			"Monitor for products targeting enterprise SaaS",
			"AI disruption theme ongoing",
		},
		Opportunities:    []string{"Early signal for which verticals AI is targeting"},
		RawData:          map[string]interface{}{"count": len(products), "products": rawProducts},
		DetectedAt:       now,
		TTLHours:         24.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

// saasTickers are the names most exposed to AI displacing seat-based
// software revenue.
var saasTickers = []string{"CRM", "ADBE", "WDAY", "NOW", "SHOP", "ZS", "CRWD", "SNOW", "MDB"}

// SECEdgar counts fresh insider-sale Form 4 filings per SaaS ticker via the
// EDGAR atom feeds.
type SECEdgar struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewSECEdgar(fetcher *fetch.Client) *SECEdgar {
	return &SECEdgar{
		Meta:    signal.NewMeta("SEC EDGAR Filings", signal.CategoryEquities, 6*time.Hour, 0.65),
		fetcher: fetcher,
		baseURL: "https://www.sec.gov/cgi-bin/browse-edgar",
	}
}

type atomFeed struct {
	Entries []struct {
		Title string `xml:"title"`
	} `xml:"entry"`
}

// decodeAtom parses an EDGAR atom feed. The feeds declare ISO-8859-1, which
// encoding/xml refuses without a CharsetReader; the titles are plain ASCII,
// so reading the bytes through works.
func decodeAtom(body string) (atomFeed, error) {
	var feed atomFeed
	dec := xml.NewDecoder(strings.NewReader(body))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	err := dec.Decode(&feed)
	return feed, err
}

func (c *SECEdgar) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()
	date := now.Format("2006-01-02")

	var signals []signal.Signal
	fetched := 0
	for _, ticker := range saasTickers {
		params := map[string]string{
			"action": "getcompany",
			"CIK":    ticker,
			"type":   "4",
			"dateb":  "",
			"owner":  "include",
			"count":  "10",
			"output": "atom",
		}
		body, ok := c.fetcher.GetText(ctx, c.baseURL, params, scrapeHeaders())
		if !ok {
			continue
		}
		fetched++

		feed, err := decodeAtom(body)
		if err != nil {
			continue
		}
		entries := feed.Entries
		if len(entries) > 5 {
			entries = entries[:5]
		}
		saleCount := 0
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Title), "sale") {
				saleCount++
			}
		}
		if saleCount < 2 {
			continue
		}

		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("sec_insider", ticker, date),
			Name:       fmt.Sprintf("Insider Selling: %s — %d Form 4s", ticker, saleCount),
			SourceName: "SEC EDGAR",
			SourceAPI:  "sec.gov/cgi-bin/browse-edgar",
			Category:   signal.CategoryEquities,
			Priority:   signal.PriorityMedium,
			Direction:  -0.5,
			Strength:   math.Min(0.7, float64(saleCount)/4),
			Description: fmt.Sprintf(
				"%s has %d insider sale Form 4 filings recently. Heavy insider selling often precedes weakness. Especially relevant for SaaS names exposed to AI disruption.",
				ticker, saleCount),
			AffectedAssets: []string{ticker, "IGV"},
			TradeImplications: []string{
				fmt.Sprintf("Consider puts on %s if selling persists", ticker),
				"Insiders selling = they see something we don't",
			},
			Opportunities:    []string{"Track insider buying for contrarian signals"},
			RawData:          map[string]interface{}{"ticker": ticker, "sale_count": saleCount},
			DetectedAt:       now,
			TTLHours:         48.0,
			ReliabilityScore: c.Reliability(),
		})
	}
	if fetched == 0 {
		return nil, fmt.Errorf("all filing feeds failed")
	}
	return signals, nil
}
