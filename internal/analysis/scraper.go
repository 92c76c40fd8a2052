package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vietddude/batcher/internal/core/domain"
)

const scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var skippedExtensions = []string{
	".jpg", ".png", ".gif", ".pdf", ".zip", ".css", ".js", ".xml", ".json",
}

var blogKeywords = []string{
	"blog", "post", "article", "news", "story", "tutorial", "guide",
}

var scrapeClient = &http.Client{Timeout: 30 * time.Second}

func fetchHTML(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := scrapeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// ExtractLinks scrapes a listing page and returns candidate blog-post
// work items: same-host links with plausible titles, preferring URLs
// that look like posts when any match.
func ExtractLinks(ctx context.Context, listingURL string) ([]domain.WorkItem, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url: %w", err)
	}

	doc, err := fetchHTML(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("error extracting links: %w", err)
	}

	var items []domain.WorkItem
	seen := make(map[string]bool)

	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.Data != "a" {
			continue
		}
		href := attrValue(n, "href")
		if href == "" {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		full := base.ResolveReference(ref)
		full.Fragment = ""
		fullStr := full.String()

		if !acceptLink(base, full, fullStr, listingURL) || seen[fullStr] {
			continue
		}

		title := strings.TrimSpace(nodeText(n))
		if len(title) <= 5 || len(title) >= 200 {
			continue
		}

		items = append(items, domain.WorkItem{URL: fullStr, Title: title})
		seen[fullStr] = true
	}

	// Prefer the subset that looks like posts; fall back to everything.
	var priority []domain.WorkItem
	for _, item := range items {
		lower := strings.ToLower(item.URL)
		for _, kw := range blogKeywords {
			if strings.Contains(lower, kw) {
				priority = append(priority, item)
				break
			}
		}
	}
	if len(priority) > 0 {
		return priority, nil
	}
	return items, nil
}

func acceptLink(base *url.URL, link *url.URL, linkStr, listingURL string) bool {
	if link.Host != base.Host {
		return false
	}
	if linkStr == listingURL || linkStr == listingURL+"/" {
		return false
	}
	switch link.Scheme {
	case "http", "https":
	default:
		return false // mailto:, tel:, javascript:
	}
	lower := strings.ToLower(linkStr)
	for _, ext := range skippedExtensions {
		if strings.Contains(lower, ext) {
			return false
		}
	}
	return true
}

// FetchPost downloads a post and extracts its readable text.
func FetchPost(ctx context.Context, postURL string) (string, error) {
	doc, err := fetchHTML(ctx, postURL)
	if err != nil {
		return "", err
	}

	text := extractText(doc)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no content extracted from %s", postURL)
	}
	return text, nil
}

// extractText walks the document collecting visible text, skipping
// script/style/nav chrome.
func extractText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "header", "footer":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		} else {
			sb.WriteString(nodeText(c))
		}
	}
	return sb.String()
}
