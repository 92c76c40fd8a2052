package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vietddude/batcher/internal/batch"
	"github.com/vietddude/batcher/internal/core/domain"
)

// PostAnalysis is the structured result of analyzing one blog post.
type PostAnalysis struct {
	Category   string   `json:"category"`
	Summary    string   `json:"summary"`
	MainPoints []string `json:"main_points"`
	Examples   []string `json:"examples"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
}

// Analyzer turns work items into analyzed posts.
type Analyzer struct {
	client *Client
}

// NewAnalyzer wraps a Client.
func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

// WorkFunc returns the opaque per-item function the batch scheduler
// invokes: fetch the post, analyze it, encode the result. Safe to call
// concurrently across items and to re-invoke after a crash; the only
// side effect is the (idempotent) upstream API call.
func (a *Analyzer) WorkFunc() batch.WorkFunc {
	return func(ctx context.Context, item domain.WorkItem) (json.RawMessage, error) {
		content, err := FetchPost(ctx, item.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", item.URL, err)
		}

		result, err := a.Analyze(ctx, content, item.URL, item.Title)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
}

// Analyze categorizes and summarizes one post.
func (a *Analyzer) Analyze(ctx context.Context, content, url, title string) (PostAnalysis, error) {
	if limit := a.client.cfg.MaxContentChars; len(content) > limit {
		content = content[:limit]
	}

	prompt := buildPrompt(title, content)
	text, err := a.client.Complete(ctx, prompt, 8192)
	if err != nil {
		return PostAnalysis{}, err
	}

	result, ok := parseAnalysis(text)
	if !ok {
		// The model answered but not in usable JSON. Treat as a degraded
		// success rather than burning retries on a response-format whim.
		result = PostAnalysis{Category: "Other", Summary: "Summary unavailable"}
	}
	result.URL = url
	result.Title = title
	return result, nil
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`Analyze this blog post and provide:
1. A primary category (choose ONE most relevant: Technology, Business, Marketing, Design, Development, Product, Data Science, AI/ML, DevOps, Security, Other)
2. A concise summary (2-3 sentences)
3. Main points (3-5 key takeaways as bullet points)
4. Specific examples mentioned in the post (if any, 2-3 examples)

Blog Title: %s
Blog Content:
%s

Respond in JSON format:
{
    "category": "category name",
    "summary": "summary text",
    "main_points": ["point 1", "point 2", "point 3"],
    "examples": ["example 1", "example 2"]
}`, title, content)
}

// parseAnalysis extracts the JSON object from a model response that may
// wrap it in prose or code fences.
func parseAnalysis(text string) (PostAnalysis, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return PostAnalysis{}, false
	}

	var result PostAnalysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return PostAnalysis{}, false
	}
	return result, true
}
