package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/heirclark17/resume-ai-backend/internal/provider"
	"github.com/heirclark17/resume-ai-backend/internal/worker"
	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
)

type scrapePostingInput struct {
	URL string `json:"url"`
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

// scrapePostingHandler fetches a job posting page as markdown through the
// Firecrawl scrape API
func scrapePostingHandler(client *provider.Client) worker.HandlerFunc {
	return func(ctx context.Context, job *domain.Job, progress worker.ProgressFunc) (json.RawMessage, error) {
		var in scrapePostingInput
		if err := parseInput(job.Input, &in); err != nil {
			return nil, err
		}

		parsed, err := url.Parse(in.URL)
		if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("invalid input payload: url must be absolute http(s)")
		}

		progress(10, "Scraping job posting")

		var resp scrapeResponse
		if err := client.PostJSON(ctx, "/v1/scrape", scrapeRequest{URL: in.URL, Formats: []string{"markdown"}}, &resp); err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, fmt.Errorf("scrape of %s did not succeed", in.URL)
		}

		progress(90, "Formatting result")
		return json.Marshal(map[string]string{
			"url":     in.URL,
			"title":   resp.Data.Metadata.Title,
			"content": resp.Data.Markdown,
		})
	}
}
