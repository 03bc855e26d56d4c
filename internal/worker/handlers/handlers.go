// Package handlers implements the job types the worker knows how to run.
// Each handler parses its own input payload, reports coarse progress
// milestones, and calls the external services through the provider clients.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/heirclark17/resume-ai-backend/internal/provider"
	"github.com/heirclark17/resume-ai-backend/internal/worker"
)

// Job type names accepted by the submission API
const (
	JobTypeTailorResume    = "tailor_resume"
	JobTypeCoverLetter     = "cover_letter"
	JobTypeInterviewPrep   = "interview_prep"
	JobTypeCompanyResearch = "company_research"
	JobTypeScrapePosting   = "scrape_posting"
)

// Providers holds the external service clients the handlers call
type Providers struct {
	OpenAI     *provider.Client
	Perplexity *provider.Client
	Firecrawl  *provider.Client
}

// RegisterAll binds every job type to its handler. Handlers whose provider
// is not configured are skipped, so a deployment without a Firecrawl key
// simply rejects scrape jobs as unhandled.
func RegisterAll(registry *worker.Registry, p Providers) {
	if p.OpenAI != nil {
		registry.Register(JobTypeTailorResume, tailorResumeHandler(p.OpenAI))
		registry.Register(JobTypeCoverLetter, coverLetterHandler(p.OpenAI))
		registry.Register(JobTypeInterviewPrep, interviewPrepHandler(p.OpenAI))
	}
	if p.Perplexity != nil {
		registry.Register(JobTypeCompanyResearch, companyResearchHandler(p.Perplexity))
	}
	if p.Firecrawl != nil {
		registry.Register(JobTypeScrapePosting, scrapePostingHandler(p.Firecrawl))
	}
}

func parseInput(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid input payload: %w", err)
	}
	return nil
}
