package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heirclark17/resume-ai-backend/internal/provider"
	"github.com/heirclark17/resume-ai-backend/internal/worker"
	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
)

const researchModel = "sonar-pro"

type companyResearchInput struct {
	Company string `json:"company"`
	Role    string `json:"role"`
}

// companyResearchHandler gathers current company intelligence through the
// Perplexity search-grounded completion API
func companyResearchHandler(client *provider.Client) worker.HandlerFunc {
	return func(ctx context.Context, job *domain.Job, progress worker.ProgressFunc) (json.RawMessage, error) {
		var in companyResearchInput
		if err := parseInput(job.Input, &in); err != nil {
			return nil, err
		}
		if in.Company == "" {
			return nil, fmt.Errorf("invalid input payload: company is required")
		}

		progress(10, "Researching company")

		req := chatRequest{
			Model: researchModel,
			Messages: []chatMessage{
				{Role: "system", Content: "Research the company for a job candidate. Cover recent news, products, culture signals, and interview-relevant facts. Cite nothing you cannot source."},
				{Role: "user", Content: fmt.Sprintf("Company: %s. Target role: %s.", in.Company, in.Role)},
			},
		}

		var resp chatResponse
		if err := client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("research returned no choices")
		}

		progress(90, "Formatting result")
		return json.Marshal(map[string]string{
			"company":  in.Company,
			"research": resp.Choices[0].Message.Content,
		})
	}
}
