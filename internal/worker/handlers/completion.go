package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heirclark17/resume-ai-backend/internal/provider"
	"github.com/heirclark17/resume-ai-backend/internal/worker"
	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
)

const defaultCompletionModel = "gpt-4o"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete runs one chat completion and returns the first choice's content
func complete(ctx context.Context, client *provider.Client, system, user string) (string, error) {
	req := chatRequest{
		Model: defaultCompletionModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var resp chatResponse
	if err := client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

type tailorResumeInput struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
}

func tailorResumeHandler(client *provider.Client) worker.HandlerFunc {
	return func(ctx context.Context, job *domain.Job, progress worker.ProgressFunc) (json.RawMessage, error) {
		var in tailorResumeInput
		if err := parseInput(job.Input, &in); err != nil {
			return nil, err
		}

		progress(10, "Analyzing job description")
		tailored, err := complete(ctx, client,
			"You are an expert resume writer. Rewrite the resume to emphasize the experience most relevant to the job description. Keep every claim truthful to the original.",
			fmt.Sprintf("Job description:\n%s\n\nResume:\n%s", in.JobDescription, in.Resume),
		)
		if err != nil {
			return nil, err
		}

		progress(90, "Formatting result")
		return json.Marshal(map[string]string{"tailored_resume": tailored})
	}
}

type coverLetterInput struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
	Company        string `json:"company"`
}

func coverLetterHandler(client *provider.Client) worker.HandlerFunc {
	return func(ctx context.Context, job *domain.Job, progress worker.ProgressFunc) (json.RawMessage, error) {
		var in coverLetterInput
		if err := parseInput(job.Input, &in); err != nil {
			return nil, err
		}

		progress(10, "Drafting cover letter")
		letter, err := complete(ctx, client,
			"You write concise, specific cover letters. Three paragraphs, no filler, grounded only in the candidate's actual experience.",
			fmt.Sprintf("Company: %s\n\nJob description:\n%s\n\nResume:\n%s", in.Company, in.JobDescription, in.Resume),
		)
		if err != nil {
			return nil, err
		}

		progress(90, "Formatting result")
		return json.Marshal(map[string]string{"cover_letter": letter})
	}
}

type interviewPrepInput struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
}

func interviewPrepHandler(client *provider.Client) worker.HandlerFunc {
	return func(ctx context.Context, job *domain.Job, progress worker.ProgressFunc) (json.RawMessage, error) {
		var in interviewPrepInput
		if err := parseInput(job.Input, &in); err != nil {
			return nil, err
		}

		progress(10, "Generating interview questions")
		prep, err := complete(ctx, client,
			"You are an interview coach. Produce likely interview questions for this role and strong answer outlines based on the candidate's background.",
			fmt.Sprintf("Job description:\n%s\n\nResume:\n%s", in.JobDescription, in.Resume),
		)
		if err != nil {
			return nil, err
		}

		progress(90, "Formatting result")
		return json.Marshal(map[string]string{"interview_prep": prep})
	}
}
