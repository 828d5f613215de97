// Package grouping orchestrates generation of keyword grouping plans:
// building the prompt, calling the model, parsing the plan, persisting
// groups atomically, and projecting manual overrides at read time.
package grouping

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/pkg/anthropic"
)

// PlanContext carries the project fields the generator includes in its
// prompt.
type PlanContext struct {
	ClientName string
	Category   string
	PoolType   model.PoolType
}

// PlanRequest is one grouping-plan generation request.
type PlanRequest struct {
	Keywords []string
	Config   model.GroupingConfig
	Context  PlanContext
}

// PlannedGroup is one group proposed by the generator.
type PlannedGroup struct {
	GroupIndex int            `json:"groupIndex"`
	Label      string         `json:"label"`
	Phrases    []string       `json:"phrases"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Usage is the token accounting for one generation call.
type Usage struct {
	Model     string
	TokensIn  int
	TokensOut int
}

// PlanResult is a parsed, validated grouping plan.
type PlanResult struct {
	Groups []PlannedGroup
	Usage  Usage
}

// Generator produces grouping plans. Implementations make exactly one
// attempt per call; retries are the caller's re-invocation.
type Generator interface {
	GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error)
	Model() string
}

// ClaudeGenerator implements Generator against the Anthropic API.
type ClaudeGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewClaudeGenerator creates a generator for the given model, allowing
// at most rps calls per second across all callers.
func NewClaudeGenerator(client anthropic.Client, modelID string, maxTokens int64, rps float64) *ClaudeGenerator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if rps <= 0 {
		rps = 1
	}
	return &ClaudeGenerator{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (g *ClaudeGenerator) Model() string { return g.model }

func (g *ClaudeGenerator) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "grouping: rate limit wait")
	}

	system, user := BuildPrompt(req)
	temp := 0.2
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "grouping: generate plan")
	}

	groups, err := ParsePlanResponse(resp.Text(), req.Keywords)
	if err != nil {
		return nil, err
	}
	return &PlanResult{
		Groups: groups,
		Usage: Usage{
			Model:     resp.Model,
			TokensIn:  int(resp.Usage.InputTokens),
			TokensOut: int(resp.Usage.OutputTokens),
		},
	}, nil
}

var _ Generator = (*ClaudeGenerator)(nil)
