package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/errs"
	"dinesafe/internal/ports"
)

// OpenAIGenerator produces the establishment prose summary. It is the
// external collaborator behind ports.SummaryGenerator; callers handle its
// failures with a template fallback, so errors here are returned as-is.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

var _ ports.SummaryGenerator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(cfg config.SummaryConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, sc ports.SummaryContext) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	chat, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You write short, factual food-safety summaries for diners. Two sentences, plain language, no advice."),
			openai.UserMessage(buildPrompt(sc)),
		},
	})
	if err != nil {
		return "", errs.Wrap(err, "create chat completion")
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	text := strings.TrimSpace(chat.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("completion returned blank text")
	}
	return text, nil
}

func buildPrompt(sc ports.SummaryContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summarize the inspection standing of %q (%s, risk tier %d).\n", sc.Name, sc.FacilityType, sc.RiskTier)
	fmt.Fprintf(&b, "Safety score: %d/100.\n", sc.Score)
	fmt.Fprintf(&b, "Latest inspection: %s (%s), result %q, %d violations (%d critical).\n",
		sc.LatestInspectionDate, sc.LatestInspectionType, sc.LatestResult, sc.ViolationCount, sc.CriticalCount)

	if len(sc.RecentInspections) > 0 {
		b.WriteString("Recent history:\n")
		for _, insp := range sc.RecentInspections {
			fmt.Fprintf(&b, "- %s %s: %s, %d violations (%d critical)\n",
				insp.Date, insp.Type, insp.Result, insp.ViolationCount, insp.CriticalCount)
		}
	}

	return b.String()
}
