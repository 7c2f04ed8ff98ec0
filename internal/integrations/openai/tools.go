package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/compose"
)

const editorSystem = `You are an editor for a Telegram channel. Answer with the post text only, ` +
	`without preamble or quotes. Keep the language of the input.`

const variantSeparator = "---"

// VariantCount is the number of alternatives Variants returns.
const VariantCount = 3

// buildIdeaGraph wires a single generate_ideas node between START and END.
func (c *Client) buildIdeaGraph(ctx context.Context) (compose.Runnable[string, []string], error) {
	g := compose.NewGraph[string, []string]()
	if err := g.AddLambdaNode("generate_ideas", compose.InvokableLambda(c.generateIdeasNode)); err != nil {
		return nil, fmt.Errorf("openai: add idea node: %w", err)
	}
	if err := g.AddEdge(compose.START, "generate_ideas"); err != nil {
		return nil, fmt.Errorf("openai: add idea edge: %w", err)
	}
	if err := g.AddEdge("generate_ideas", compose.END); err != nil {
		return nil, fmt.Errorf("openai: add idea edge: %w", err)
	}
	runnable, err := g.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: compile idea graph: %w", err)
	}
	return runnable, nil
}

func (c *Client) generateIdeasNode(ctx context.Context, profile string) ([]string, error) {
	out, err := c.run(ctx,
		"You suggest post ideas for Telegram channels. Return one idea per line, no numbering.",
		fmt.Sprintf("Channel description:\n%s\n\nSuggest five post ideas.", profile),
	)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// GenerateIdeas returns post ideas for the described channel. An empty
// result is not an error.
func (c *Client) GenerateIdeas(ctx context.Context, profile string) ([]string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return nil, errors.New("openai: channel profile is empty")
	}
	return c.ideas.Invoke(ctx, profile)
}

func (c *Client) GeneratePost(ctx context.Context, idea string) (string, error) {
	return c.run(ctx, editorSystem,
		fmt.Sprintf("Write a Telegram post based on this idea:\n%s", idea))
}

func (c *Client) EditPost(ctx context.Context, text, instruction string) (string, error) {
	return c.run(ctx, editorSystem,
		fmt.Sprintf("Edit the post according to the instruction.\n\nInstruction:\n%s\n\nPost:\n%s", instruction, text))
}

func (c *Client) Rewrite(ctx context.Context, text string) (string, error) {
	return c.run(ctx, editorSystem,
		fmt.Sprintf("Rewrite the post in different words, keeping the meaning:\n%s", text))
}

func (c *Client) Hashtags(ctx context.Context, text string) (string, error) {
	return c.run(ctx,
		"You pick hashtags for Telegram posts. Answer with 3 to 6 hashtags on one line.",
		fmt.Sprintf("Post:\n%s", text))
}

// Variants returns exactly VariantCount alternative versions of text.
func (c *Client) Variants(ctx context.Context, text string) ([]string, error) {
	out, err := c.run(ctx, editorSystem,
		fmt.Sprintf("Write %d alternative versions of the post. Separate them with a line containing only %s.\n\nPost:\n%s",
			VariantCount, variantSeparator, text))
	if err != nil {
		return nil, err
	}
	variants := splitVariants(out)
	if len(variants) < VariantCount {
		return nil, fmt.Errorf("openai: expected %d variants, got %d", VariantCount, len(variants))
	}
	return variants[:VariantCount], nil
}

// ContentPlan drafts a publishing plan; period is "short" (a week) or "long" (a month).
func (c *Client) ContentPlan(ctx context.Context, topic, period string) (string, error) {
	span := "one week"
	if period == "long" {
		span = "one month"
	}
	return c.run(ctx,
		"You are a content strategist for Telegram channels. Answer with a dated list of posts.",
		fmt.Sprintf("Make a content plan for %s on the topic:\n%s", span, topic))
}

func (c *Client) StyleCopy(ctx context.Context, example, topic string) (string, error) {
	return c.run(ctx, editorSystem,
		fmt.Sprintf("Write a new post on the topic below, copying the tone and structure of the example.\n\nExample:\n%s\n\nTopic:\n%s", example, topic))
}

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-•*])\s*`)

// splitLines returns non-empty lines with list markers stripped.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitVariants(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "\n"+variantSeparator) {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), variantSeparator))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
