package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kevinmichaelchen/repo-pulse/internal/heat"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey is returned by NewClient when no key is configured.
var ErrNoAPIKey = errors.New("llm: no API key configured")

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(baseURL, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Digest is a short narrative over the hottest topics of a run.
type Digest struct {
	Headline string      `json:"headline"`
	Topics   []TopicNote `json:"topics"`
}

type TopicNote struct {
	Topic string `json:"topic"`
	Note  string `json:"note"`
}

const systemPrompt = `You are a technical analyst writing a short briefing on what is trending on GitHub. You get a ranked list of topics. Each topic has a heat score, a repo count, an average relevance score, and its leading repositories with their descriptions and stars gained in the period.

Produce a JSON object with:

1. "headline": One sentence naming the dominant trend of the period.
2. "topics": An array with one entry per topic in the order given, each {"topic": <label as given>, "note": <1-2 sentences on what is driving it, naming repositories>}.

Return ONLY valid JSON. No markdown, no code fences.`

// Digest asks the model to narrate ranked buckets, showing it up to
// reposPerTopic members of each.
func (c *Client) Digest(ctx context.Context, tr models.TimeRange, ranked []*models.Bucket, reposPerTopic int) (*Digest, error) {
	if len(ranked) == 0 {
		return &Digest{Topics: []TopicNote{}}, nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: digestInput(tr, ranked, reposPerTopic)},
		},
		// No ResponseFormat. Not all models support json_object mode.
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM digest call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned for digest")
	}

	content := stripCodeFences(resp.Choices[0].Message.Content)

	var d Digest
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return nil, fmt.Errorf("parsing LLM digest: %w\nraw: %s", err, content)
	}
	return &d, nil
}

func digestInput(tr models.TimeRange, ranked []*models.Bucket, reposPerTopic int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Period: %s\n", tr)
	for i, b := range ranked {
		fmt.Fprintf(&sb, "\n%d. %s (heat %.2f, %d repos, avg score %.3f)\n",
			i+1, b.Topic, b.Heat, b.RepoCount, b.AvgScore)
		for _, r := range heat.TopRepos(b, reposPerTopic) {
			fmt.Fprintf(&sb, "  - %s [%s] +%d stars: %s\n",
				r.FullName(), r.Language, r.AddedStars, r.Description)
		}
	}
	return sb.String()
}

// stripCodeFences removes markdown code fences that some models wrap around JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (```json or ```)
		if i := strings.Index(s, "\n"); i != -1 {
			s = s[i+1:]
		}
		// Remove closing fence
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
