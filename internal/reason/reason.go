package reason

// #region imports
import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"tradeagent/internal/config"
	"tradeagent/internal/plan"
)

// #endregion imports

// #region input

// Input is everything the reasoner sees for one cycle: today's
// observations plus durable context from the ledger.
type Input struct {
	Observations  []string
	History       string
	BalanceSOL    float64 // -1 when the balance check failed
	DailySpendSOL float64
	DriftWarnings []string
	BenchmarkNote string
}

// #endregion input

// #region client

// Client proposes plans through an OpenAI-compatible chat-completion API.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a client against the configured endpoint (OpenRouter by
// default).
func NewClient(cfg config.LLM) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	return &Client{
		api:   openai.NewClientWithConfig(oc),
		model: cfg.Model,
	}
}

// Propose sends the cycle context to the model and parses the structured
// plan out of its reply. Both the call and the parse can fail; callers
// degrade to a noop plan rather than aborting the cycle.
func (c *Client) Propose(ctx context.Context, in Input) (plan.Plan, error) {
	log.Printf("[REASON] calling model %s", c.model)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   2048,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(in)},
		},
	})
	if err != nil {
		return plan.Plan{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return plan.Plan{}, fmt.Errorf("model returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	p, err := plan.Parse(raw)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("untrusted model output: %w", err)
	}
	log.Printf("[REASON] plan → action=%s target=%s confidence=%.2f",
		p.Action.Kind, p.Action.Target, p.Action.Confidence)
	return p, nil
}

// #endregion client
