package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"textbookrag/internal/config"
)

// ErrMissingCredential is returned at construction when the API key
// environment variable is empty.
var ErrMissingCredential = errors.New("answer: missing API credential")

// ErrEmptyAnswer is returned when the service responds without choices.
var ErrEmptyAnswer = errors.New("answer: empty completion")

// Client sends assembled prompts to an OpenAI-compatible chat completion
// endpoint. It never retries; the breaker only stops calling a service
// that keeps failing.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	log         *slog.Logger
}

func NewClient(cfg config.AnswerConfig, log *slog.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingCredential, cfg.APIKeyEnv)
	}
	if log == nil {
		log = slog.Default()
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	c := &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		log:         log,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	if cfg.BreakerFailures > 0 {
		failures := uint32(cfg.BreakerFailures)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "answer",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return c, nil
}

// Generate sends prompt as a single user message and returns the trimmed
// content of the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("textbookrag/answer").Start(ctx, "answer.generate")
	defer span.End()
	span.SetAttributes(attribute.String("answer.model", c.model), attribute.Int("answer.prompt_chars", len(prompt)))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	call := func() (interface{}, error) { return c.complete(ctx, prompt) }
	var (
		out interface{}
		err error
	)
	if c.breaker != nil {
		out, err = c.breaker.Execute(call)
	} else {
		out, err = call()
	}
	if err != nil {
		span.SetAttributes(attribute.Bool("answer.error", true))
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return out.(string), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
