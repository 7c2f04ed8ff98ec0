package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultBaseURL = "https://api.openai.com/v1"

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client implements the assistant's text tools on an OpenAI-compatible API.
// Prompts are rendered and executed through an eino chain; the API key is
// fetched from SSM on first use and reused for the process lifetime.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string
	model       string
	maxRetries  int

	sdkOnce sync.Once
	sdk     sdk.Client
	sdkErr  error

	chain compose.Runnable[map[string]any, string]
	ideas compose.Runnable[string, []string]
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint. An empty value keeps the default.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = strings.TrimSpace(model)
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// API key retrieval.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 90 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
		model:       "gpt-4o-mini",
		maxRetries:  2,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	ctx := context.Background()
	chain, err := c.buildChain(ctx)
	if err != nil {
		return nil, err
	}
	c.chain = chain
	ideas, err := c.buildIdeaGraph(ctx)
	if err != nil {
		return nil, err
	}
	c.ideas = ideas
	return c, nil
}

// buildChain renders {system}/{prompt} into messages and sends them to the model.
func (c *Client) buildChain(ctx context.Context) (compose.Runnable[map[string]any, string], error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{prompt}"),
	)
	chain := compose.NewChain[map[string]any, string]()
	chain.AppendChatTemplate(tpl)
	chain.AppendLambda(compose.InvokableLambda(c.complete))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: compile chain: %w", err)
	}
	return runnable, nil
}

// resolveSDK builds the SDK client on the first call, after fetching the key.
func (c *Client) resolveSDK(ctx context.Context) (sdk.Client, error) {
	c.sdkOnce.Do(func() {
		key, err := fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			c.sdkErr = err
			return
		}
		c.sdk = sdk.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(sdkBaseURL(c.baseURL)),
			option.WithHTTPClient(c.resolvedHTTPClient()),
			option.WithMaxRetries(c.maxRetries),
		)
	})
	return c.sdk, c.sdkErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// resolvedHTTPClient returns the configured HTTP client, or a default if none
// was set (e.g. in tests that nil out the field).
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 90 * time.Second}
}

// sdkBaseURL normalizes a configured base URL to the trailing-slash /v1/ form
// the SDK joins request paths onto.
func sdkBaseURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

// complete is the model node of the chain.
func (c *Client) complete(ctx context.Context, in []*schema.Message) (string, error) {
	client, err := c.resolveSDK(ctx)
	if err != nil {
		return "", err
	}

	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case schema.System:
			msgs = append(msgs, sdk.SystemMessage(m.Content))
		case schema.Assistant:
			msgs = append(msgs, sdk.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, sdk.UserMessage(m.Content))
		}
	}

	resp, err := client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", &HTTPStatusError{StatusCode: apiErr.StatusCode, URL: sdkBaseURL(c.baseURL), Body: apiErr.Error()}
		}
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// run executes one prompt through the chain.
func (c *Client) run(ctx context.Context, system, userPrompt string) (string, error) {
	out, err := c.chain.Invoke(ctx, map[string]any{
		"system": system,
		"prompt": userPrompt,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
