package openaiservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	requestTimeout = 30 * time.Second
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("server is not configured for AI features")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// StatusOf returns the provider status code carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

/* =================================================================================
								MESSAGE TYPES
=================================================================================*/

// Message is one chat message. Content is a string or a []ContentPart.
type Message struct {
	Role       string      `json:"role"`
	Content    interface{} `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionRequest is one chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Tools       []Tool
	JSONMode    bool
	Temperature *float64
}

// Completion is the first choice of a chat-completion response.
type Completion struct {
	Model     string
	Content   string
	ToolCalls []ToolCall
}

/* =================================================================================
								CLIENT
=================================================================================*/

// Client is the provider surface the planner, estimates and search depend on.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// HTTPClient talks to an OpenAI-compatible API through go-openai.
type HTTPClient struct {
	cfg Config
	api *openai.Client
}

var _ Client = (*HTTPClient)(nil)

func New(cfg Config) *HTTPClient {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: requestTimeout})
}

func NewWithHTTPClient(cfg Config, hc *http.Client) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = hc
	return &HTTPClient{cfg: cfg, api: openai.NewClientWithConfig(apiCfg)}
}

func (c *HTTPClient) Model() string {
	return c.cfg.Model
}

// Complete issues a single chat-completion request. It does not retry.
func (c *HTTPClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	payload := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: toChatMessages(req.Messages),
		Tools:    toTools(req.Tools),
	}
	if req.JSONMode {
		payload.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	if req.Temperature != nil {
		payload.Temperature = float32(*req.Temperature)
	}

	out, err := c.api.CreateChatCompletion(ctx, payload)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("no choices found in provider response")
	}

	choice := out.Choices[0]
	model := out.Model
	if model == "" {
		model = c.cfg.Model
	}
	return &Completion{
		Model:     model,
		Content:   choice.Message.Content,
		ToolCalls: fromToolCalls(choice.Message.ToolCalls),
	}, nil
}

// Embed returns one vector per input, in input order.
func (c *HTTPClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	out, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, wrapError(err)
	}

	vecs := make([][]float32, len(inputs))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vecs, nil
}

// wrapError turns go-openai status errors into *APIError so callers can
// branch on the status code.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("request failed: %w", err)
}

/* =================================================================================
								CONVERSIONS
=================================================================================*/

func toChatMessages(in []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toToolCalls(m.ToolCalls),
		}
		switch content := m.Content.(type) {
		case string:
			msg.Content = content
		case []ContentPart:
			for _, p := range content {
				part := openai.ChatMessagePart{Type: openai.ChatMessagePartType(p.Type), Text: p.Text}
				if p.ImageURL != nil {
					part.ImageURL = &openai.ChatMessageImageURL{URL: p.ImageURL.URL}
				}
				msg.MultiContent = append(msg.MultiContent, part)
			}
		case nil:
		default:
			msg.Content = fmt.Sprint(content)
		}
		out = append(out, msg)
	}
	return out
}

func toTools(in []Tool) []openai.Tool {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(in))
	for _, t := range in {
		def := &openai.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}
		if len(t.Function.Parameters) > 0 {
			def.Parameters = t.Function.Parameters
		}
		out = append(out, openai.Tool{Type: openai.ToolType(t.Type), Function: def})
	}
	return out
}

func toToolCalls(in []ToolCall) []openai.ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.ToolCall, 0, len(in))
	for _, tc := range in {
		out = append(out, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolType(tc.Type),
			Function: openai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func fromToolCalls(in []openai.ToolCall) []ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(in))
	for _, tc := range in {
		out = append(out, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}
