// Package model: OpenAI-backed Client implementation, adapted from the
// teacher's features/model/openai client shape but targeting
// github.com/openai/openai-go's Chat Completions API and this engine's
// trimmed Request/Response contract.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChatService captures the subset of the openai-go client used by the
// adapter, so tests can substitute a mock implementation.
type OpenAIChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	Chat         OpenAIChatService
	DefaultModel string
	SmallModel   string
	MaxTokens    int
	Temperature  float64
}

// OpenAIClient implements Client via the OpenAI Chat Completions API.
type OpenAIClient struct {
	chat         OpenAIChatService
	defaultModel string
	smallModel   string
	maxTokens    int
	temperature  float64
}

// NewOpenAIClient builds a Client from an OpenAI chat completions service.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.Chat == nil {
		return nil, errors.New("openai: chat service is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &OpenAIClient{
		chat:         opts.Chat,
		defaultModel: opts.DefaultModel,
		smallModel:   opts.SmallModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// NewOpenAIClientFromAPIKey constructs a client using the default openai-go
// HTTP client, reading the API key explicitly (no implicit env lookup, to
// keep configuration centralized in Config per SPEC_FULL.md §2).
func NewOpenAIClientFromAPIKey(apiKey, defaultModel string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIClient(OpenAIOptions{Chat: &c.Chat.Completions, DefaultModel: defaultModel})
}

// Complete issues a non-streaming chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		if req.ModelClass == ModelClassSmall && c.smallModel != "" {
			modelID = c.smallModel
		} else {
			modelID = c.defaultModel
		}
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Text))
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Text))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Text))
		default:
			return nil, fmt.Errorf("openai: unsupported role %q", m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: msgs,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if t := req.Temperature; t > 0 {
		params.Temperature = openai.Float(float64(t))
	} else if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	if req.Tool != nil {
		var schema map[string]any
		if err := json.Unmarshal(req.Tool.Schema, &schema); err != nil {
			return nil, fmt.Errorf("openai: invalid tool schema: %w", err)
		}
		params.Tools = []openai.ChatCompletionToolParam{
			{
				Function: openai.FunctionDefinitionParam{
					Name:        req.Tool.Name,
					Description: openai.String(req.Tool.Description),
					Parameters:  openai.FunctionParameters(schema),
				},
			},
		}
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.Tool.Name},
			},
		}
	}

	out, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateOpenAIResponse(out)
}

func translateOpenAIResponse(out *openai.ChatCompletion) (*Response, error) {
	if len(out.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}
	choice := out.Choices[0]
	resp := &Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int(out.Usage.PromptTokens),
			OutputTokens: int(out.Usage.CompletionTokens),
			TotalTokens:  int(out.Usage.TotalTokens),
		},
	}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		resp.ToolCall = &ToolCall{
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		}
	}
	return resp, nil
}
