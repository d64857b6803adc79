// Package model: Bedrock-backed Client implementation (Claude via AWS
// Bedrock Converse), adapted from the teacher's features/model/bedrock/client.go,
// trimmed to this engine's text + single forced-tool Request/Response shape.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockRuntime mirrors the subset of the AWS Bedrock runtime client the
// adapter needs, matching *bedrockruntime.Client so tests can substitute a
// fake implementation.
type BedrockRuntime interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOptions configures the Bedrock adapter.
type BedrockOptions struct {
	Runtime      BedrockRuntime
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float32
}

// BedrockClient implements Client on top of AWS Bedrock Converse.
type BedrockClient struct {
	runtime      BedrockRuntime
	defaultModel string
	highModel    string
	smallModel   string
	maxTokens    int
	temperature  float32
}

// NewBedrockClient builds a Client from a Bedrock runtime client.
func NewBedrockClient(opts BedrockOptions) (*BedrockClient, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &BedrockClient{
		runtime:      opts.Runtime,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// Complete issues a Converse call against Bedrock.
func (c *BedrockClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := c.resolveModelID(req)

	var system []brtypes.SystemContentBlock
	if req.System != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: req.System})
	}

	var conv []brtypes.Message
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if m.Text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Text})
			}
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role {
		case RoleUser:
			role = brtypes.ConversationRoleUser
		case RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, fmt.Errorf("bedrock: unsupported role %q", m.Role)
		}
		conv = append(conv, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}},
		})
	}
	if len(conv) == 0 {
		return nil, errors.New("bedrock: at least one user/assistant message is required")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: conv,
		System:   system,
	}

	inferCfg := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inferCfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	} else if c.maxTokens > 0 {
		inferCfg.MaxTokens = aws.Int32(int32(c.maxTokens))
	}
	if t := req.Temperature; t > 0 {
		inferCfg.Temperature = aws.Float32(t)
	} else if c.temperature > 0 {
		inferCfg.Temperature = aws.Float32(c.temperature)
	}
	input.InferenceConfig = inferCfg

	if req.Tool != nil {
		var schema map[string]any
		if err := json.Unmarshal(req.Tool.Schema, &schema); err != nil {
			return nil, fmt.Errorf("bedrock: invalid tool schema: %w", err)
		}
		input.ToolConfig = &brtypes.ToolConfiguration{
			Tools: []brtypes.Tool{
				&brtypes.ToolMemberToolSpec{
					Value: brtypes.ToolSpecification{
						Name:        aws.String(req.Tool.Name),
						Description: aws.String(req.Tool.Description),
						InputSchema: &brtypes.ToolInputSchemaMemberJson{
							Value: document.NewLazyDocument(schema),
						},
					},
				},
			},
			ToolChoice: &brtypes.ToolChoiceMemberTool{
				Value: brtypes.SpecificToolChoice{Name: aws.String(req.Tool.Name)},
			},
		}
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateBedrockResponse(out)
}

func (c *BedrockClient) resolveModelID(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func translateBedrockResponse(out *bedrockruntime.ConverseOutput) (*Response, error) {
	resp := &Response{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	for _, block := range msgOut.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			var args map[string]any
			if err := v.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
				return nil, fmt.Errorf("bedrock: unmarshal tool_use input: %w", err)
			}
			raw, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("bedrock: marshal tool_use input: %w", err)
			}
			resp.ToolCall = &ToolCall{Name: aws.ToString(v.Value.Name), Arguments: raw}
		}
	}
	return resp, nil
}
