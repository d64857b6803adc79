// Package model defines the provider-agnostic text-completion contract the
// orchestration engine treats the LLM provider SDK as (spec.md §1: "The LLM
// provider SDK (abstracted as a text-completion capability with tool-use)").
// Only the subset the Plan Generator's classification call and the Synthesis
// Engine's reasoning call actually need is modeled: plain-text messages, a
// single forced structured-output tool, and reported token usage.
package model

import "context"

type (
	// ConversationRole is the role of a message in a transcript.
	ConversationRole string

	// Message is a single transcript entry. The engine only ever sends and
	// receives plain text (spec.md explicitly scopes out multimodal/document
	// inputs as UI/domain concerns), so Message carries a single text body
	// rather than the teacher's richer Part union.
	Message struct {
		Role ConversationRole
		Text string
		// ToolCall is set on assistant messages that invoked the forced
		// structured-output tool. Message has no tool-result field:
		// classification/synthesis never round-trip a tool result to the
		// provider — the single call is one-shot.
		ToolCall *ToolCall
	}

	// ToolDefinition describes the single forced tool a Request may declare,
	// used to coerce the model into returning structured JSON matching
	// Schema (classification output, or none for free-form synthesis text).
	ToolDefinition struct {
		Name        string
		Description string
		Schema      []byte // JSON schema, compiled by callers via santhosh-tekuri/jsonschema/v6
	}

	// ToolCall is a tool invocation requested by the model.
	ToolCall struct {
		Name      string
		Arguments []byte // raw JSON arguments matching ToolDefinition.Schema
	}

	// TokenUsage tracks token counts reported for a model call. The
	// executor's cost accounting does not read it.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Request captures inputs for a single model invocation.
	Request struct {
		// Model is the provider-specific model identifier. When empty, the
		// client falls back to ModelClass, then its configured default.
		Model string
		// ModelClass selects a model family when Model is empty.
		ModelClass ModelClass
		// Messages is the ordered transcript provided to the model.
		Messages []Message
		// System is an optional system prompt.
		System string
		// Temperature controls sampling when supported by the provider.
		Temperature float32
		// Tool, when non-nil, forces the model to respond via this single
		// structured-output tool (used for classification).
		Tool *ToolDefinition
		// MaxTokens caps output tokens.
		MaxTokens int
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		// Text is the assistant's text content, when no tool was forced.
		Text string
		// ToolCall is populated when Request.Tool was set and the model
		// invoked it.
		ToolCall *ToolCall
		Usage    TokenUsage
		// StopReason records why generation stopped (provider-specific).
		StopReason string
	}

	// ModelClass identifies a model family a provider maps to a concrete
	// model identifier.
	ModelClass string

	// Client is the provider-agnostic model client consumed by the Plan
	// Generator and Synthesis Engine. Implementations translate Requests
	// into provider-specific calls.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

const (
	// ModelClassHighReasoning selects a high-reasoning model family.
	ModelClassHighReasoning ModelClass = "high-reasoning"
	// ModelClassDefault selects the default model family.
	ModelClassDefault ModelClass = "default"
	// ModelClassSmall selects a small/cheap model family.
	ModelClassSmall ModelClass = "small"
)
