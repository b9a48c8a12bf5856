package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

// OpenAIChatModel adapts an OpenAI-compatible chat completions endpoint
// (OpenAI itself or a local server) to the eino chat model contract.
type OpenAIChatModel struct {
	client    openai.Client
	model     string
	maxTokens int
}

var _ einomodel.BaseChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIBackend creates an OpenAI-compatible backend. A base URL without an
// API key is allowed for local servers.
func NewOpenAIBackend(cfg model.GatewayConfig) (Backend, error) {
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		return Backend{}, errors.New("openai provider needs OPENAI_API_KEY or OPENAI_BASE_URL")
	}
	var opts []option.RequestOption
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.OpenAIAPIKey))
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	// Retries are the caller's decision, and the gateway never retries.
	opts = append(opts, option.WithMaxRetries(0))

	chat := &OpenAIChatModel{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	return Backend{
		Chat:  chat,
		Model: cfg.Model,
		Probe: func(ctx context.Context) error {
			_, err := chat.client.Models.Get(ctx, chat.model)
			return err
		},
	}, nil
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (out *schema.Message, err error) {
	common := einomodel.GetCommonOptions(&einomodel.Options{
		Model:     &m.model,
		MaxTokens: &m.maxTokens,
	}, opts...)

	conf := &einomodel.Config{Model: m.model}
	if common.Model != nil {
		conf.Model = *common.Model
	}
	if common.MaxTokens != nil {
		conf.MaxTokens = *common.MaxTokens
	}
	if common.Temperature != nil {
		conf.Temperature = *common.Temperature
	}

	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{Messages: input, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(conf.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(input)),
	}
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		case schema.User:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	if common.Temperature != nil {
		params.Temperature = openai.Float(float64(*common.Temperature))
	}
	if conf.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(conf.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completion: no choices returned")
	}

	usage := &schema.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	out = schema.AssistantMessage(strings.TrimSpace(resp.Choices[0].Message.Content), nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        usage,
	}

	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{
		Message: out,
		Config:  conf,
		TokenUsage: &einomodel.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	})
	return out, nil
}

// Stream returns the full completion as a single chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *OpenAIChatModel) GetType() string { return "OpenAI" }

func (m *OpenAIChatModel) IsCallbacksEnabled() bool { return true }
