package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig は、OpenAI 互換のチャット補完エンドポイントの設定です。
// 値はすべて不透明な文字列として扱います。
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// リトライは行わない。失敗はそのまま会話の中断になる。
	opts = append(opts, option.WithMaxRetries(0))

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

type OpenAI struct {
	client openai.Client
	model  string
}

func (o *OpenAI) Generate(ctx context.Context, input GenerateInput) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    toOpenAIMessages(input.Messages),
		Temperature: openai.Float(float64(input.Sampling.Temperature)),
	}
	if input.Sampling.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(input.Sampling.MaxOutputTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &ProviderError{Provider: "openai", Err: fmt.Errorf("llm.OpenAI.Generate: %w", err)}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: "openai", Err: errors.New("llm.OpenAI.Generate: response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

var _ LLM = &OpenAI{}
