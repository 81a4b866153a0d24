package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig は Gemini クライアントの設定です。
// Project と Location があれば Vertex AI、なければ APIKey で Gemini API を使います。
type GeminiConfig struct {
	APIKey   string
	BaseURL  string
	Project  string
	Location string
	Model    string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Project != "" && cfg.Location != "" {
		clientConfig = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("llm.NewGemini: %w", err)}
	}

	return &Gemini{
		client: client,
		model:  cfg.Model,
	}, nil
}

type Gemini struct {
	client *genai.Client
	model  string
}

func (g *Gemini) Generate(ctx context.Context, input GenerateInput) (string, error) {
	system, contents := toGeminiContents(input.Messages)

	temp := input.Sampling.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(input.Sampling.MaxOutputTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Err: fmt.Errorf("llm.Gemini.Generate: %w", err)}
	}

	txt, ok := extractText(resp)
	if !ok {
		return "", &ProviderError{Provider: "gemini", Err: errors.New("llm.Gemini.Generate: response has no text candidates")}
	}
	return txt, nil
}

// toGeminiContents は、system メッセージを SystemInstruction 用の文字列にまとめ、
// 残りを genai の会話履歴に変換します。assistant はモデル自身の発話として渡します。
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}

		var role genai.Role = genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return strings.Join(system, "\n\n"), contents
}

func extractText(res *genai.GenerateContentResponse) (string, bool) {
	if res == nil || len(res.Candidates) == 0 {
		return "", false
	}
	// 最も確度が高い候補のテキスト部分のみ
	for _, c := range res.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.Text != "" {
				return p.Text, true
			}
		}
	}
	return "", false
}

var _ LLM = &Gemini{}
