package llm

import (
	"context"
	"fmt"
)

// LLM は、会話の生成に使う言語モデルの抽象です。
// 実装の内部には踏み込まず、「メッセージ列 + サンプリング設定 -> テキスト」だけを約束します。
type LLM interface {
	// Generate generates text based on the provided messages.
	Generate(ctx context.Context, input GenerateInput) (string, error)
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Sampling は、1回の生成に使うサンプリング設定です。
type Sampling struct {
	Temperature     float32
	MaxOutputTokens int
}

type GenerateInput struct {
	Messages []Message
	Sampling Sampling
}

// ProviderError は、モデル呼び出しの失敗（通信、認証、不正な応答）を表します。
// 会話は中断され、リトライはしません。
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
