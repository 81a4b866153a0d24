package cha

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/prompt"
	"github.com/sat8bit/taiwa/utterance"
)

// DefaultSampling は発話生成のサンプリング設定の既定値です。
var DefaultSampling = llm.Sampling{Temperature: 0.8, MaxOutputTokens: 2048}

// Cha は、1人のペルソナとして発話するキャラクターです。
// すべてのペルソナが同じ LLM を共有できます。視点はプロンプトで切り替わります。
type Cha struct {
	ChaId    string
	Persona  *persona.Persona
	llm      llm.LLM
	builder  *prompt.Builder
	sampling llm.Sampling
}

type Option func(*Cha)

func WithSampling(s llm.Sampling) Option {
	return func(c *Cha) {
		c.sampling = s
	}
}

func NewCha(
	chaId string,
	persona *persona.Persona,
	llmInstance llm.LLM,
	builder *prompt.Builder,
	opts ...Option,
) *Cha {
	c := &Cha{
		ChaId:    chaId,
		Persona:  persona,
		llm:      llmInstance,
		builder:  builder,
		sampling: DefaultSampling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Speak は、1ターン分の発話を生成します。
// プロンプトを組み立て、LLM を呼び、生出力を Utterance に解釈します。
// LLM のエラーはそのまま返します（リトライしない）。
func (c *Cha) Speak(ctx context.Context, req prompt.Request) (utterance.Utterance, error) {
	req.Speaker = c.Persona

	raw, err := c.llm.Generate(ctx, llm.GenerateInput{
		Messages: c.builder.Build(req),
		Sampling: c.sampling,
	})
	if err != nil {
		return utterance.Utterance{}, fmt.Errorf("cha %s: %w", c.ChaId, err)
	}

	u := utterance.Decode(raw, req.IsGroup())
	if u.Text == "" {
		slog.WarnContext(ctx, "reply was empty after sanitizing", "chaId", c.ChaId, "raw", raw)
	}
	return u, nil
}
