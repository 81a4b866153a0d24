package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/utterance"
)

// ErrEmptyTranslation は、空でない発話の翻訳結果が空になったことを示します。
var ErrEmptyTranslation = errors.New("empty translation")

const (
	DefaultSource = "English"
	DefaultTarget = "Russian"

	defaultMaxOutputTokens = 2048
)

// Translator は、確定した発話を表示用の言語に翻訳します。
// 翻訳結果は表示専用で、会話の記憶には戻しません。
type Translator struct {
	llm      llm.LLM
	source   string
	target   string
	sampling llm.Sampling
}

type Option func(*Translator)

func WithSource(lang string) Option {
	return func(t *Translator) {
		if lang != "" {
			t.source = lang
		}
	}
}

func WithMaxOutputTokens(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.sampling.MaxOutputTokens = n
		}
	}
}

func New(model llm.LLM, target string, opts ...Option) *Translator {
	if target == "" {
		target = DefaultTarget
	}
	t := &Translator{
		llm:    model,
		source: DefaultSource,
		target: target,
		// 翻訳に創作的なゆらぎは要らない
		sampling: llm.Sampling{Temperature: 0, MaxOutputTokens: defaultMaxOutputTokens},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Translator) Target() string {
	return t.target
}

func (t *Translator) systemPrompt() string {
	return fmt.Sprintf("You are a translation engine that converts %s text into %s while preserving style and tone. "+
		"Output ONLY the translated %s text, no explanations, no alternatives, no markdown formatting.",
		t.source, t.target, t.target)
}

// Translate は text を翻訳します。失敗はそのまま返し、原文での代替表示はしません。
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	resp, err := t.llm.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: t.systemPrompt()},
			{Role: llm.RoleUser, Content: text},
		},
		Sampling: t.sampling,
	})
	if err != nil {
		return "", fmt.Errorf("translate.Translator.Translate: %w", err)
	}

	translated := utterance.Sanitize(resp)
	if translated == "" {
		return "", fmt.Errorf("translate.Translator.Translate: %w", ErrEmptyTranslation)
	}
	return translated, nil
}
