package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/utterance"
)

const summarySystemPrompt = `You maintain the running memory of a conversation.
Merge the previous summary with the new lines into one short third-person summary (at most 5 sentences).
Keep names, facts, promises and open questions. Output ONLY the summary text, no headings, no markdown.`

// Summarizer は、窓から外れたターンをモデルに要約させます。
type Summarizer struct {
	llm      llm.LLM
	sampling llm.Sampling
}

func NewSummarizer(model llm.LLM) *Summarizer {
	return &Summarizer{
		llm:      model,
		sampling: llm.Sampling{Temperature: 0, MaxOutputTokens: 512},
	}
}

// Summarize は、前回の要約と新しいターンをまとめた要約を返します。
func (s *Summarizer) Summarize(ctx context.Context, previous string, turns []Turn) (string, error) {
	if len(turns) == 0 {
		return previous, nil
	}

	var sb strings.Builder
	sb.WriteString("Previous summary:\n")
	if previous == "" {
		sb.WriteString("(none)\n")
	} else {
		sb.WriteString(previous + "\n")
	}
	sb.WriteString("\nNew lines:\n")
	sb.WriteString(Context{Turns: turns}.Transcript())

	resp, err := s.llm.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarySystemPrompt},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		Sampling: s.sampling,
	})
	if err != nil {
		return "", fmt.Errorf("memory.Summarizer.Summarize: %w", err)
	}
	return utterance.Sanitize(resp), nil
}
