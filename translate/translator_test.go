package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/llm/llmtest"
)

func TestTranslate(t *testing.T) {
	model := llmtest.NewScript("<think>formal or not?</think>\n Привет, Сергей! ")
	tr := New(model, "")
	assert.Equal(t, "Russian", tr.Target())

	got, err := tr.Translate(context.Background(), "Hi, Sergey!")
	require.NoError(t, err)
	assert.Equal(t, "Привет, Сергей!", got)
	assert.NotContains(t, got, "Hi, Sergey!")

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, float32(0), calls[0].Sampling.Temperature)
	assert.Equal(t, defaultMaxOutputTokens, calls[0].Sampling.MaxOutputTokens)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	assert.Contains(t, calls[0].Messages[0].Content, "converts English text into Russian")
	assert.Contains(t, calls[0].Messages[0].Content, "Output ONLY the translated Russian text")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Hi, Sergey!"}, calls[0].Messages[1])
}

func TestTranslate_Options(t *testing.T) {
	model := llmtest.NewScript("Hallo!")
	tr := New(model, "German", WithSource("Japanese"), WithMaxOutputTokens(64))

	_, err := tr.Translate(context.Background(), "こんにちは")
	require.NoError(t, err)
	call := model.Calls()[0]
	assert.Contains(t, call.Messages[0].Content, "converts Japanese text into German")
	assert.Equal(t, 64, call.Sampling.MaxOutputTokens)
}

func TestTranslate_EmptySkipsModel(t *testing.T) {
	model := llmtest.NewScript()
	got, err := New(model, "Russian").Translate(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, model.CallCount())
}

func TestTranslate_Error(t *testing.T) {
	cause := &llm.ProviderError{Provider: "openai", Err: errors.New("timeout")}
	model := &llmtest.Script{Errors: []error{cause}}

	_, err := New(model, "Russian").Translate(context.Background(), "Hi")
	require.Error(t, err)
	var pe *llm.ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestTranslate_EmptyResultIsError(t *testing.T) {
	model := llmtest.NewScript("<think>I am still thinking about how to say it")

	got, err := New(model, "Russian").Translate(context.Background(), "Hello, Sergey!")
	require.ErrorIs(t, err, ErrEmptyTranslation)
	assert.Empty(t, got)
}
