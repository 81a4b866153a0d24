package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sat8bit/taiwa/bus"
	"github.com/sat8bit/taiwa/cha"
	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/llm/llmtest"
	"github.com/sat8bit/taiwa/memory"
	"github.com/sat8bit/taiwa/message"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/prompt"
	"github.com/sat8bit/taiwa/topic"
	"github.com/sat8bit/taiwa/translate"
)

func newChas(model llm.LLM, names ...string) []*cha.Cha {
	builder := prompt.NewBuilder()
	chas := make([]*cha.Cha, 0, len(names))
	for _, n := range names {
		p := &persona.Persona{Name: n, Age: 30, Occupation: "tester"}
		chas = append(chas, cha.NewCha("cha-"+strings.ToLower(n), p, model, builder))
	}
	return chas
}

// collect drains the bus after the run finished.
func collect(b *bus.MemoryBus, ch <-chan *message.Message) []*message.Message {
	b.Close()
	var out []*message.Message
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func turnMessages(msgs []*message.Message) []*message.Message {
	var out []*message.Message
	for _, m := range msgs {
		if m.IsTurn() {
			out = append(out, m)
		}
	}
	return out
}

// speakerOf extracts the speaking persona from the system prompt.
func speakerOf(input llm.GenerateInput) string {
	sys := input.Messages[0].Content
	rest := strings.TrimPrefix(sys, "You are role-playing as ")
	return rest[:strings.Index(rest, ",")]
}

func TestRun_DuoAlternatesAndRemembersEveryTurn(t *testing.T) {
	model := &llmtest.Script{Func: func(call int, input llm.GenerateInput) (string, error) {
		return fmt.Sprintf("%s says %d", speakerOf(input), call), nil
	}}
	b := bus.NewMemoryBus(256)
	ch := b.Subscribe()

	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 6, FirstSpeaker: 1}, newChas(model, "Anna", "Sergey"), b)
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	turns := sup.Memory().Turns()
	require.Len(t, turns, 6)
	for i, tr := range turns {
		want := []string{"Sergey", "Anna"}[i%2]
		assert.Equal(t, want, tr.Speaker)
		assert.Equal(t, fmt.Sprintf("%s says %d", want, i), tr.Content)
	}
	assert.Equal(t, 6, sup.GetCurrentTurn())
	assert.Equal(t, 6, sup.GetMaxTurns())

	msgs := collect(b, ch)
	require.NotEmpty(t, msgs)
	assert.Equal(t, message.KindSystem, msgs[0].Kind)
	assert.Equal(t, message.KindEnd, msgs[len(msgs)-1].Kind)
	assert.Len(t, turnMessages(msgs), 6)
	for _, m := range msgs {
		assert.Equal(t, sup.ConversationID(), m.ConversationID)
	}

	// 二者会話では PASS も普通の発話として扱う
	calls := model.Calls()
	assert.NotContains(t, calls[0].Messages[0].Content, "PASS")
}

func TestRun_DuoPassIsAnUtterance(t *testing.T) {
	model := llmtest.NewScript("PASS", "Pass the salt?")
	b := bus.NewMemoryBus(64)

	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 2}, newChas(model, "Anna", "Sergey"), b)
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))
	assert.Equal(t, 2, sup.Memory().Len())
}

func TestRun_GroupRotationIgnoresPasses(t *testing.T) {
	names := []string{"Anna", "Sergey", "Olga"}
	passes := map[int]bool{1: true, 4: true, 5: true}
	model := &llmtest.Script{Func: func(call int, input llm.GenerateInput) (string, error) {
		if passes[call] {
			return "<think>not for me</think> pass", nil
		}
		return fmt.Sprintf("line %d", call), nil
	}}
	b := bus.NewMemoryBus(256)
	ch := b.Subscribe()

	sup, err := NewSupervisor(Config{Mode: ModeGroup, MaxTurns: 8}, newChas(model, names...), b)
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	calls := model.Calls()
	require.Len(t, calls, 8)
	for i, call := range calls {
		assert.Equal(t, names[i%len(names)], speakerOf(call), "turn %d", i)
	}

	msgs := turnMessages(collect(b, ch))
	require.Len(t, msgs, 8)
	for i, m := range msgs {
		assert.Equal(t, names[i%len(names)], m.Speaker())
		if passes[i] {
			assert.Equal(t, message.KindPass, m.Kind)
			assert.Equal(t, "pass", m.DisplayText())
		} else {
			assert.Equal(t, message.KindSay, m.Kind)
		}
	}

	// 見送ったターンは記憶に入らない
	assert.Equal(t, 8-len(passes), sup.Memory().Len())
	for _, tr := range sup.Memory().Turns() {
		assert.NotEqual(t, "pass", tr.Content)
	}

	// 見送りの直後のターンのプロンプトには見送りが現れない
	for _, m := range calls[2].Messages[1:] {
		assert.NotContains(t, strings.ToLower(m.Content), "pass")
	}
	assert.Contains(t, calls[2].Messages[1].Content, "Anna: line 0")
}

func TestRun_GroupOfTwoAllowsPass(t *testing.T) {
	model := llmtest.NewScript("PASS", "Hi!")
	sup, err := NewSupervisor(Config{Mode: ModeGroup, MaxTurns: 2}, newChas(model, "Anna", "Sergey"), bus.NewMemoryBus(64))
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	assert.Equal(t, []memory.Turn{{Speaker: "Sergey", Content: "Hi!"}}, sup.Memory().Turns())
}

func TestNewSupervisor_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		names []string
	}{
		{"group with one persona", Config{Mode: ModeGroup}, []string{"Anna"}},
		{"group with none", Config{Mode: ModeGroup}, nil},
		{"duo with three", Config{Mode: ModeDuo}, []string{"Anna", "Sergey", "Olga"}},
		{"duplicate names", Config{Mode: ModeGroup}, []string{"Anna", "Sergey", "Anna"}},
		{"unknown mode", Config{Mode: "panel"}, []string{"Anna", "Sergey"}},
		{"negative turns", Config{Mode: ModeDuo, MaxTurns: -1}, []string{"Anna", "Sergey"}},
		{"first speaker out of range", Config{Mode: ModeDuo, FirstSpeaker: 2}, []string{"Anna", "Sergey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.NewScript("never")
			_, err := NewSupervisor(tt.cfg, newChas(model, tt.names...), bus.NewMemoryBus(8))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Zero(t, model.CallCount())
		})
	}
}

func TestNewSupervisor_Defaults(t *testing.T) {
	sup, err := NewSupervisor(Config{}, newChas(llmtest.NewScript(), "Anna", "Sergey"), bus.NewMemoryBus(8), WithConversationID("conv-1"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTurns, sup.GetMaxTurns())
	assert.Equal(t, "conv-1", sup.ConversationID())
	assert.Equal(t, []string{"Anna", "Sergey"}, persona.Names(sup.Personas()))
}

func TestRun_TranslationIsDisplayOnly(t *testing.T) {
	model := llmtest.NewScript("Hello, Sergey!", "PASS", "Hi, Anna.")
	translator := llmtest.NewScript("Привет, Сергей!", "Привет, Анна.")
	b := bus.NewMemoryBus(64)
	ch := b.Subscribe()

	sup, err := NewSupervisor(Config{Mode: ModeGroup, MaxTurns: 3}, newChas(model, "Anna", "Sergey", "Olga"), b,
		WithTranslator(translate.New(translator, "Russian")))
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	assert.Equal(t, []memory.Turn{
		{Speaker: "Anna", Content: "Hello, Sergey!"},
		{Speaker: "Olga", Content: "Hi, Anna."},
	}, sup.Memory().Turns())

	msgs := turnMessages(collect(b, ch))
	require.Len(t, msgs, 3)
	assert.Equal(t, "Привет, Сергей!", msgs[0].DisplayText())
	assert.Equal(t, "Hello, Sergey!", msgs[0].Text)
	assert.NotContains(t, msgs[0].DisplayText(), "Hello, Sergey!")
	assert.Equal(t, "PASS", msgs[1].DisplayText())
	assert.Equal(t, "Привет, Анна.", msgs[2].DisplayText())

	// パスは翻訳しない
	require.Equal(t, 2, translator.CallCount())
	for _, call := range translator.Calls() {
		assert.Equal(t, float32(0), call.Sampling.Temperature)
	}

	// 翻訳は次のターンのプロンプトに入らない
	for _, m := range model.Calls()[2].Messages {
		assert.NotContains(t, m.Content, "Привет")
	}
}

func TestRun_ProviderErrorAborts(t *testing.T) {
	cause := &llm.ProviderError{Provider: "openai", Err: errors.New("401")}
	model := &llmtest.Script{
		Replies: []string{"one", "two", "three"},
		Errors:  []error{nil, nil, cause},
	}
	b := bus.NewMemoryBus(64)
	ch := b.Subscribe()

	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 20}, newChas(model, "Anna", "Sergey"), b)
	require.NoError(t, err)

	err = sup.Run(context.Background())
	require.Error(t, err)
	var pe *llm.ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "turn 3")

	assert.Equal(t, 2, sup.Memory().Len())
	assert.Equal(t, 3, model.CallCount())

	msgs := collect(b, ch)
	assert.Len(t, turnMessages(msgs), 2)
	assert.NotEqual(t, message.KindEnd, msgs[len(msgs)-1].Kind)
}

func TestRun_TranslationErrorAborts(t *testing.T) {
	model := llmtest.NewScript("Hello!")
	translator := &llmtest.Script{Errors: []error{errors.New("translation down")}}

	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 4}, newChas(model, "Anna", "Sergey"), bus.NewMemoryBus(64),
		WithTranslator(translate.New(translator, "Russian")))
	require.NoError(t, err)

	require.Error(t, sup.Run(context.Background()))
	assert.Zero(t, sup.Memory().Len())
}

type blankTranslator struct{}

func (blankTranslator) Translate(context.Context, string) (string, error) { return "", nil }

func TestRun_EmptyTranslationAborts(t *testing.T) {
	model := llmtest.NewScript("Hello, Sergey!")
	translator := llmtest.NewScript("<think>I am still thinking about how to say it")
	b := bus.NewMemoryBus(64)
	ch := b.Subscribe()

	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 2}, newChas(model, "Anna", "Sergey"), b,
		WithTranslator(translate.New(translator, "Russian")))
	require.NoError(t, err)

	err = sup.Run(context.Background())
	require.ErrorIs(t, err, translate.ErrEmptyTranslation)
	assert.Zero(t, sup.Memory().Len())
	// 原文が訳として流れないこと
	assert.Empty(t, turnMessages(collect(b, ch)))
}

func TestRun_BlankTranslatorAborts(t *testing.T) {
	model := llmtest.NewScript("Hello, Sergey!")
	b := bus.NewMemoryBus(64)
	ch := b.Subscribe()

	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 2}, newChas(model, "Anna", "Sergey"), b,
		WithTranslator(blankTranslator{}))
	require.NoError(t, err)

	require.ErrorIs(t, sup.Run(context.Background()), ErrEmptyTranslation)
	assert.Empty(t, turnMessages(collect(b, ch)))
}

func TestRun_EmptyUtteranceIsStillATurn(t *testing.T) {
	model := llmtest.NewScript("<think>never finished", "Hi.")
	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 2}, newChas(model, "Anna", "Sergey"), bus.NewMemoryBus(64))
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	assert.Equal(t, []memory.Turn{{Speaker: "Anna", Content: ""}, {Speaker: "Sergey", Content: "Hi."}}, sup.Memory().Turns())
}

func TestRun_WindowLimitsContext(t *testing.T) {
	model := &llmtest.Script{Func: func(call int, _ llm.GenerateInput) (string, error) {
		return fmt.Sprintf("line %d", call), nil
	}}
	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 5, Window: 2}, newChas(model, "Anna", "Sergey"), bus.NewMemoryBus(64))
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	assert.Equal(t, 5, sup.Memory().Len())
	last := model.Calls()[4]
	var joined []string
	for _, m := range last.Messages[1:] {
		joined = append(joined, m.Content)
	}
	all := strings.Join(joined, "\n")
	assert.NotContains(t, all, "line 1")
	assert.Contains(t, all, "line 2")
	assert.Contains(t, all, "line 3")
}

type fakeSummarizer struct {
	calls [][]memory.Turn
}

func (f *fakeSummarizer) Summarize(_ context.Context, previous string, turns []memory.Turn) (string, error) {
	f.calls = append(f.calls, turns)
	return fmt.Sprintf("summary #%d", len(f.calls)), nil
}

func TestRun_SummarizerFoldsOldTurns(t *testing.T) {
	model := &llmtest.Script{Func: func(call int, _ llm.GenerateInput) (string, error) {
		return fmt.Sprintf("line %d", call), nil
	}}
	sum := &fakeSummarizer{}
	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 6, Window: 2}, newChas(model, "Anna", "Sergey"), bus.NewMemoryBus(64),
		WithSummarizer(sum))
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	// 要約しても記憶のターンは消えない
	assert.Equal(t, 6, sup.Memory().Len())
	require.Len(t, sum.calls, 2)
	assert.Equal(t, "line 0", sum.calls[0][0].Content)
	assert.Equal(t, "line 2", sum.calls[1][0].Content)
	assert.Equal(t, "summary #2", sup.Memory().Summary())

	// 5ターン目のプロンプトには最初の要約と、まだ要約されていないターンが載る
	fifth := model.Calls()[4]
	assert.Contains(t, fifth.Messages[0].Content, "summary #1")
	var rest []string
	for _, m := range fifth.Messages[1:] {
		rest = append(rest, m.Content)
	}
	assert.NotContains(t, strings.Join(rest, "\n"), "line 1")
	assert.Contains(t, strings.Join(rest, "\n"), "line 3")
}

func TestRun_Topic(t *testing.T) {
	model := llmtest.NewScript("Nice weather!")
	b := bus.NewMemoryBus(64)
	ch := b.Subscribe()
	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 1, Topic: &topic.Topic{Title: "the weather"}},
		newChas(model, "Anna", "Sergey"), b)
	require.NoError(t, err)
	require.NoError(t, sup.Run(context.Background()))

	msgs := collect(b, ch)
	assert.Contains(t, msgs[0].Text, "Topic: the weather.")
	assert.Equal(t, "the weather", msgs[0].Meta["topic"])
	assert.Contains(t, model.Calls()[0].Messages[1].Content, "Topic: the weather.")
}

func TestRun_CanceledContext(t *testing.T) {
	model := llmtest.NewScript("Hi")
	sup, err := NewSupervisor(Config{Mode: ModeDuo, MaxTurns: 3}, newChas(model, "Anna", "Sergey"), bus.NewMemoryBus(64))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Zero(t, model.CallCount())
}
