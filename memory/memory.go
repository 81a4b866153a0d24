package memory

import (
	"fmt"
	"strings"
)

// Turn は、記録された1回分の発話です。内容は常に生成言語のままです。
type Turn struct {
	Speaker string
	Content string
}

// Memory は、会話の記憶です。追記のみで、記録済みのターンが書き換えられることはありません。
// プロセスの外に保存されることもありません。
type Memory struct {
	turns []Turn

	// summary は窓から外れたターンの要約です。turns とは別に保持し、turns は消しません。
	summary string
	// summarized は summary に畳み込み済みのターン数です。
	summarized int
}

func New() *Memory {
	return &Memory{}
}

func (m *Memory) Append(speaker, content string) {
	m.turns = append(m.turns, Turn{Speaker: speaker, Content: content})
}

func (m *Memory) Len() int {
	return len(m.turns)
}

// Turns は、記録されたターンのコピーを返します。
func (m *Memory) Turns() []Turn {
	return append([]Turn(nil), m.turns...)
}

// Recent は、直近 n ターンのコピーを返します。n <= 0 の場合はすべてです。
func (m *Memory) Recent(n int) []Turn {
	if n <= 0 || n >= len(m.turns) {
		return m.Turns()
	}
	return append([]Turn(nil), m.turns[len(m.turns)-n:]...)
}

func (m *Memory) Summary() string {
	return m.summary
}

// Context は、プロンプトに渡す記憶のスナップショットです。
type Context struct {
	Summary string
	Turns   []Turn
}

// IsEmpty reports whether there is nothing to remember yet.
func (c Context) IsEmpty() bool {
	return len(c.Turns) == 0 && c.Summary == ""
}

// Transcript renders the turns as "name: text" lines.
func (c Context) Transcript() string {
	var sb strings.Builder
	for _, t := range c.Turns {
		sb.WriteString(fmt.Sprintf("%s: %s\n", t.Speaker, t.Content))
	}
	return sb.String()
}

// Window は、直近 window ターンと要約からなる Context を返します。
// window <= 0 は無制限です。
func (m *Memory) Window(window int) Context {
	return Context{
		Summary: m.summary,
		Turns:   m.Recent(window),
	}
}

// Pending は、まだ要約に畳み込まれていないターンを返します。
func (m *Memory) Pending() []Turn {
	return append([]Turn(nil), m.turns[m.summarized:]...)
}

// Fold は、Pending の先頭 n ターンを summary に畳み込んだことを記録します。
// ターン自体は消えません。
func (m *Memory) Fold(summary string, n int) {
	m.summary = summary
	m.summarized += n
	if m.summarized > len(m.turns) {
		m.summarized = len(m.turns)
	}
}
