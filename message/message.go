package message

import (
	"time"

	"github.com/sat8bit/taiwa/persona"
)

type Kind string

const (
	KindSystem Kind = "system"
	KindSay    Kind = "say"
	KindPass   Kind = "pass"
	KindLog    Kind = "log"
	KindEnd    Kind = "end"
)

type Message struct {
	ConversationID string
	From           *persona.Persona
	// Text は生成言語のテキストです。記憶に入るのはこちらです。
	Text string
	// Display は表示用のテキストです。翻訳しない場合は Text と同じです。
	Display string
	At      time.Time
	Kind    Kind
	Meta    map[string]string
}

// IsTurn reports whether the message is a speaker's turn, spoken or passed.
func (m *Message) IsTurn() bool {
	return m.Kind == KindSay || m.Kind == KindPass
}

// Speaker returns the speaker's name, or "" for system messages.
func (m *Message) Speaker() string {
	if m.From == nil {
		return ""
	}
	return m.From.Name
}

// DisplayText returns Display, falling back to Text.
func (m *Message) DisplayText() string {
	if m.Display != "" {
		return m.Display
	}
	return m.Text
}
