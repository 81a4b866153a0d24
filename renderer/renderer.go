package renderer

import (
	"context"

	"github.com/sat8bit/taiwa/message"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/turn"
)

// Renderer は、会話のレンダリングを行うコンポーネントが満たすべきインターフェースです。
type Renderer interface {
	// Render は、チャネルが閉じられるまでメッセージを描画し続けます。
	Render(ctx context.Context, ch <-chan *message.Message) error

	// Finalize は、すべての会話が終了した後の最終処理を行います。
	// 例えば、ファイルの末尾にフッターを追記するなどの処理を想定しています。
	Finalize(allPersonas []*persona.Persona, progress turn.TurnProvider) error
}
