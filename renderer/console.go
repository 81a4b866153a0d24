package renderer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sat8bit/taiwa/message"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/turn"
)

type ConsoleOption func(*ConsoleRenderer)

// WithTypingDelay は1文字ずつ表示する効果を有効にします。
func WithTypingDelay(d time.Duration) ConsoleOption {
	return func(c *ConsoleRenderer) {
		c.typingDelay = d
	}
}

func NewConsoleRenderer(w io.Writer, opts ...ConsoleOption) *ConsoleRenderer {
	if w == nil {
		w = os.Stdout
	}
	c := &ConsoleRenderer{w: w}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConsoleRenderer は、1ターン1行 "名前: 表示テキスト" で発話順に出力します。
// 見送ったターンも PASS の返答をそのまま出力します。
type ConsoleRenderer struct {
	w           io.Writer
	typingDelay time.Duration
}

func (c *ConsoleRenderer) Render(ctx context.Context, ch <-chan *message.Message) error {
	for o := range ch {
		switch o.Kind {
		case message.KindSystem:
			if _, err := fmt.Fprintf(c.w, "[System] %s\n", o.Text); err != nil {
				return fmt.Errorf("renderer.ConsoleRenderer.Render: %w", err)
			}
		case message.KindSay, message.KindPass:
			if err := c.line(ctx, o.Speaker(), o.DisplayText()); err != nil {
				return fmt.Errorf("renderer.ConsoleRenderer.Render: %w", err)
			}
		default:
			// ログと終了通知はコンソールには出さない
		}
	}
	return nil
}

func (c *ConsoleRenderer) line(ctx context.Context, name, text string) error {
	if c.typingDelay <= 0 || ctx.Err() != nil {
		_, err := fmt.Fprintf(c.w, "%s: %s\n", name, text)
		return err
	}

	if _, err := fmt.Fprintf(c.w, "%s: ", name); err != nil {
		return err
	}
	for _, r := range text {
		if _, err := fmt.Fprint(c.w, string(r)); err != nil {
			return err
		}
		time.Sleep(c.typingDelay)
	}
	_, err := fmt.Fprintln(c.w)
	return err
}

// Finalize は Renderer インターフェースを実装するためのメソッドです。
// ConsoleRenderer では特に何も行いません。
func (c *ConsoleRenderer) Finalize(allPersonas []*persona.Persona, progress turn.TurnProvider) error {
	return nil
}

var _ Renderer = (*ConsoleRenderer)(nil)
