package bus

import (
	"errors"
	"sync"

	"github.com/sat8bit/taiwa/message"
)

// ErrClosed は、閉じたバスにブロードキャストしたときのエラーです。
var ErrClosed = errors.New("bus is closed")

// DefaultBufferSize は、購読者チャネルの既定のバッファサイズです。
const DefaultBufferSize = 64

// MemoryBus は bus.Bus インターフェースのインメモリ実装です。
// 内部で購読者のチャネルリストを保持し、ブロードキャストされたメッセージを
// すべての購読者に順番どおり配送します。
type MemoryBus struct {
	// 購読しているすべてのチャネルのスライス
	subscribers []chan *message.Message

	bufferSize int

	// subscribers スライスを保護するための読み書きミューテックス
	mu sync.RWMutex

	// バスが閉じられているかどうかを示すフラグ
	isClosed bool
}

// NewMemoryBus は新しい MemoryBus を生成します。
// bufferSize が 0 以下の場合は DefaultBufferSize を使います。
func NewMemoryBus(bufferSize int) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &MemoryBus{
		subscribers: make([]chan *message.Message, 0),
		bufferSize:  bufferSize,
	}
}

// Broadcast はメッセージをすべての購読者に配送します。
// 会話ログを欠けさせないため、購読者のバッファが一杯なら空くまで待ちます。
// 購読者は Close されるまでチャネルを読み続ける必要があります。
func (b *MemoryBus) Broadcast(m *message.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.isClosed {
		return ErrClosed
	}

	for _, ch := range b.subscribers {
		ch <- m
	}

	return nil
}

// Subscribe は新しい購読者を追加し、メッセージを受信するためのチャネルを返します。
func (b *MemoryBus) Subscribe() <-chan *message.Message {
	// 書き込みロックを使用することで、購読者の追加中に他の操作が実行されるのを防ぎます。
	b.mu.Lock()
	defer b.mu.Unlock()

	newSubscriberCh := make(chan *message.Message, b.bufferSize)

	if b.isClosed {
		// バスが既に閉じられている場合は、閉じたチャネルを返す
		close(newSubscriberCh)
		return newSubscriberCh
	}

	b.subscribers = append(b.subscribers, newSubscriberCh)

	return newSubscriberCh
}

// Close はバスを閉じ、すべての購読者チャネルをクローズします。
// 購読者はバッファに残ったメッセージを読み切ってから終了できます。
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isClosed {
		b.isClosed = true
		for _, ch := range b.subscribers {
			close(ch)
		}
		b.subscribers = nil
	}
}

// コンパイル時に Bus インターフェースを実装していることを保証します。
var _ Bus = (*MemoryBus)(nil)
