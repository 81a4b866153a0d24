package topic

import (
	"context"
	"errors"
)

// ErrNoTopics は、取得元に話題が1件もなかったことを表します。
var ErrNoTopics = errors.New("no topics available")

// Fetcher は、外部のデータソースから、[]*Topic を取得するためのインターフェースです。
type Fetcher interface {
	Fetch(ctx context.Context) ([]*Topic, error)
}

// First は、Fetcher から最初の話題を1つ取り出します。
func First(ctx context.Context, f Fetcher) (*Topic, error) {
	topics, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	return topics[0], nil
}
