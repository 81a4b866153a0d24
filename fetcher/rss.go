package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/sat8bit/taiwa/topic"
)

const defaultSummaryRunes = 200

// RSSFetcher は topic.Fetcher インターフェースのRSS実装です。
// 会話の話題を、ニュースフィードの最新記事から選びます。
type RSSFetcher struct {
	url          string
	limit        int
	summaryRunes int
}

// NewRSSFetcher は新しい RSSFetcher を生成します。
// limit は取得する記事の上限数を指定します。0以下の場合は無制限。
func NewRSSFetcher(url string, limit int) *RSSFetcher {
	return &RSSFetcher{
		url:          url,
		limit:        limit,
		summaryRunes: defaultSummaryRunes,
	}
}

// Fetch は指定されたURLからRSSフィードを取得し、公開日の新しい順に *topic.Topic へ変換します。
func (f *RSSFetcher) Fetch(ctx context.Context) ([]*topic.Topic, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed from %s: %w", f.url, err)
	}

	items := append([]*gofeed.Item(nil), feed.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		iTime := items[i].PublishedParsed
		jTime := items[j].PublishedParsed
		// 日付のない記事は末尾へ
		if iTime == nil || jTime == nil {
			return iTime != nil && jTime == nil
		}
		return iTime.After(*jTime)
	})

	var topics []*topic.Topic
	for _, item := range items {
		if f.limit > 0 && len(topics) >= f.limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}

		// プロンプトに載せるので、HTMLタグを除去して短くする
		summary := truncateString(strings.TrimSpace(stripHTML(item.Description)), f.summaryRunes)

		topics = append(topics, &topic.Topic{
			Title:     title,
			Summary:   summary,
			SourceURL: item.Link,
		})
	}

	return topics, nil
}

// stripHTML は文字列からHTMLタグを削除します。
var htmlRegex = regexp.MustCompile("<[^>]*>")

func stripHTML(s string) string {
	return htmlRegex.ReplaceAllString(s, "")
}

// truncateString は文字列をrune単位で指定された長さに切り詰めます。
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}

var _ topic.Fetcher = (*RSSFetcher)(nil)
