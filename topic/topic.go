package topic

import "fmt"

// Topic は、会話のきっかけとなる「話題」を表します。
// 話題の出所（RSS、コマンドライン引数など）には依存しません。
type Topic struct {
	// Title は、話題のタイトルや見出しです。
	Title string

	// Summary は、話題の短い要約です。空でもかまいません。
	Summary string

	// SourceURL は、話題の出所を示すURLです。
	SourceURL string
}

// String はプロンプトに載せる1行の表現です。
func (t *Topic) String() string {
	if t.Summary == "" {
		return fmt.Sprintf("Topic: %s.", t.Title)
	}
	return fmt.Sprintf("Topic: %s. %s", t.Title, t.Summary)
}
