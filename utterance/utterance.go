// Package utterance turns raw model output into a clean line of dialogue.
package utterance

import (
	"regexp"
	"strings"
)

// PassToken は、グループ会話で「今回は話さない」ことを表す予約語です。
const PassToken = "PASS"

// 推論ブロックのタグ。プロバイダーによって呼び名が違う。
var reasoningTags = []string{"think", "thinking", "reasoning"}

var (
	// 閉じタグまでの最短一致。RE2 は後方参照がないのでタグごとに作る。
	pairedBlocks []*regexp.Regexp
	// 先頭にある閉じられていない開始タグから末尾まで。
	unterminatedPrefix *regexp.Regexp
)

func init() {
	for _, tag := range reasoningTags {
		pairedBlocks = append(pairedBlocks, regexp.MustCompile(`(?is)<`+tag+`>.*?</`+tag+`>`))
	}
	unterminatedPrefix = regexp.MustCompile(`(?is)^<(?:` + strings.Join(reasoningTags, "|") + `)>.*`)
}

// Sanitize は、モデルの生出力から推論ブロックを取り除き、前後の空白を削ります。
// 失敗することはなく、すべてが推論だった場合は空文字列を返します。
func Sanitize(raw string) string {
	s := raw
	// ブロックを消すと前後がつながって新しいブロックができることがあるので、変化がなくなるまで繰り返す
	for {
		before := s
		for _, re := range pairedBlocks {
			s = re.ReplaceAllString(s, "")
		}
		if s == before {
			break
		}
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(unterminatedPrefix.ReplaceAllString(s, ""))
}

// Utterance は、1ターン分の発話か、発話の見送り（Abstain）のどちらかです。
type Utterance struct {
	// Text は Sanitize 済みのテキストです。Abstain の場合も表示用にそのまま残します。
	Text      string
	Abstained bool
}

func Speak(text string) Utterance {
	return Utterance{Text: text}
}

func Abstain(text string) Utterance {
	return Utterance{Text: text, Abstained: true}
}

// Decode は生出力を一度だけ解釈します。
// allowAbstain が true で、Sanitize 後のテキストが大文字小文字を問わず PASS で始まる場合は Abstain になります。
func Decode(raw string, allowAbstain bool) Utterance {
	text := Sanitize(raw)
	if allowAbstain && IsPass(text) {
		return Abstain(text)
	}
	return Speak(text)
}

// IsPass reports whether text starts with the pass sentinel, ignoring case.
func IsPass(text string) bool {
	return len(text) >= len(PassToken) && strings.EqualFold(text[:len(PassToken)], PassToken)
}
