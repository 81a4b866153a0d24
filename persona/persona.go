package persona

import (
	"fmt"
	"strings"
)

// Persona は、会話に参加するキャラクターの人格を定義します。
// この情報は、LLMに渡すプロンプトのベースとなります。
// 一度読み込まれたら、会話の間は変更されません。
type Persona struct {
	Name          string   `json:"name" yaml:"name"`
	Age           int      `json:"age" yaml:"age"`
	Gender        string   `json:"gender,omitempty" yaml:"gender,omitempty"`
	Occupation    string   `json:"occupation" yaml:"occupation"`
	Traits        []string `json:"traits" yaml:"traits"`
	Habits        []string `json:"habits,omitempty" yaml:"habits,omitempty"`
	KeyFacts      []string `json:"key_facts,omitempty" yaml:"key_facts,omitempty"`
	MaritalStatus string   `json:"marital_status,omitempty" yaml:"marital_status,omitempty"`
	Living        string   `json:"living,omitempty" yaml:"living,omitempty"`
	Children      []Child  `json:"children,omitempty" yaml:"children,omitempty"`

	// Slug は new-character で作られたカードの識別子です。プロンプトには使いません。
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`
}

// Child は、ペルソナの子どもです。
type Child struct {
	Name string `json:"name" yaml:"name"`
	Age  int    `json:"age" yaml:"age"`
}

func (c Child) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Age)
}

// Names は、ペルソナの名前を順番どおりに返します。
func Names(personas []*Persona) []string {
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		names = append(names, p.Name)
	}
	return names
}

func (p *Persona) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona has no name")
	}
	return nil
}
