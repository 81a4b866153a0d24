package prompt

import (
	"fmt"
	"strings"

	"github.com/sat8bit/taiwa/persona"
)

const unspecified = "unspecified"

// Describe は、ペルソナを system プロンプト用の説明文にします。
// 未設定の項目は "unspecified"、子どもがいなければ "no children" と書きます。
func Describe(p *persona.Persona) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are role-playing as %s, a %d-year-old %s.\n", p.Name, p.Age, orUnspecified(p.Occupation)))
	sb.WriteString(fmt.Sprintf("Gender: %s.\n", orUnspecified(p.Gender)))
	sb.WriteString(fmt.Sprintf("Traits: %s.\n", list(p.Traits)))
	sb.WriteString(fmt.Sprintf("Habits: %s.\n", list(p.Habits)))
	sb.WriteString(fmt.Sprintf("Key facts: %s.\n", list(p.KeyFacts)))
	sb.WriteString(fmt.Sprintf("Marital status: %s.\n", orUnspecified(p.MaritalStatus)))
	sb.WriteString(fmt.Sprintf("Living: %s.\n", orUnspecified(p.Living)))
	sb.WriteString(fmt.Sprintf("Children: %s.", children(p.Children)))
	return sb.String()
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return unspecified
	}
	return s
}

func list(items []string) string {
	return orUnspecified(strings.Join(items, ", "))
}

func children(cs []persona.Child) string {
	if len(cs) == 0 {
		return "no children"
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ", ")
}
