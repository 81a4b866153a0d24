package turn

import (
	"github.com/sat8bit/taiwa/persona"
)

// RoundRobin は turn.Manager の実装です。
// ペルソナの並び順どおりに話し手を回します。二者会話では A と B の交互になります。
// 発話を見送ったターンも順番は進みます。
type RoundRobin struct {
	personas []*persona.Persona
	next     int
}

// NewRoundRobin は first 番目のペルソナから始まる RoundRobin を生成します。
// personas は空であってはいけません。
func NewRoundRobin(personas []*persona.Persona, first int) *RoundRobin {
	n := len(personas)
	if n > 0 {
		first = ((first % n) + n) % n
	}
	return &RoundRobin{
		personas: append([]*persona.Persona(nil), personas...),
		next:     first,
	}
}

func (r *RoundRobin) Next() (*persona.Persona, []*persona.Persona) {
	speaker := r.personas[r.next]

	listeners := make([]*persona.Persona, 0, len(r.personas)-1)
	for i := 1; i < len(r.personas); i++ {
		listeners = append(listeners, r.personas[(r.next+i)%len(r.personas)])
	}

	r.next = (r.next + 1) % len(r.personas)
	return speaker, listeners
}

// コンパイル時に Manager インターフェースを実装していることを保証します。
var _ Manager = (*RoundRobin)(nil)
