package turn

import "github.com/sat8bit/taiwa/persona"

// Manager は、次に誰が話すかを決めます。
type Manager interface {
	// Next は、次の話し手とその聞き手（話し手以外の全員）を返します。
	Next() (speaker *persona.Persona, listeners []*persona.Persona)
}
