package turn

// TurnProvider は、現在のターン情報を提供します。
// これにより、レンダラーなどは Supervisor の具体的な実装を知ることなく、
// 進行状況にアクセスできます。
type TurnProvider interface {
	GetCurrentTurn() int
	GetMaxTurns() int
}
