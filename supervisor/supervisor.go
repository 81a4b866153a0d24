package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sat8bit/taiwa/bus"
	"github.com/sat8bit/taiwa/cha"
	"github.com/sat8bit/taiwa/memory"
	"github.com/sat8bit/taiwa/message"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/prompt"
	"github.com/sat8bit/taiwa/topic"
	"github.com/sat8bit/taiwa/turn"
)

// ErrConfiguration は、会話を始められない設定のときのエラーです。
// モデルを一度も呼ばないうちに返されます。
var ErrConfiguration = errors.New("configuration error")

// ErrEmptyTranslation は、翻訳者が空でない発話に対して空の訳を返したときのエラーです。
var ErrEmptyTranslation = errors.New("translator returned an empty translation")

type Mode string

const (
	// ModeDuo は二者会話です。A と B が交互に話します。
	ModeDuo Mode = "duo"
	// ModeGroup は多人数会話です。順番に回り、話し手は PASS で見送れます。
	ModeGroup Mode = "group"
)

const (
	DefaultMaxTurns = 20
	minGroupSize    = 2
)

type Config struct {
	Mode     Mode
	MaxTurns int
	// FirstSpeaker は最初に話すペルソナの位置です。
	FirstSpeaker int
	// Window はプロンプトに載せる直近のターン数です。0 以下なら全件です。
	Window int
	Topic  *topic.Topic
}

// Translator は、発話を表示用に翻訳します。
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Summarizer は、窓から外れたターンを要約にまとめます。
type Summarizer interface {
	Summarize(ctx context.Context, previous string, turns []memory.Turn) (string, error)
}

type Option func(*Supervisor)

func WithTranslator(t Translator) Option {
	return func(s *Supervisor) {
		s.translator = t
	}
}

// WithSummarizer は要約を有効にします。Window が 0 以下の場合は何もしません。
func WithSummarizer(sum Summarizer) Option {
	return func(s *Supervisor) {
		s.summarizer = sum
	}
}

func WithConversationID(id string) Option {
	return func(s *Supervisor) {
		s.conversationID = id
	}
}

// Supervisor は、会話全体を進行させます。
// 話し手を選び、発話させ、記憶に追記し、上限ターン数に達したら終了します。
// 記憶を持つのは Supervisor だけで、ターンは1つずつ順番に処理されます。
type Supervisor struct {
	cfg            Config
	conversationID string
	chas           map[string]*cha.Cha
	personas       []*persona.Persona
	turns          turn.Manager
	bus            bus.Bus
	memory         *memory.Memory
	translator     Translator
	summarizer     Summarizer

	turnCount int
}

// NewSupervisor は、新しい Supervisor を生成します。
// 参加者の数や名前の重複などを検証し、問題があれば ErrConfiguration を返します。
func NewSupervisor(cfg Config, chas []*cha.Cha, b bus.Bus, opts ...Option) (*Supervisor, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDuo
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if err := validate(cfg, chas); err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:            cfg,
		conversationID: uuid.NewString(),
		chas:           make(map[string]*cha.Cha, len(chas)),
		bus:            b,
		memory:         memory.New(),
	}
	for _, c := range chas {
		s.chas[c.Persona.Name] = c
		s.personas = append(s.personas, c.Persona)
	}
	s.turns = turn.NewRoundRobin(s.personas, cfg.FirstSpeaker)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validate(cfg Config, chas []*cha.Cha) error {
	switch cfg.Mode {
	case ModeDuo:
		if len(chas) != 2 {
			return fmt.Errorf("%w: duo mode needs exactly 2 personas, got %d", ErrConfiguration, len(chas))
		}
	case ModeGroup:
		if len(chas) < minGroupSize {
			return fmt.Errorf("%w: group mode needs at least %d personas, got %d", ErrConfiguration, minGroupSize, len(chas))
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrConfiguration, cfg.Mode)
	}

	if cfg.MaxTurns < 0 {
		return fmt.Errorf("%w: max turns must be positive, got %d", ErrConfiguration, cfg.MaxTurns)
	}
	if cfg.FirstSpeaker < 0 || cfg.FirstSpeaker >= len(chas) {
		return fmt.Errorf("%w: first speaker %d is out of range", ErrConfiguration, cfg.FirstSpeaker)
	}

	seen := make(map[string]struct{}, len(chas))
	for _, c := range chas {
		if c == nil || c.Persona == nil {
			return fmt.Errorf("%w: nil persona", ErrConfiguration)
		}
		if _, dup := seen[c.Persona.Name]; dup {
			return fmt.Errorf("%w: duplicate persona name %q", ErrConfiguration, c.Persona.Name)
		}
		seen[c.Persona.Name] = struct{}{}
	}
	return nil
}

// Run は、上限ターン数まで会話を進めます。
// モデル・翻訳・要約のいずれかが失敗した時点で会話を中断し、そのエラーを返します。
func (s *Supervisor) Run(ctx context.Context) error {
	logger := slog.With("conversationId", s.conversationID)
	logger.InfoContext(ctx, "conversation started", "mode", s.cfg.Mode, "personas", persona.Names(s.personas), "maxTurns", s.cfg.MaxTurns)

	if err := s.broadcast(&message.Message{Text: s.announcement(), Kind: message.KindSystem, Meta: s.meta()}); err != nil {
		return fmt.Errorf("supervisor.Run: %w", err)
	}

	for s.turnCount < s.cfg.MaxTurns {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("supervisor.Run: %w", err)
		}
		if err := s.step(ctx); err != nil {
			logger.ErrorContext(ctx, "conversation aborted", "turn", s.turnCount+1, "error", err)
			return fmt.Errorf("supervisor.Run: turn %d: %w", s.turnCount+1, err)
		}
		s.turnCount++
	}

	logger.InfoContext(ctx, "conversation finished", "turns", s.turnCount, "remembered", s.memory.Len())
	if err := s.broadcast(&message.Message{Text: "conversation finished", Kind: message.KindEnd}); err != nil {
		return fmt.Errorf("supervisor.Run: %w", err)
	}
	return nil
}

// step は1ターン分の処理です。
func (s *Supervisor) step(ctx context.Context) error {
	speaker, listeners := s.turns.Next()

	u, err := s.chas[speaker.Name].Speak(ctx, prompt.Request{
		Listeners: listeners,
		Group:     s.cfg.Mode == ModeGroup,
		Context:   s.context(),
		Topic:     s.cfg.Topic,
	})
	if err != nil {
		return err
	}

	// 見送ったターンは表示だけして、記憶には残さない
	if u.Abstained {
		return s.broadcast(&message.Message{From: speaker, Text: u.Text, Display: u.Text, Kind: message.KindPass})
	}

	display := u.Text
	if s.translator != nil {
		display, err = s.translator.Translate(ctx, u.Text)
		if err != nil {
			return err
		}
		// 原文を翻訳として表示しない
		if display == "" && u.Text != "" {
			return fmt.Errorf("%s: %w", speaker.Name, ErrEmptyTranslation)
		}
	}

	if err := s.broadcast(&message.Message{From: speaker, Text: u.Text, Display: display, Kind: message.KindSay}); err != nil {
		return err
	}

	// 記憶に入れるのは常に生成言語のテキスト
	s.memory.Append(speaker.Name, u.Text)
	return s.compact(ctx)
}

// context は、次のプロンプトに渡す記憶を返します。
func (s *Supervisor) context() memory.Context {
	if s.summarizer == nil || s.cfg.Window <= 0 {
		return s.memory.Window(s.cfg.Window)
	}
	return memory.Context{Summary: s.memory.Summary(), Turns: s.memory.Pending()}
}

// compact は、要約待ちのターンが窓の2倍に達したら古い方の窓1つ分を要約に畳み込みます。
func (s *Supervisor) compact(ctx context.Context) error {
	if s.summarizer == nil || s.cfg.Window <= 0 {
		return nil
	}
	pending := s.memory.Pending()
	if len(pending) < 2*s.cfg.Window {
		return nil
	}

	oldest := pending[:s.cfg.Window]
	summary, err := s.summarizer.Summarize(ctx, s.memory.Summary(), oldest)
	if err != nil {
		return err
	}
	s.memory.Fold(summary, len(oldest))
	slog.DebugContext(ctx, "memory compacted", "conversationId", s.conversationID, "folded", len(oldest))
	return nil
}

func (s *Supervisor) broadcast(m *message.Message) error {
	m.ConversationID = s.conversationID
	m.At = time.Now()
	return s.bus.Broadcast(m)
}

func (s *Supervisor) announcement() string {
	text := fmt.Sprintf("Participants: %s (%d).", strings.Join(persona.Names(s.personas), ", "), len(s.personas))
	if s.cfg.Topic != nil {
		text = fmt.Sprintf("Topic: %s. %s", s.cfg.Topic.Title, text)
	}
	return text
}

func (s *Supervisor) meta() map[string]string {
	meta := map[string]string{"mode": string(s.cfg.Mode)}
	if s.cfg.Topic != nil {
		meta["topic"] = s.cfg.Topic.Title
	}
	return meta
}

// Memory は会話の記憶を返します。
func (s *Supervisor) Memory() *memory.Memory {
	return s.memory
}

func (s *Supervisor) Personas() []*persona.Persona {
	return append([]*persona.Persona(nil), s.personas...)
}

func (s *Supervisor) ConversationID() string {
	return s.conversationID
}

// GetCurrentTurn は、完了したターン数を返します。
func (s *Supervisor) GetCurrentTurn() int {
	return s.turnCount
}

// GetMaxTurns は、最大ターン数を返します。
func (s *Supervisor) GetMaxTurns() int {
	return s.cfg.MaxTurns
}

// _ は、*Supervisorがturn.TurnProviderインターフェースを実装していることをコンパイル時に保証します。
var _ turn.TurnProvider = (*Supervisor)(nil)
