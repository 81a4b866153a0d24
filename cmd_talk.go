package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	buspkg "github.com/sat8bit/taiwa/bus"
	"github.com/sat8bit/taiwa/buslog"
	"github.com/sat8bit/taiwa/cha"
	"github.com/sat8bit/taiwa/config"
	"github.com/sat8bit/taiwa/fetcher"
	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/memory"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/prompt"
	"github.com/sat8bit/taiwa/renderer"
	"github.com/sat8bit/taiwa/supervisor"
	"github.com/sat8bit/taiwa/topic"
	"github.com/sat8bit/taiwa/translate"
)

func newTalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talk [character files...]",
		Short: "Run one conversation between the given characters",
		Long: `Loads the character files (JSON or YAML), then lets the characters talk for a
fixed number of turns. Two characters alternate in duo mode; in group mode they
take turns in order and may PASS.`,
		RunE: runTalk,
	}

	f := cmd.Flags()
	f.String("config", "", "YAML scenario file")
	f.String("env-file", ".env", "dotenv file with credentials")
	f.String("mode", "", "duo or group")
	f.Int("turns", 0, "maximum number of turns")
	f.Int("first", 0, "index of the first speaker")
	f.String("first-name", "", "name of the first speaker (overrides --first)")
	f.Int("pick", 0, "talk with this many randomly chosen characters (0 = all)")
	f.String("memory", "", "memory style: transcript or turns")
	f.Int("window", 0, "number of recent turns given to the model (0 = all)")
	f.Bool("summarize", false, "fold turns that leave the window into a rolling summary")
	f.Int("max-words", -1, "word limit per utterance (0 = no limit)")
	f.String("translate", "", "display language, e.g. Russian (empty = no translation)")
	f.String("topic", "", "conversation topic")
	f.String("feed", "", "RSS feed URL; the newest item becomes the topic")
	f.String("out", "", "directory for a markdown transcript")
	f.Duration("typing-delay", 0, "per-character delay for console output")
	return cmd
}

func runTalk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	bus := buspkg.NewMemoryBus(buspkg.DefaultBufferSize)
	setupLogger(cfg, bus)

	pool, err := persona.NewPool(cfg.Characters...)
	if err != nil {
		return err
	}

	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	t, err := resolveTopic(ctx, cfg)
	if err != nil {
		return err
	}

	personas, first, err := selectPersonas(pool, cfg)
	if err != nil {
		return err
	}

	builder := prompt.NewBuilder(prompt.WithStyle(cfg.MemoryStyle), prompt.WithMaxWords(cfg.MaxWords))
	sampling := llm.Sampling{Temperature: cfg.Temperature, MaxOutputTokens: cfg.MaxOutputTokens}

	var chas []*cha.Cha
	for _, p := range personas {
		chas = append(chas, cha.NewCha("cha-"+slugify(p.Name), p, model, builder, cha.WithSampling(sampling)))
	}

	opts := []supervisor.Option{}
	if cfg.Translate != "" {
		opts = append(opts, supervisor.WithTranslator(translate.New(model, cfg.Translate)))
	}
	if cfg.Summarize {
		opts = append(opts, supervisor.WithSummarizer(memory.NewSummarizer(model)))
	}

	sup, err := supervisor.NewSupervisor(supervisor.Config{
		Mode:         cfg.Mode,
		MaxTurns:     cfg.Turns,
		FirstSpeaker: first,
		Window:       cfg.Window,
		Topic:        t,
	}, chas, bus, opts...)
	if err != nil {
		return err
	}

	// --- レンダラーを初期化 ---
	renderers := []renderer.Renderer{
		renderer.NewConsoleRenderer(cmd.OutOrStdout(), renderer.WithTypingDelay(cfg.TypingDelay)),
	}
	if cfg.OutputDir != "" {
		renderers = append(renderers, renderer.NewMarkdownRenderer(cfg.OutputDir))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range renderers {
		ch := bus.Subscribe()
		g.Go(func() error {
			err := r.Render(gctx, ch)
			// 途中で失敗してもバスを詰まらせないよう読み捨てる
			for range ch {
			}
			return err
		})
	}

	runErr := sup.Run(gctx)
	bus.Close()
	renderErr := g.Wait()

	for _, r := range renderers {
		if err := r.Finalize(sup.Personas(), sup); err != nil {
			slog.Error("failed to finalize renderer", "error", err)
		}
	}

	return errors.Join(runErr, renderErr)
}

// loadConfig は、設定ファイルと環境変数に、明示的に指定されたフラグを重ねます。
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	envFile, _ := f.GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Characters = args
	}
	if f.Changed("mode") {
		mode, _ := f.GetString("mode")
		cfg.Mode = supervisor.Mode(mode)
	}
	if f.Changed("turns") {
		cfg.Turns, _ = f.GetInt("turns")
	}
	if f.Changed("first") {
		cfg.FirstSpeaker, _ = f.GetInt("first")
	}
	if f.Changed("first-name") {
		cfg.FirstName, _ = f.GetString("first-name")
	}
	if f.Changed("pick") {
		cfg.Pick, _ = f.GetInt("pick")
	}
	if f.Changed("memory") {
		style, _ := f.GetString("memory")
		cfg.MemoryStyle = prompt.Style(style)
	}
	if f.Changed("window") {
		cfg.Window, _ = f.GetInt("window")
	}
	if f.Changed("summarize") {
		cfg.Summarize, _ = f.GetBool("summarize")
	}
	if f.Changed("max-words") {
		cfg.MaxWords, _ = f.GetInt("max-words")
	}
	if f.Changed("translate") {
		cfg.Translate, _ = f.GetString("translate")
	}
	if f.Changed("topic") {
		cfg.Topic, _ = f.GetString("topic")
	}
	if f.Changed("feed") {
		cfg.FeedURL, _ = f.GetString("feed")
	}
	if f.Changed("out") {
		cfg.OutputDir, _ = f.GetString("out")
	}
	if f.Changed("typing-delay") {
		cfg.TypingDelay, _ = f.GetDuration("typing-delay")
	}
	return cfg, nil
}

// selectPersonas は、会話に参加するペルソナと最初の話者の位置を決めます。
func selectPersonas(pool *persona.Pool, cfg *config.Config) ([]*persona.Persona, int, error) {
	personas := pool.GetAll()
	if cfg.Pick > 0 {
		picked, err := pool.GetRandomN(cfg.Pick)
		if err != nil {
			return nil, 0, err
		}
		personas = picked
	}

	if cfg.FirstName == "" {
		return personas, cfg.FirstSpeaker, nil
	}
	first, err := pool.GetByName(cfg.FirstName)
	if err != nil {
		return nil, 0, err
	}
	for i, p := range personas {
		if p == first {
			return personas, i, nil
		}
	}
	return nil, 0, fmt.Errorf("%s was not picked for this conversation", cfg.FirstName)
}

// setupLogger は、ログを stderr に出します。Markdown を書く場合は警告以上をバスにも流します。
func setupLogger(cfg *config.Config, bus buspkg.Bus) {
	var base slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	if cfg.OutputDir != "" {
		base = buslog.NewBusHandler(bus, base, slog.LevelWarn)
	}
	slog.SetDefault(slog.New(base))
}

func resolveTopic(ctx context.Context, cfg *config.Config) (*topic.Topic, error) {
	if cfg.FeedURL != "" {
		t, err := topic.First(ctx, fetcher.NewRSSFetcher(cfg.FeedURL, 10))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch topic: %w", err)
		}
		return t, nil
	}
	if cfg.Topic != "" {
		return &topic.Topic{Title: cfg.Topic}, nil
	}
	return nil, nil
}

func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
