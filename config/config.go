// Package config loads the settings of one conversation run.
//
// Precedence: defaults -> YAML scenario file -> .env / environment -> CLI flags
// (the last step is applied by the command itself).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sat8bit/taiwa/llm"
	"github.com/sat8bit/taiwa/prompt"
	"github.com/sat8bit/taiwa/supervisor"
)

// 環境変数名
const (
	EnvProvider  = "LLM_PROVIDER"
	EnvBaseURL   = "LLM_API_BASE"
	EnvModel     = "LLM_MODEL"
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvProject   = "PROJECT_ID"
	EnvLocation  = "LOCATION"
)

type Config struct {
	LLM llm.Config `yaml:"llm"`

	Mode         supervisor.Mode `yaml:"mode"`
	Characters   []string        `yaml:"characters"`
	Turns        int             `yaml:"turns"`
	FirstSpeaker int             `yaml:"first_speaker"`
	// FirstName は最初に話すペルソナの名前です。指定があれば FirstSpeaker より優先します。
	FirstName string `yaml:"first_name"`
	// Pick は読み込んだペルソナから無作為に選ぶ人数です。0 なら全員です。
	Pick int `yaml:"pick"`

	MemoryStyle prompt.Style `yaml:"memory_style"`
	Window      int          `yaml:"window"`
	Summarize   bool         `yaml:"summarize"`
	MaxWords    int          `yaml:"max_words"`

	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`

	// Translate は表示用の翻訳先の言語です。空なら翻訳しません。
	Translate string `yaml:"translate"`

	Topic   string `yaml:"topic"`
	FeedURL string `yaml:"feed_url"`

	OutputDir   string        `yaml:"output_dir"`
	TypingDelay time.Duration `yaml:"typing_delay"`
	LogLevel    string        `yaml:"log_level"`
}

// Default は既定値の Config を返します。
func Default() *Config {
	return &Config{
		LLM:             llm.Config{Provider: llm.ProviderOpenAI},
		Mode:            supervisor.ModeDuo,
		Turns:           supervisor.DefaultMaxTurns,
		MemoryStyle:     prompt.StyleTranscript,
		MaxWords:        prompt.DefaultMaxWords,
		Temperature:     0.8,
		MaxOutputTokens: 2048,
		LogLevel:        "info",
	}
}

// Load は path の YAML（空なら省略）と envFile（存在しなければ省略）と環境変数から Config を作ります。
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: failed to parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		// 既に設定されている環境変数は上書きしない
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config.Load: failed to load %s: %w", envFile, err)
		}
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfPresent(&c.LLM.Provider, EnvProvider)
	setIfPresent(&c.LLM.BaseURL, EnvBaseURL)
	setIfPresent(&c.LLM.Model, EnvModel)
	setIfPresent(&c.LLM.Project, EnvProject)
	setIfPresent(&c.LLM.Location, EnvLocation)

	key := EnvOpenAIKey
	if strings.EqualFold(c.LLM.Provider, llm.ProviderGemini) {
		key = EnvGeminiKey
	}
	setIfPresent(&c.LLM.APIKey, key)
}

func setIfPresent(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

// Validate は、会話を始める前に設定を検査します。
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("model is not set (set %s or llm.model)", EnvModel)
	}
	if len(c.Characters) == 0 {
		return errors.New("no character files given")
	}
	if c.Turns <= 0 {
		return fmt.Errorf("turns must be positive, got %d", c.Turns)
	}
	switch c.MemoryStyle {
	case prompt.StyleTranscript, prompt.StyleTurns:
	default:
		return fmt.Errorf("unknown memory style %q", c.MemoryStyle)
	}
	if c.Pick < 0 {
		return fmt.Errorf("pick must not be negative, got %d", c.Pick)
	}
	if c.Summarize && c.Window <= 0 {
		return errors.New("summarize needs a positive window")
	}
	return nil
}

// SlogLevel は LogLevel を slog.Level に変換します。不明な値は Info です。
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
