package renderer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/sat8bit/taiwa/message"
	"github.com/sat8bit/taiwa/persona"
	"github.com/sat8bit/taiwa/prompt"
	"github.com/sat8bit/taiwa/turn"
)

const markdownTemplate = `+++
title = {{ .Title }}
date = {{ .Date }}
tags = {{ .Tags }}
conversation = {{ .ConversationID }}
+++

{{ .Body }}
`

func NewMarkdownRenderer(outputDir string) *MarkdownRenderer {
	return &MarkdownRenderer{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// MarkdownRenderer は、会話のログを Hugo 向けの Markdown ファイルとして書き出すレンダラーです。
// 会話が最後まで終わらなかった場合はファイルを書きません。
type MarkdownRenderer struct {
	outputDir string
	filePath  string
	now       func() time.Time
}

// FilePath は書き出したファイルのパスを返します。まだ書いていなければ空です。
func (r *MarkdownRenderer) FilePath() string {
	return r.filePath
}

func (r *MarkdownRenderer) Render(ctx context.Context, ch <-chan *message.Message) error {
	var inbox []*message.Message
	for msg := range ch {
		inbox = append(inbox, msg)
	}

	finished := false
	for _, msg := range inbox {
		if msg.Kind == message.KindEnd {
			finished = true
		}
	}
	if !finished {
		slog.InfoContext(ctx, "Conversation did not finish, skipping markdown generation.")
		return nil
	}

	if err := r.render(inbox); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	return nil
}

func (r *MarkdownRenderer) render(inbox []*message.Message) error {
	now := r.now()

	title := "Taiwa Log"
	var conversationID string
	participantsMap := make(map[string]*persona.Persona)
	var conversationLog strings.Builder
	var notes []string
	var systemAnnounce string

	for _, msg := range inbox {
		if conversationID == "" {
			conversationID = msg.ConversationID
		}
		switch msg.Kind {
		case message.KindSay:
			participantsMap[msg.From.Name] = msg.From
			conversationLog.WriteString(fmt.Sprintf("**%s**: %s\n\n", msg.From.Name, msg.DisplayText()))
			if msg.Display != "" && msg.Display != msg.Text {
				conversationLog.WriteString(fmt.Sprintf("> %s\n\n", msg.Text))
			}
		case message.KindPass:
			participantsMap[msg.From.Name] = msg.From
			conversationLog.WriteString(fmt.Sprintf("*%s passes.*\n\n", msg.From.Name))
		case message.KindSystem:
			systemAnnounce = fmt.Sprintf("> %s\n", msg.Text)
			if topic, ok := msg.Meta["topic"]; ok {
				title = topic
			}
		case message.KindLog:
			notes = append(notes, msg.Text)
		}
	}

	var body strings.Builder

	if systemAnnounce != "" {
		body.WriteString(systemAnnounce)
		body.WriteString("\n---\n\n")
	}

	participantsList := make([]*persona.Persona, 0, len(participantsMap))
	for _, p := range participantsMap {
		participantsList = append(participantsList, p)
	}
	sort.Slice(participantsList, func(i, j int) bool {
		return participantsList[i].Name < participantsList[j].Name
	})

	body.WriteString("## Characters\n\n")
	for _, p := range participantsList {
		body.WriteString(fmt.Sprintf("- **%s:** %d, %s\n", p.Name, p.Age, p.Occupation))
	}
	body.WriteString("\n---\n\n")

	body.WriteString("## Conversation\n\n")
	body.WriteString(conversationLog.String())

	if len(notes) > 0 {
		body.WriteString("---\n\n")
		body.WriteString("## Notes\n\n")
		for _, n := range notes {
			body.WriteString(fmt.Sprintf("- %s\n", n))
		}
		body.WriteString("\n")
	}

	var tags []string
	for _, p := range participantsList {
		tags = append(tags, fmt.Sprintf(`"%s"`, p.Name))
	}

	tmpl, err := template.New("markdown").Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse markdown template: %w", err)
	}

	data := struct {
		Date           string
		Title          string
		Tags           string
		ConversationID string
		Body           string
	}{
		Date:           fmt.Sprintf(`"%s"`, now.Format(time.RFC3339)),
		Title:          fmt.Sprintf("%q", title),
		Tags:           fmt.Sprintf("[%s]", strings.Join(tags, ", ")),
		ConversationID: fmt.Sprintf("%q", conversationID),
		Body:           body.String(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(r.outputDir, now.Format("20060102-150405")+".md")
	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write markdown file: %w", err)
	}
	r.filePath = filePath

	slog.Info("Markdown file generated", "path", filePath)
	return nil
}

// Finalize は、登場人物のプロフィールと進行状況をファイルの末尾に追記します。
func (r *MarkdownRenderer) Finalize(allPersonas []*persona.Persona, progress turn.TurnProvider) error {
	if r.filePath == "" {
		slog.Info("Markdown file path not set, skipping epilogue.")
		return nil
	}

	var epilogue strings.Builder
	epilogue.WriteString("\n---\n\n## Profiles\n\n")

	sorted := append([]*persona.Persona(nil), allPersonas...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	for _, p := range sorted {
		epilogue.WriteString(fmt.Sprintf("### %s\n\n", p.Name))
		for _, line := range strings.Split(prompt.Describe(p), "\n") {
			epilogue.WriteString(fmt.Sprintf("- %s\n", line))
		}
		epilogue.WriteString("\n")
	}
	if progress != nil {
		epilogue.WriteString(fmt.Sprintf("*%d of %d turns.*\n", progress.GetCurrentTurn(), progress.GetMaxTurns()))
	}

	f, err := os.OpenFile(r.filePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Markdown file does not exist, cannot append epilogue.", "path", r.filePath)
			return nil
		}
		return fmt.Errorf("failed to open markdown file for appending: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(epilogue.String()); err != nil {
		return fmt.Errorf("failed to append epilogue to markdown file: %w", err)
	}

	slog.Info("Epilogue appended to markdown file", "path", r.filePath)
	return nil
}

var _ Renderer = (*MarkdownRenderer)(nil)
