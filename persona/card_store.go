package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCardDir は、キャラクターカードの既定の保存先です。
const DefaultCardDir = "assets/characters"

// CardStore は、空のキャラクターカードの作成を管理します。
type CardStore struct {
	dir string
	now func() time.Time
}

// NewCardStore は、新しい CardStore を生成します。
func NewCardStore(dir string) *CardStore {
	if dir == "" {
		dir = DefaultCardDir
	}
	return &CardStore{dir: dir, now: time.Now}
}

// FileName は、slug と時刻からカードのファイル名を作ります。
// 例: 20250719_223805_anna_petrova.json
func FileName(slug string, at time.Time) string {
	return fmt.Sprintf("%s_%s.json", at.Format("20060102_150405"), slug)
}

// Create は、slug だけを持つ空のカードを書き出し、そのパスを返します。
func (s *CardStore) Create(slug string) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("persona.CardStore.Create: slug is empty")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create card directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(map[string]string{"slug": slug}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal card for %s: %w", slug, err)
	}

	path := filepath.Join(s.dir, FileName(slug, s.now()))
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write card file %s: %w", path, err)
	}

	return path, nil
}
