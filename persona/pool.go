package persona

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedCharacterFile は、キャラクターファイルが読めない・壊れている場合のエラーです。
var ErrMalformedCharacterFile = errors.New("malformed character file")

// NewPool は、指定されたキャラクターファイルをすべて読み込んで Pool を生成します。
func NewPool(paths ...string) (*Pool, error) {
	var p Pool
	for _, path := range paths {
		personas, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		p.Personas = append(p.Personas, personas...)
	}
	return &p, nil
}

type Pool struct {
	// Personas は、読み込まれた Persona のスライスです。
	Personas []*Persona `yaml:"personas"`
}

// LoadFile は、1つのキャラクターファイルを読み込みます。
// .json はオブジェクト1つか配列、.yaml/.yml はマッピング1つかシーケンス
// (または personas: キーを持つプール形式) を受け付けます。
func LoadFile(path string) ([]*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCharacterFile, path, err)
	}

	var personas []*Persona
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		personas, err = decodeYAML(data)
	default:
		personas, err = decodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCharacterFile, path, err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("%w: %s: no personas", ErrMalformedCharacterFile, path)
	}
	for i, p := range personas {
		if p == nil {
			return nil, fmt.Errorf("%w: %s: entry %d is null", ErrMalformedCharacterFile, path, i)
		}
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d: %v", ErrMalformedCharacterFile, path, i, err)
		}
	}
	return personas, nil
}

func decodeJSON(data []byte) ([]*Persona, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if trimmed[0] == '[' {
		var personas []*Persona
		if err := json.Unmarshal(trimmed, &personas); err != nil {
			return nil, err
		}
		return personas, nil
	}
	var p Persona
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, err
	}
	return []*Persona{&p}, nil
}

func decodeYAML(data []byte) ([]*Persona, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := node.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var personas []*Persona
		if err := root.Decode(&personas); err != nil {
			return nil, err
		}
		return personas, nil
	case yaml.MappingNode:
		var pool Pool
		if err := root.Decode(&pool); err == nil && len(pool.Personas) > 0 {
			return pool.Personas, nil
		}
		var p Persona
		if err := root.Decode(&p); err != nil {
			return nil, err
		}
		return []*Persona{&p}, nil
	default:
		return nil, fmt.Errorf("unexpected YAML node kind %d", root.Kind)
	}
}

func (p *Pool) GetAll() []*Persona {
	if p == nil {
		return nil
	}
	return p.Personas
}

func (p *Pool) GetByName(name string) (*Persona, error) {
	for _, persona := range p.Personas {
		if persona.Name == name {
			return persona, nil
		}
	}
	return nil, fmt.Errorf("persona with name '%s' not found", name)
}

func (p *Pool) GetRandomN(n int) ([]*Persona, error) {
	if p == nil || len(p.Personas) == 0 {
		return nil, fmt.Errorf("no Personas available")
	}
	if n <= 0 || n > len(p.Personas) {
		n = len(p.Personas)
	}

	// 重複しないようにインデックスをシャッフルして先頭 n 件を使う
	indices := rand.Perm(len(p.Personas))[:n]
	selected := make([]*Persona, 0, n)
	for _, index := range indices {
		selected = append(selected, p.Personas[index])
	}

	return selected, nil
}
