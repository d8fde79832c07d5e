// Package agents は複数ペルソナによる並列生成と統合（シンセシス）を提供します。
package agents

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 名簿名
const (
	RosterNarrative = "narrative"
	RosterPanels    = "panels"
	RosterEntities  = "entities"
	RosterPlanner   = "planner"
	RosterRewriter  = "rewriter"
)

//go:embed rosters.yaml
var defaultRostersYAML []byte

// Persona は1回の独立した生成呼び出しを駆動する設定です。
type Persona struct {
	Name        string   `yaml:"name"`
	Role        string   `yaml:"role"`
	Focus       []string `yaml:"focus"`
	Temperature float32  `yaml:"temperature"`
}

// FocusArea は注力分野をカンマ区切りで返します。
func (p Persona) FocusArea() string {
	return strings.Join(p.Focus, ", ")
}

// Roster は協調ラウンドに参加するペルソナと統合担当の組です。
type Roster struct {
	Name        string    `yaml:"name"`
	Personas    []Persona `yaml:"personas"`
	Synthesizer Persona   `yaml:"synthesizer"`
}

// Rosters は名簿名から名簿を引くマップです。
type Rosters map[string]Roster

type rosterFile struct {
	Rosters []Roster `yaml:"rosters"`
}

// Get は名簿を返します。存在しない場合はエラーです。
func (rs Rosters) Get(name string) (Roster, error) {
	r, ok := rs[name]
	if !ok {
		return Roster{}, fmt.Errorf("ペルソナ名簿 '%s' が見つかりません", name)
	}
	return r, nil
}

// ParseRosters はYAMLから名簿を読み込みます。
func ParseRosters(data []byte) (Rosters, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ペルソナ名簿のYAML解析に失敗しました: %w", err)
	}

	rs := make(Rosters, len(f.Rosters))
	for _, r := range f.Rosters {
		if r.Name == "" {
			return nil, fmt.Errorf("名前のないペルソナ名簿があります")
		}
		if r.Synthesizer.Name == "" {
			return nil, fmt.Errorf("名簿 '%s' に統合担当（synthesizer）がありません", r.Name)
		}
		for _, p := range r.Personas {
			if p.Name == "" {
				return nil, fmt.Errorf("名簿 '%s' に名前のないペルソナがあります", r.Name)
			}
		}
		rs[r.Name] = r
	}
	return rs, nil
}

// DefaultRosters は組み込みの名簿を返します。
func DefaultRosters() (Rosters, error) {
	return ParseRosters(defaultRostersYAML)
}

// LoadRosters は組み込みの名簿に、指定ファイルの名簿を名前単位で上書きします。
// path が空の場合は組み込みの名簿だけを返します。
func LoadRosters(path string) (Rosters, error) {
	rs, err := DefaultRosters()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return rs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ペルソナ名簿ファイルの読み込みに失敗しました: %w", err)
	}
	overrides, err := ParseRosters(data)
	if err != nil {
		return nil, err
	}
	for name, r := range overrides {
		rs[name] = r
	}
	return rs, nil
}
