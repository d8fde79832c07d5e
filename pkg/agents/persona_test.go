package agents

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRosters(t *testing.T) {
	rs, err := DefaultRosters()
	if err != nil {
		t.Fatalf("組み込み名簿の読み込みに失敗しました: %v", err)
	}

	cases := map[string]struct{ min, max int }{
		RosterNarrative: {8, 10},
		RosterPanels:    {4, 4},
		RosterEntities:  {4, 4},
		RosterPlanner:   {0, 0},
		RosterRewriter:  {0, 0},
	}
	for name, want := range cases {
		r, err := rs.Get(name)
		if err != nil {
			t.Errorf("名簿 %s がありません: %v", name, err)
			continue
		}
		if n := len(r.Personas); n < want.min || n > want.max {
			t.Errorf("名簿 %s のペルソナ数 %d が範囲 [%d,%d] 外です", name, n, want.min, want.max)
		}
		for _, p := range r.Personas {
			if p.Temperature <= 0 || len(p.Focus) == 0 {
				t.Errorf("名簿 %s のペルソナ %s に温度または注力分野がありません", name, p.Name)
			}
		}
	}
}

func TestLoadRosters(t *testing.T) {
	t.Run("ファイルの名簿で名前単位に上書きされること", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rosters.yaml")
		content := `rosters:
  - name: panels
    personas:
      - name: Solo Artist
        role: does everything
        focus: [all]
        temperature: 0.5
    synthesizer:
      name: Director
      role: merges
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		rs, err := LoadRosters(path)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		panels, _ := rs.Get(RosterPanels)
		if len(panels.Personas) != 1 || panels.Personas[0].Name != "Solo Artist" {
			t.Errorf("上書きされていません: %+v", panels)
		}
		if _, err := rs.Get(RosterNarrative); err != nil {
			t.Error("上書きされていない名簿は残るべきです")
		}
	})

	t.Run("統合担当のない名簿はエラーになること", func(t *testing.T) {
		if _, err := ParseRosters([]byte("rosters:\n  - name: x\n")); err == nil {
			t.Error("エラーが発生しませんでした")
		}
	})
}
