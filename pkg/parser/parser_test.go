package parser

import (
	"testing"
)

func TestParsePanels(t *testing.T) {
	t.Run("ラベル付きのパネルブロックを解析できること", func(t *testing.T) {
		raw := `Here is the breakdown.

PANEL 1
Description: Kael climbs the ruined stairs of Ashen Keep.
Dialogue: (none)

## Panel 2:
**Description**: A black blade glows on the altar,
wrapped in chains.
Dialogue: "Who left you here?"

Panel 3: Description: Close-up of Kael's hand on the hilt.

PANEL 4
Dialogue: an empty panel without description`

		panels := ParsePanels(raw)
		if len(panels) != 3 {
			t.Fatalf("期待値 3件, 実際の値 %d件: %+v", len(panels), panels)
		}
		if panels[0].Dialogue != "" {
			t.Errorf("(none) は空のセリフとして扱われるべきです: %q", panels[0].Dialogue)
		}
		if panels[1].Description != "A black blade glows on the altar, wrapped in chains." {
			t.Errorf("複数行の描写が結合されていません: %q", panels[1].Description)
		}
		if panels[1].Dialogue != `"Who left you here?"` {
			t.Errorf("セリフが一致しません: %q", panels[1].Dialogue)
		}
		if panels[2].Description != "Close-up of Kael's hand on the hilt." {
			t.Errorf("同じ行のフィールドが解析されていません: %q", panels[2].Description)
		}
	})

	t.Run("JSON形式にフォールバックできること", func(t *testing.T) {
		raw := "```json\n[{\"description\": \"A\", \"dialogue\": \"hi\"}, {\"description\": \"\"}]\n```"
		panels := ParsePanels(raw)
		if len(panels) != 1 || panels[0].Description != "A" {
			t.Errorf("JSONのパネルが解析されていません: %+v", panels)
		}
	})

	t.Run("解析できない出力は空になること", func(t *testing.T) {
		if got := ParsePanels("just some prose"); len(got) != 0 {
			t.Errorf("期待値 0件, 実際の値 %d件", len(got))
		}
	})
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```":         `{"a": 1}`,
		"result: {\"a\": 1} trailing":      `{"a": 1}`,
		"[1, 2]":                           `[1, 2]`,
		"no json here":                     "no json here",
	}
	for in, want := range cases {
		if got := ExtractJSON(in); got != want {
			t.Errorf("ExtractJSON(%q) = %q, 期待値 %q", in, got, want)
		}
	}
}

func TestParsePlan(t *testing.T) {
	t.Run("章番号と件数が補正されること", func(t *testing.T) {
		raw := `{"title": "The Cursed Blade", "synopsis": "s", "totalChapters": 0,
			"chapterOutlines": [{"title": "Discovery"}, {"title": "Hunger", "estimatedPanels": 8}]}`
		plan, err := ParsePlan(raw, 0, 6)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if plan.TotalChapters != 2 {
			t.Errorf("期待値 2章, 実際の値 %d", plan.TotalChapters)
		}
		if plan.ChapterOutlines[0].ChapterNumber != 1 || plan.ChapterOutlines[0].EstimatedPanels != 6 {
			t.Errorf("アウトラインが補正されていません: %+v", plan.ChapterOutlines[0])
		}
		if plan.ChapterOutlines[1].EstimatedPanels != 8 {
			t.Errorf("明示された件数は維持されるべきです: %+v", plan.ChapterOutlines[1])
		}
	})

	t.Run("タイトルのない構成案はエラーになること", func(t *testing.T) {
		if _, err := ParsePlan(`{"synopsis": "s"}`, 1, 6); err == nil {
			t.Error("エラーが発生しませんでした")
		}
	})
}
