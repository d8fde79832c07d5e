package publisher

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

type memWriter struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func (w *memWriter) Write(_ context.Context, p string, r io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = make(map[string]string)
	}
	w.files[p] = string(data)
	return nil
}

func testChapter() (domain.Chapter, []domain.Entity) {
	ch := domain.Chapter{
		ID:            "ch-1",
		StoryID:       "Cursed Blade",
		ChapterNumber: 1,
		Title:         "The Finding",
		Narrative:     "Kael found the blade.",
		Panels: []domain.RenderedPanel{
			{ImageURL: "output/panels/panel_1_abcd.png", Text: "Kael: [shout] It answers me!", Order: 1},
			{ImageURL: "output/panels/panel_3_efgh.png", Text: "", Order: 2},
			{ImageURL: "output/panels/panel_4_ijkl.png", Text: "The wind howled over the keep.", Order: 3},
		},
	}
	entities := []domain.Entity{
		{Name: "Kael", Kind: domain.KindCharacter, Role: domain.RoleProtagonist, Description: "scarred warrior", ImageURL: "output/references/kael.png", Seed: 501},
		{Name: "Ashen Keep", Kind: domain.KindLocation, Description: "ruined fortress"},
	}
	return ch, entities
}

func TestChapterPublisher_Publish(t *testing.T) {
	w := &memWriter{}
	p := NewChapterPublisher(w, "output")
	ch, entities := testChapter()

	mdPath, err := p.Publish(context.Background(), ch, entities)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if mdPath != "output/cursed_blade/01_chapter.md" {
		t.Errorf("想定外のパスです: %s", mdPath)
	}
	md := w.files[mdPath]

	t.Run("パネルが順番どおりに相対リンクで出力されること", func(t *testing.T) {
		first := strings.Index(md, "## Panel: ../panels/panel_1_abcd.png")
		second := strings.Index(md, "## Panel: ../panels/panel_3_efgh.png")
		third := strings.Index(md, "## Panel: ../panels/panel_4_ijkl.png")
		if first < 0 || second < first || third < second {
			t.Errorf("パネルの順序が不正です:\n%s", md)
		}
	})

	t.Run("話者と吹き出しの種類が付与されること", func(t *testing.T) {
		for _, want := range []string{"- name: Kael", "- type: shout", "- text: It answers me!", "- type: none", "- speaker: speaker-narration"} {
			if !strings.Contains(md, want) {
				t.Errorf("%q が含まれていません:\n%s", want, md)
			}
		}
	})

	t.Run("登場要素の一覧と JSON が出力されること", func(t *testing.T) {
		if !strings.Contains(md, "![Kael](../references/kael.png)") {
			t.Errorf("設定画のリンクがありません:\n%s", md)
		}
		raw, ok := w.files["output/cursed_blade/entities.json"]
		if !ok {
			t.Fatal("entities.json が書き出されていません")
		}
		got, err := domain.ParseEntities([]byte(raw))
		if err != nil {
			t.Fatalf("JSON の解析に失敗しました: %v", err)
		}
		if len(got) != 2 || got[0].Seed != 501 {
			t.Errorf("想定外の内容です: %+v", got)
		}
	})
}

func TestChapterPublisher_WriteError(t *testing.T) {
	p := NewChapterPublisher(&memWriter{err: errors.New("disk full")}, "output")
	ch, entities := testChapter()
	if _, err := p.Publish(context.Background(), ch, entities); err == nil {
		t.Error("書き込みエラーが返されませんでした")
	}
}

func TestLinkFor(t *testing.T) {
	if got := linkFor("gs://bucket/story/", "gs://bucket/panels/p.png"); got != "gs://bucket/panels/p.png" {
		t.Errorf("URL はそのまま返すべきです: %s", got)
	}
	if got := linkFor("output/story/", "output/story/p.png"); got != "p.png" {
		t.Errorf("期待値 p.png, 実際の値 %s", got)
	}
}
