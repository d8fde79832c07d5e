package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chapters.db"))
	if err != nil {
		t.Fatalf("ストアのオープンに失敗しました: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("空のパスはエラーになるべきです")
	}
}

func TestStore_Chapter(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	ch := domain.Chapter{
		ID:            "ch-1",
		StoryID:       "story-1",
		ChapterNumber: 1,
		Title:         "The Cursed Blade",
		Narrative:     "Kael found the blade.",
		Panels: []domain.RenderedPanel{
			{ImageURL: "panels/1.png", Text: "Kael enters.", Order: 1},
			{ImageURL: "panels/2.png", Text: "", Order: 2},
		},
	}
	if err := store.CreateChapter(ctx, ch); err != nil {
		t.Fatalf("章の保存に失敗しました: %v", err)
	}

	got, err := store.GetChapter(ctx, "ch-1")
	if err != nil {
		t.Fatalf("章の取得に失敗しました: %v", err)
	}
	if got.Title != ch.Title || got.Narrative != ch.Narrative || got.StoryID != "story-1" {
		t.Errorf("章の内容が一致しません: %+v", got)
	}
	if len(got.Panels) != 2 || got.Panels[0].Order != 1 || got.Panels[1].ImageURL != "panels/2.png" {
		t.Errorf("パネルが一致しません: %+v", got.Panels)
	}

	t.Run("同じIDの章は保存できないこと", func(t *testing.T) {
		if err := store.CreateChapter(ctx, ch); err == nil {
			t.Error("重複した章がエラーになりませんでした")
		}
	})

	t.Run("存在しない章は ErrNotFound", func(t *testing.T) {
		if _, err := store.GetChapter(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("期待値 ErrNotFound, 実際の値 %v", err)
		}
	})
}

func TestStore_CreateCharacterRecord(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	kael := domain.Entity{
		ID: "e-1", Kind: domain.KindCharacter, Name: "Kael", Description: "warrior",
		Role: domain.RoleProtagonist, IsPrimary: true,
		Relationships: []domain.Relationship{{TargetName: "Mira", RelationshipType: "ally"}},
	}
	keep := domain.Entity{ID: "e-2", Kind: domain.KindLocation, Name: "Ashen Keep", Description: "fortress", ImageURL: "refs/keep.png", Seed: 3}

	for _, e := range []domain.Entity{kael, keep} {
		if err := store.CreateCharacterRecord(ctx, "story-1", e); err != nil {
			t.Fatalf("エンティティの保存に失敗しました: %v", err)
		}
	}

	kael.ImageURL = "refs/kael.png"
	kael.Seed = 101
	kael.Angles = []domain.Angle{{Description: "side view", ImageURL: "refs/kael_side.png"}}
	if err := store.CreateCharacterRecord(ctx, "story-1", kael); err != nil {
		t.Fatalf("エンティティの更新に失敗しました: %v", err)
	}

	got, err := store.ListEntities(ctx, "story-1")
	if err != nil {
		t.Fatalf("エンティティの取得に失敗しました: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期待値 2件, 実際の値 %d件", len(got))
	}
	if got[0].Name != "Kael" || got[0].Seed != 101 || got[0].ImageURL != "refs/kael.png" || !got[0].IsPrimary {
		t.Errorf("更新が反映されていません: %+v", got[0])
	}
	if len(got[0].Angles) != 1 || len(got[0].Relationships) != 1 {
		t.Errorf("アングルや関係が復元されていません: %+v", got[0])
	}
	if got[1].Kind != domain.KindLocation || got[1].Seed != 3 {
		t.Errorf("想定外のエンティティです: %+v", got[1])
	}

	other, err := store.ListEntities(ctx, "story-2")
	if err != nil || len(other) != 0 {
		t.Errorf("別の物語のエンティティが返されています: %v %v", other, err)
	}
}
