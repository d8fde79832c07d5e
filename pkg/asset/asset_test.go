package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeReader struct {
	files map[string][]byte
	opens atomic.Int32
}

func (r *fakeReader) Open(_ context.Context, p string) (io.ReadCloser, error) {
	r.opens.Add(1)
	data, ok := r.files[p]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestLoader_Load(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	reader := &fakeReader{files: map[string][]byte{"refs/kael.png": png}}
	l := NewLoader(reader)

	t.Run("同時アクセスでも読み込みは1回にまとめられること", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				img, err := l.Load(context.Background(), "refs/kael.png")
				if err != nil {
					t.Errorf("予期しないエラー: %v", err)
					return
				}
				if img.MimeType != "image/png" {
					t.Errorf("期待値 image/png, 実際の値 %s", img.MimeType)
				}
			}()
		}
		wg.Wait()
		if n := reader.opens.Load(); n != 1 {
			t.Errorf("期待値 1回, 実際の値 %d回", n)
		}
	})

	t.Run("存在しないパスはエラーになりキャッシュされないこと", func(t *testing.T) {
		if _, err := l.Load(context.Background(), "missing.png"); err == nil {
			t.Fatal("エラーが返されませんでした")
		}
		if _, ok := l.cache.Get("missing.png"); ok {
			t.Error("失敗した読み込みがキャッシュされています")
		}
	})
}

func TestUniqueImagePath(t *testing.T) {
	p1, err := UniqueImagePath("out", PanelDir, "Panel 3", "image/jpeg")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	p2, _ := UniqueImagePath("out", PanelDir, "Panel 3", "image/jpeg")

	if !strings.HasPrefix(p1, filepath.Join("out", PanelDir, "panel_3_")) {
		t.Errorf("想定外のパスです: %s", p1)
	}
	if !strings.HasSuffix(p1, ".jpg") {
		t.Errorf("拡張子が MIME タイプに対応していません: %s", p1)
	}
	if p1 == p2 {
		t.Error("パスが衝突しています")
	}
}
