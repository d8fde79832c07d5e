package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/prompts"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// fakeSynth は呼び出しを記録し、fail に含まれる接頭辞を持つファイル名で失敗します。
type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	reqs  []ImageRequest
	fail  map[string]bool
	delay time.Duration
}

func (f *fakeSynth) record(kind string, req ImageRequest) (*ImageResult, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	f.reqs = append(f.reqs, req)
	if f.fail[req.Name] {
		return nil, errors.New("synthesis failed")
	}
	return &ImageResult{ImageURL: fmt.Sprintf("%s/%s-%d.png", req.Folder, req.Name, len(f.calls)), Seed: req.Seed}, nil
}

func (f *fakeSynth) TextToImage(_ context.Context, req ImageRequest) (*ImageResult, error) {
	return f.record("t2i", req)
}

func (f *fakeSynth) ImageToImage(_ context.Context, req ImageRequest) (*ImageResult, error) {
	return f.record("i2i", req)
}

type staticSelector struct {
	byDesc map[string]domain.Selection
}

func (s staticSelector) Select(desc string) domain.Selection {
	if sel, ok := s.byDesc[desc]; ok {
		return sel
	}
	return domain.Selection{Seed: 7, SeedSource: domain.SeedFromStyle}
}

func TestPanelRenderer_Render(t *testing.T) {
	synth := &fakeSynth{}
	pr := NewPanelRenderer(synth, "", nil, 0)

	t.Run("参照画像がなければ text-to-image を使うこと", func(t *testing.T) {
		res, err := pr.Render(context.Background(), 0, domain.PanelScript{Description: "A quiet forest"}, domain.Selection{Seed: 7})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if synth.calls[len(synth.calls)-1] != "t2i" {
			t.Errorf("期待値 t2i, 実際の値 %s", synth.calls[len(synth.calls)-1])
		}
		if res.AspectRatio != "16:9" {
			t.Errorf("期待値 16:9, 実際の値 %s", res.AspectRatio)
		}
		if !strings.HasPrefix(res.Prompt, strings.TrimSuffix(prompts.PanelStyleClause, ".")) {
			t.Errorf("画風指定がプロンプト先頭にありません: %s", res.Prompt)
		}
		if !strings.HasSuffix(res.Prompt, "A quiet forest") {
			t.Errorf("パネル描写がプロンプトに含まれていません: %s", res.Prompt)
		}
	})

	t.Run("参照画像があれば image-to-image を使いシード値を引き継ぐこと", func(t *testing.T) {
		sel := domain.Selection{ReferenceURLs: []string{"refs/kael.png"}, Seed: 42, SeedSource: domain.SeedFromCharacter}
		if _, err := pr.Render(context.Background(), 1, domain.PanelScript{Description: "Kael draws"}, sel); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		last := synth.reqs[len(synth.reqs)-1]
		if synth.calls[len(synth.calls)-1] != "i2i" || last.Seed != 42 || len(last.ReferenceURLs) != 1 {
			t.Errorf("想定外のリクエストです: %s %+v", synth.calls[len(synth.calls)-1], last)
		}
	})
}

func TestPanelRenderer_Rerender(t *testing.T) {
	synth := &fakeSynth{}
	pr := NewPanelRenderer(synth, "ink", nil, 0)
	sel := domain.Selection{ReferenceURLs: []string{"a.png", "b.png"}, Seed: 9}

	orig, err := pr.Render(context.Background(), 2, domain.PanelScript{Description: "Kael kneels"}, sel)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	refined, err := pr.Rerender(context.Background(), orig, []string{"scar on left cheek"})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	first, second := synth.reqs[0], synth.reqs[1]
	if second.Seed != first.Seed || second.AspectRatio != first.AspectRatio || len(second.ReferenceURLs) != len(first.ReferenceURLs) {
		t.Errorf("再生成で入力が変わっています: %+v -> %+v", first, second)
	}
	if !strings.HasPrefix(second.Prompt, first.Prompt) || !strings.Contains(second.Prompt, "scar on left cheek") {
		t.Errorf("追加指示が末尾に付いていません: %s", second.Prompt)
	}
	if !refined.Refined || orig.Refined {
		t.Error("Refined フラグが正しくありません")
	}
	if orig.Image.ImageURL == refined.Image.ImageURL {
		t.Error("元の結果が書き換えられています")
	}
}

type countingReviewer struct {
	n atomic.Int32
}

func (r *countingReviewer) Review(_ context.Context, res *RenderResult) *RenderResult {
	r.n.Add(1)
	return res
}

func TestPanelRenderer_RenderAll(t *testing.T) {
	synth := &fakeSynth{fail: map[string]bool{"panel_2": true, "panel_5": true}, delay: time.Millisecond}
	reviewer := &countingReviewer{}
	pr := NewPanelRenderer(synth, "", nil, 2).WithReviewer(reviewer)

	panels := make([]domain.PanelScript, 6)
	for i := range panels {
		panels[i] = domain.PanelScript{Description: fmt.Sprintf("panel %d", i+1)}
	}

	var dones []int
	results := pr.RenderAll(context.Background(), panels, staticSelector{}, func(done int, _ *RenderResult) {
		dones = append(dones, done)
	})

	if len(results) != 6 {
		t.Fatalf("期待値 6件, 実際の値 %d件", len(results))
	}
	for i, res := range results {
		failed := i == 1 || i == 4
		if failed && res != nil {
			t.Errorf("パネル %d は失敗として nil であるべきです", i+1)
		}
		if !failed && (res == nil || res.Index != i || res.Panel.Description != panels[i].Description) {
			t.Errorf("パネル %d の結果が位置と対応していません: %+v", i+1, res)
		}
	}
	if len(dones) != 6 || dones[5] != 6 {
		t.Errorf("完了通知は失敗を含め6回、単調増加であるべきです: %v", dones)
	}
	if n := reviewer.n.Load(); n != 4 {
		t.Errorf("検証は成功したパネルだけに行われるべきです: %d回", n)
	}
}

type fakeKit struct {
	panelReqs []imagedom.ImageGenerationRequest
	pageReqs  []imagedom.ImagePageRequest
	data      []byte
}

func (k *fakeKit) GenerateMangaPanel(_ context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	k.panelReqs = append(k.panelReqs, req)
	return &imagedom.ImageResponse{Data: k.data, MimeType: "image/png", UsedSeed: 1234}, nil
}

func (k *fakeKit) GenerateMangaPage(_ context.Context, req imagedom.ImagePageRequest) (*imagedom.ImageResponse, error) {
	k.pageReqs = append(k.pageReqs, req)
	return &imagedom.ImageResponse{Data: k.data, MimeType: "image/jpeg"}, nil
}

type memWriter struct {
	files map[string][]byte
}

func (w *memWriter) Write(_ context.Context, p string, r io.Reader, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.files[p] = b
	return nil
}

type fakeUploader struct {
	n atomic.Int32
}

func (u *fakeUploader) UploadFile(_ context.Context, uri string) (string, error) {
	u.n.Add(1)
	return "files/" + uri, nil
}

func TestKitSynthesizer(t *testing.T) {
	kit := &fakeKit{data: []byte("img")}
	writer := &memWriter{files: map[string][]byte{}}
	uploader := &fakeUploader{}
	s := NewKitSynthesizer(kit, uploader, writer, "out")
	ctx := context.Background()

	t.Run("生成結果を保存し、使われたシード値を返すこと", func(t *testing.T) {
		res, err := s.TextToImage(ctx, ImageRequest{Prompt: "p", Folder: "panels", Name: "panel_1"})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if res.Seed != 1234 {
			t.Errorf("期待値 1234, 実際の値 %d", res.Seed)
		}
		if _, ok := writer.files[res.ImageURL]; !ok {
			t.Errorf("画像が保存されていません: %s", res.ImageURL)
		}
		if kit.panelReqs[0].Seed != nil {
			t.Error("シード値 0 は未指定として送られるべきです")
		}
	})

	t.Run("参照1枚はパネル生成、複数枚はページ生成を使うこと", func(t *testing.T) {
		if _, err := s.ImageToImage(ctx, ImageRequest{Prompt: "p", ReferenceURLs: []string{"a.png"}, Seed: 5}); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if _, err := s.ImageToImage(ctx, ImageRequest{Prompt: "p", ReferenceURLs: []string{"a.png"}, Seed: 5}); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		last := kit.panelReqs[len(kit.panelReqs)-1]
		if last.ReferenceURL != "a.png" || last.FileAPIURI != "files/a.png" || *last.Seed != 5 {
			t.Errorf("想定外のリクエストです: %+v", last)
		}
		if n := uploader.n.Load(); n != 1 {
			t.Errorf("アップロードは参照ごとに1回であるべきです: %d回", n)
		}

		res, err := s.ImageToImage(ctx, ImageRequest{Prompt: "p", ReferenceURLs: []string{"a.png", "b.png"}, Seed: 5})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(kit.pageReqs) != 1 || len(kit.pageReqs[0].ReferenceURLs) != 2 {
			t.Errorf("ページ生成に全参照が渡されていません: %+v", kit.pageReqs)
		}
		if res.Seed != 5 || !strings.HasSuffix(res.ImageURL, ".jpg") {
			t.Errorf("想定外の結果です: %+v", res)
		}
	})

	t.Run("画像データが空ならエラーになること", func(t *testing.T) {
		empty := NewKitSynthesizer(&fakeKit{}, nil, writer, "out")
		if _, err := empty.TextToImage(ctx, ImageRequest{Prompt: "p"}); !errors.Is(err, ErrEmptyImage) {
			t.Errorf("期待値 ErrEmptyImage, 実際の値 %v", err)
		}
	})
}

type slowSynth struct{}

func (slowSynth) TextToImage(ctx context.Context, _ ImageRequest) (*ImageResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s slowSynth) ImageToImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	return s.TextToImage(ctx, req)
}

func TestWithTimeout(t *testing.T) {
	s := WithTimeout(slowSynth{}, 10*time.Millisecond)
	if _, err := s.TextToImage(context.Background(), ImageRequest{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("期待値 DeadlineExceeded, 実際の値 %v", err)
	}
	if WithTimeout(slowSynth{}, 0) != (slowSynth{}) {
		t.Error("タイムアウト 0 では元の実装をそのまま返すべきです")
	}
}
