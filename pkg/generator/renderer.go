package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/asset"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/prompts"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Selector はパネル描写から参照画像とシード値を選びます。
type Selector interface {
	Select(description string) domain.Selection
}

// Reviewer はレンダリング直後のパネルを検証し、必要なら差し替えた結果を返します。
type Reviewer interface {
	Review(ctx context.Context, res *RenderResult) *RenderResult
}

// RenderResult は1パネル分のレンダリング結果と、その再現に必要な入力です。
type RenderResult struct {
	Index       int
	Panel       domain.PanelScript
	Prompt      string
	AspectRatio string
	Selection   domain.Selection
	Image       *ImageResult
	// Refined は検証後の再生成で画像が差し替えられたことを示します。
	Refined bool
}

// Succeeded は画像が得られたかどうかを返します。
func (r *RenderResult) Succeeded() bool {
	return r != nil && r.Image != nil && r.Image.ImageURL != ""
}

// PanelRenderer はパネル台本を画像へ変換します。
// 参照画像があれば image-to-image、なければ text-to-image を使います。
type PanelRenderer struct {
	synth       ImageSynthesizer
	style       string
	limiter     *rate.Limiter
	concurrency int
	reviewer    Reviewer
}

// NewPanelRenderer は PanelRenderer を初期化します。limiter は nil でも構いません。
func NewPanelRenderer(synth ImageSynthesizer, style string, limiter *rate.Limiter, concurrency int) *PanelRenderer {
	if style == "" {
		style = prompts.PanelStyleClause
	}
	return &PanelRenderer{
		synth:       synth,
		style:       style,
		limiter:     limiter,
		concurrency: concurrency,
	}
}

// WithReviewer はレンダリング直後に実行する検証を設定します。
func (pr *PanelRenderer) WithReviewer(r Reviewer) *PanelRenderer {
	pr.reviewer = r
	return pr
}

// Render は1パネルをレンダリングします。index は 0 始まりです。
func (pr *PanelRenderer) Render(ctx context.Context, index int, panel domain.PanelScript, sel domain.Selection) (*RenderResult, error) {
	res := &RenderResult{
		Index:       index,
		Panel:       panel,
		Prompt:      prompts.BuildPanelPrompt(pr.style, panel.Description),
		AspectRatio: PanelAspectRatio,
		Selection:   sel,
	}
	img, err := pr.synthesize(ctx, res, res.Prompt)
	if err != nil {
		return res, err
	}
	res.Image = img
	return res, nil
}

// Rerender は同じプロンプト・シード値・アスペクト比・参照画像に追加指示を加えて再生成します。
// 元の結果は変更せず、新しい結果を返します。
func (pr *PanelRenderer) Rerender(ctx context.Context, prev *RenderResult, extra []string) (*RenderResult, error) {
	if prev == nil {
		return nil, fmt.Errorf("再生成の元になる結果がありません")
	}
	next := *prev
	img, err := pr.synthesize(ctx, &next, prompts.AppendRefinement(prev.Prompt, extra))
	if err != nil {
		return nil, err
	}
	next.Image = img
	next.Refined = true
	return &next, nil
}

func (pr *PanelRenderer) synthesize(ctx context.Context, res *RenderResult, prompt string) (*ImageResult, error) {
	if pr.limiter != nil {
		if err := pr.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("リミッター待機中にエラーが発生しました: %w", err)
		}
	}

	req := ImageRequest{
		Prompt:         prompt,
		NegativePrompt: prompts.NegativePanelPrompt,
		SystemPrompt:   prompts.PanelSystemPrompt,
		AspectRatio:    res.AspectRatio,
		ReferenceURLs:  res.Selection.ReferenceURLs,
		Seed:           res.Selection.Seed,
		Folder:         asset.PanelDir,
		Name:           fmt.Sprintf("panel_%d", res.Index+1),
	}

	var (
		img *ImageResult
		err error
	)
	if res.Selection.HasReferences() {
		img, err = pr.synth.ImageToImage(ctx, req)
	} else {
		img, err = pr.synth.TextToImage(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if img == nil || img.ImageURL == "" {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// RenderAll は全パネルを並列にレンダリングします。
// 結果は入力と同じ位置に格納され、失敗したパネルは nil になります。全タスクの完了を待ち、途中で打ち切りません。
// onDone はパネルが1枚完了するごとに（失敗を含め）直列に呼ばれ、完了数と結果を受け取ります。
func (pr *PanelRenderer) RenderAll(ctx context.Context, panels []domain.PanelScript, selector Selector, onDone func(done int, res *RenderResult)) []*RenderResult {
	results := make([]*RenderResult, len(panels))

	var (
		mu   sync.Mutex
		done int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	if pr.concurrency > 0 {
		eg.SetLimit(pr.concurrency)
	}

	for i, panel := range panels {
		eg.Go(func() error {
			logger := slog.With("panel_index", i+1, "placeholder", panel.Placeholder)
			startTime := time.Now()

			sel := selector.Select(panel.Description)
			res, err := pr.Render(egCtx, i, panel, sel)
			if err != nil {
				logger.Warn("パネルの生成に失敗しました。このパネルは破棄されます", "error", err)
				res = nil
			} else {
				if pr.reviewer != nil {
					if reviewed := pr.reviewer.Review(egCtx, res); reviewed.Succeeded() {
						res = reviewed
					}
				}
				logger.Info("Panel generation completed",
					"references", len(sel.ReferenceURLs),
					"seed_source", sel.SeedSource,
					"refined", res.Refined,
					"duration", time.Since(startTime).Round(time.Millisecond))
			}
			results[i] = res

			if onDone != nil {
				mu.Lock()
				done++
				onDone(done, res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}
