package reference

import (
	"context"
	"log/slog"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/asset"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/generator"
	"github.com/shouni/go-chapter-kit/pkg/prompts"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultAngleViews は主人公に追加で描き起こすアングルです。
var DefaultAngleViews = []string{"side view", "back view"}

// Generator はアンカーされていないエンティティの設定画を生成します。
type Generator struct {
	synth       generator.ImageSynthesizer
	style       string
	limiter     *rate.Limiter
	concurrency int
	angleViews  []string
}

// NewGenerator は Generator を初期化します。angleViews が空の場合、アングル画像は生成しません。
func NewGenerator(synth generator.ImageSynthesizer, style string, limiter *rate.Limiter, concurrency int, angleViews []string) *Generator {
	return &Generator{
		synth:       synth,
		style:       style,
		limiter:     limiter,
		concurrency: concurrency,
		angleViews:  angleViews,
	}
}

// Generate は各エンティティの設定画を並列に生成し、画像URLとシード値を付与したコピーを返します。
// アンカー済みのエンティティはそのまま通過し、失敗したエンティティは画像なしのまま残ります。
// 返り値の順序と件数は入力と同じです。
func (g *Generator) Generate(ctx context.Context, entities []domain.Entity) []domain.Entity {
	out := domain.Entities(entities).Clone()

	eg, egCtx := errgroup.WithContext(ctx)
	if g.concurrency > 0 {
		eg.SetLimit(g.concurrency)
	}

	for i := range out {
		if out[i].Anchored() {
			continue
		}
		eg.Go(func() error {
			e := out[i]
			logger := slog.With("entity", e.Name, "kind", e.Kind)
			startTime := time.Now()

			img, err := g.render(egCtx, generator.ImageRequest{
				Prompt:       prompts.BuildReferencePrompt(g.style, e),
				SystemPrompt: prompts.ReferenceSystemPrompt,
				AspectRatio:  generator.ReferenceAspectRatio,
				Seed:         e.Seed,
				Folder:       asset.ReferenceDir,
				Name:         e.Name,
			}, false)
			if err != nil {
				logger.Warn("設定画の生成に失敗しました。参照画像なしで続行します", "error", err)
				return nil
			}
			e.ImageURL = img.ImageURL
			if img.Seed > 0 {
				e.Seed = img.Seed
			}
			if e.IsCharacter() && e.IsPrimary {
				e.Angles = append(e.Angles, g.angles(egCtx, e)...)
			}
			out[i] = e

			logger.Info("Reference generation completed", "seed", e.Seed, "angles", len(e.Angles),
				"duration", time.Since(startTime).Round(time.Millisecond))
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

// angles はメイン設定画を参照し、同じシード値で別アングルを描き起こします。失敗したアングルは省かれます。
func (g *Generator) angles(ctx context.Context, e domain.Entity) []domain.Angle {
	var angles []domain.Angle
	for _, view := range g.angleViews {
		img, err := g.render(ctx, generator.ImageRequest{
			Prompt:        prompts.BuildAnglePrompt(g.style, e, view),
			SystemPrompt:  prompts.ReferenceSystemPrompt,
			AspectRatio:   generator.ReferenceAspectRatio,
			ReferenceURLs: []string{e.ImageURL},
			Seed:          e.Seed,
			Folder:        asset.ReferenceDir,
			Name:          e.Name + "_" + view,
		}, true)
		if err != nil {
			slog.WarnContext(ctx, "アングル画像の生成に失敗しました", "entity", e.Name, "view", view, "error", err)
			continue
		}
		angles = append(angles, domain.Angle{Description: view, ImageURL: img.ImageURL, Seed: img.Seed})
	}
	return angles
}

func (g *Generator) render(ctx context.Context, req generator.ImageRequest, i2i bool) (*generator.ImageResult, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var (
		img *generator.ImageResult
		err error
	)
	if i2i {
		img, err = g.synth.ImageToImage(ctx, req)
	} else {
		img, err = g.synth.TextToImage(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if img == nil || img.ImageURL == "" {
		return nil, generator.ErrEmptyImage
	}
	return img, nil
}
