package verify

import (
	"context"
	"log/slog"

	"github.com/shouni/go-chapter-kit/pkg/generator"
)

// DefaultThreshold はこれ未満の信頼度で再生成を行う閾値です。
const DefaultThreshold = 75

// Rerenderer は同じ入力に追加指示を加えてパネルを再生成します。
type Rerenderer interface {
	Rerender(ctx context.Context, prev *generator.RenderResult, extra []string) (*generator.RenderResult, error)
}

// Refiner は検証と最大1回の再生成を行う generator.Reviewer です。
type Refiner struct {
	checker   Checker
	renderer  Rerenderer
	threshold int
}

// NewRefiner は Refiner を初期化します。threshold が 0 以下なら DefaultThreshold です。
func NewRefiner(checker Checker, renderer Rerenderer, threshold int) *Refiner {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Refiner{checker: checker, renderer: renderer, threshold: threshold}
}

// NeedsRefinement は判定が再生成を要するかどうかを返します。
func (r *Refiner) NeedsRefinement(j *Judgment) bool {
	return j != nil && (!j.IsConsistent || j.ConfidenceScore < r.threshold)
}

// Review はパネルを検証し、一貫性が不十分なら提案を付けて1回だけ再生成します。
// 再生成結果は無条件に採用されます。検証・再生成の失敗は記録のみで、元の結果を返します。
func (r *Refiner) Review(ctx context.Context, res *generator.RenderResult) *generator.RenderResult {
	if !res.Succeeded() || res.Refined {
		return res
	}
	// 参照画像は一致したエンティティからのみ集まるため、主題がなければ検証対象もない
	subject := res.Selection.Subject()
	if subject == nil {
		return res
	}

	logger := slog.With("panel_index", res.Index+1, "subject", subject.Name)
	j, err := r.checker.Verify(ctx, res.Image.ImageURL, res.Selection.ReferenceURLs, *subject)
	if err != nil {
		logger.Warn("一貫性の検証に失敗しました。元の画像を使います", "error", err)
		return res
	}
	if !r.NeedsRefinement(j) {
		logger.Debug("一貫性の検証に合格しました", "confidence", j.ConfidenceScore)
		return res
	}

	logger.Info("一貫性が不十分なため再生成します",
		"consistent", j.IsConsistent, "confidence", j.ConfidenceScore, "issues", len(j.Issues))
	refined, err := r.renderer.Rerender(ctx, res, j.Suggestions)
	if err != nil {
		logger.Warn("再生成に失敗しました。元の画像を使います", "error", err)
		return res
	}
	return refined
}
