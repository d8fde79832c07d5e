// Package verify はレンダリング済みパネルの視覚的一貫性を検証し、必要に応じて1回だけ再生成します。
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-chapter-kit/pkg/asset"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/llm"
	"github.com/shouni/go-chapter-kit/pkg/parser"
	"github.com/shouni/go-chapter-kit/pkg/prompts"
)

// ErrRenderedImageUnavailable は検証対象の画像を読み込めなかった場合のエラーです。
var ErrRenderedImageUnavailable = errors.New("検証対象の画像を読み込めません")

// Judgment は視覚モデルによる一貫性の判定です。ConfidenceScore は 0〜100 に収められます。
type Judgment struct {
	IsConsistent    bool     `json:"isConsistent"`
	ConfidenceScore int      `json:"confidenceScore"`
	Issues          []string `json:"issues"`
	Suggestions     []string `json:"suggestions"`
}

// rawJudgment はモデルが小数や範囲外の値を返しても受け取れるようにするための型です。
type rawJudgment struct {
	IsConsistent    *bool    `json:"isConsistent"`
	ConfidenceScore float64  `json:"confidenceScore"`
	Issues          []string `json:"issues"`
	Suggestions     []string `json:"suggestions"`
}

// ImageLoader は画像のバイト列を取得します。
type ImageLoader interface {
	Load(ctx context.Context, path string) (*asset.Image, error)
}

// Checker はパネルと参照画像の一貫性を判定します。
type Checker interface {
	Verify(ctx context.Context, renderedURL string, referenceURLs []string, subject domain.Entity) (*Judgment, error)
}

// Verifier は視覚モデルを1回呼び出して判定を得る Checker です。
type Verifier struct {
	model   llm.Generator
	prompts prompts.PromptBuilder
	images  ImageLoader
}

// NewVerifier は Verifier を初期化します。
func NewVerifier(model llm.Generator, pb prompts.PromptBuilder, images ImageLoader) *Verifier {
	return &Verifier{model: model, prompts: pb, images: images}
}

// Verify はレンダリング画像・参照画像・主題の情報を視覚モデルへ渡し、判定を返します。
// 読み込めなかった参照画像は除外されますが、レンダリング画像が読み込めない場合はエラーです。
func (v *Verifier) Verify(ctx context.Context, renderedURL string, referenceURLs []string, subject domain.Entity) (*Judgment, error) {
	rendered, err := v.images.Load(ctx, renderedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderedImageUnavailable, err)
	}
	images := []llm.Image{{Data: rendered.Data, MimeType: rendered.MimeType}}
	for _, ref := range referenceURLs {
		img, err := v.images.Load(ctx, ref)
		if err != nil {
			slog.WarnContext(ctx, "参照画像を読み込めないため検証から除外します", "reference", ref, "error", err)
			continue
		}
		images = append(images, llm.Image{Data: img.Data, MimeType: img.MimeType})
	}

	prompt, err := v.prompts.Build(prompts.ModeVerify, prompts.TemplateData{
		SubjectName:        subject.Name,
		SubjectRole:        subject.Role,
		SubjectDescription: subject.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("検証プロンプトの構築に失敗しました: %w", err)
	}

	out, err := v.model.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: 0,
		JSON:        true,
		Images:      images,
	})
	if err != nil {
		return nil, fmt.Errorf("視覚モデルの呼び出しに失敗しました: %w", err)
	}
	return ParseJudgment(out)
}

// ParseJudgment はモデルの出力から判定を取り出します。
func ParseJudgment(raw string) (*Judgment, error) {
	r, err := parser.DecodeJSON[rawJudgment](raw)
	if err != nil {
		return nil, fmt.Errorf("判定のパースに失敗しました: %w", err)
	}
	score := int(r.ConfidenceScore + 0.5)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	// isConsistent が省略された場合は信頼度だけで判断する
	consistent := true
	if r.IsConsistent != nil {
		consistent = *r.IsConsistent
	}
	return &Judgment{
		IsConsistent:    consistent,
		ConfidenceScore: score,
		Issues:          r.Issues,
		Suggestions:     r.Suggestions,
	}, nil
}
