// Package pipeline は短いプロンプトから挿絵付きの章を生成する工程を順に実行します。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/generator"
)

var (
	// ErrInvalidTransition は現在の工程から許可されていない操作を呼び出した場合のエラーです。状態は変わりません。
	ErrInvalidTransition = errors.New("現在の工程ではこの操作を実行できません")
	// ErrAllPanelsFailed は全パネルのレンダリングに失敗した場合のエラーです。何も永続化されません。
	ErrAllPanelsFailed = errors.New("すべてのパネルの生成に失敗しました")
	// ErrSelectionNotFound は書き換え対象の文字列が本文に含まれていない場合のエラーです。
	ErrSelectionNotFound = errors.New("指定された箇所が本文に見つかりません")
	// ErrInvalidInput は入力の検証エラーです。
	ErrInvalidInput = errors.New("入力が不正です")
)

// 各工程に入った時点の進捗率です。
const (
	progressPlanning   = 5
	progressNarrative  = 20
	progressReview     = 30
	progressExtracting = 40
	progressReferences = 55
	progressBreakdown  = 65
	progressRendering  = 80
	progressRenderSpan = 15
	progressRenderCap  = 95
	progressComplete   = 100
)

const (
	DefaultPanelCount = 6
	MaxPanelCount     = 24
)

// Input はパイプラインの入力です。
type Input struct {
	StoryID       string          `json:"storyId,omitempty"`
	Prompt        string          `json:"prompt"`
	Genre         string          `json:"genre,omitempty"`
	ChapterNumber int             `json:"chapterNumber,omitempty"`
	TotalChapters int             `json:"totalChapters,omitempty"`
	PanelCount    int             `json:"panelCount,omitempty"`
	Entities      []domain.Entity `json:"entities,omitempty"`
	// Plan が指定された場合、計画工程は生成を行わずにこれを使います（続きの章を生成する場合）。
	Plan *domain.StoryPlan `json:"plan,omitempty"`
}

// normalize はデフォルト値を補い、検証します。
func (in Input) normalize() (Input, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		return in, fmt.Errorf("%w: プロンプトは必須です", ErrInvalidInput)
	}
	if in.ChapterNumber <= 0 {
		in.ChapterNumber = 1
	}
	if in.TotalChapters < in.ChapterNumber {
		in.TotalChapters = in.ChapterNumber
	}
	if in.PanelCount == 0 {
		in.PanelCount = DefaultPanelCount
	}
	if in.PanelCount < 1 || in.PanelCount > MaxPanelCount {
		return in, fmt.Errorf("%w: パネル数は 1〜%d の範囲で指定してください: %d", ErrInvalidInput, MaxPanelCount, in.PanelCount)
	}
	entities := make([]domain.Entity, 0, len(in.Entities))
	for i, e := range in.Entities {
		n, err := domain.NormalizeUserEntity(e.Clone())
		if err != nil {
			return in, fmt.Errorf("%w: %d 番目の登場要素: %v", ErrInvalidInput, i+1, err)
		}
		entities = append(entities, n)
	}
	in.Entities = entities
	return in, nil
}

// State はパイプラインの明示的な状態です。State() はこのコピーを返します。
type State struct {
	RunID     string                 `json:"runId"`
	Stage     domain.Stage           `json:"stage"`
	Progress  int                    `json:"progress"`
	Input     Input                  `json:"input"`
	Plan      *domain.StoryPlan      `json:"plan,omitempty"`
	Narrative string                 `json:"narrative,omitempty"`
	Entities  []domain.Entity        `json:"entities,omitempty"`
	Panels    []domain.PanelScript   `json:"panels,omitempty"`
	Rendered  []domain.RenderedPanel `json:"rendered,omitempty"`
	StyleSeed int64                  `json:"styleSeed"`
	ChapterID string                 `json:"chapterId,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

func (s State) clone() State {
	c := s
	c.Input.Entities = domain.Entities(s.Input.Entities).Clone()
	if s.Plan != nil {
		p := *s.Plan
		p.ChapterOutlines = append([]domain.ChapterOutline(nil), s.Plan.ChapterOutlines...)
		c.Plan = &p
	}
	c.Entities = domain.Entities(s.Entities).Clone()
	c.Panels = append([]domain.PanelScript(nil), s.Panels...)
	c.Rendered = append([]domain.RenderedPanel(nil), s.Rendered...)
	return c
}

// Observer は工程の遷移と進捗を受け取ります。呼び出しは直列です。
type Observer func(domain.Event)

// ChapterStore は章と登場要素の永続化先です。失敗は記録されるだけで、パイプラインは失敗しません。
type ChapterStore interface {
	CreateChapter(ctx context.Context, ch domain.Chapter) error
	CreateCharacterRecord(ctx context.Context, storyID string, e domain.Entity) error
}

// Publisher は完成した章を読み物として書き出します。
type Publisher interface {
	Publish(ctx context.Context, ch domain.Chapter, entities []domain.Entity) (string, error)
}

// ReferenceGenerator はエンティティの設定画を生成します。
type ReferenceGenerator interface {
	Generate(ctx context.Context, entities []domain.Entity) []domain.Entity
}

// PanelRenderer はパネル群をレンダリングします。結果は位置対応で、失敗は nil です。
type PanelRenderer interface {
	RenderAll(ctx context.Context, panels []domain.PanelScript, selector generator.Selector, onDone func(done int, res *generator.RenderResult)) []*generator.RenderResult
}
