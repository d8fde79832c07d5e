package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/agents"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/extract"
	"github.com/shouni/go-chapter-kit/pkg/match"
	"github.com/shouni/go-chapter-kit/pkg/prompts"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/shouni/go-chapter-kit/pkg/pipeline")

// Deps はオーケストレーターが使う部品です。Store / Publisher / Observer は省略できます。
type Deps struct {
	Engine     *agents.Engine
	Rosters    agents.Rosters
	Prompts    prompts.PromptBuilder
	Extractor  *extract.Extractor
	References ReferenceGenerator
	Renderer   PanelRenderer
	Matcher    match.Matcher
	Store      ChapterStore
	Publisher  Publisher
	Observer   Observer
}

// Option はオーケストレーターの挙動を調整します。
type Option func(*Orchestrator)

// WithMaxReferences は1パネルあたりの参照画像の上限を設定します。
func WithMaxReferences(n int) Option {
	return func(o *Orchestrator) { o.maxReferences = n }
}

// WithSeedFunc はスタイルシードの生成方法を差し替えます。
func WithSeedFunc(f func() int64) Option {
	return func(o *Orchestrator) { o.newSeed = f }
}

// Orchestrator は固定順序の工程を実行する状態機械です。
// 工程を進める呼び出しは1つずつしか実行できず、物語本文の確認工程で必ず停止します。
type Orchestrator struct {
	deps          Deps
	maxReferences int
	newSeed       func() int64

	mu    sync.Mutex
	state State
	busy  bool

	emitMu sync.Mutex
}

// New は Orchestrator を初期化します。
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("Engine は必須です")
	}
	if deps.Prompts == nil {
		return nil, fmt.Errorf("Prompts は必須です")
	}
	if deps.References == nil {
		return nil, fmt.Errorf("References は必須です")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("Renderer は必須です")
	}
	if deps.Rosters == nil {
		rs, err := agents.DefaultRosters()
		if err != nil {
			return nil, err
		}
		deps.Rosters = rs
	}
	for _, name := range []string{agents.RosterPlanner, agents.RosterNarrative, agents.RosterEntities, agents.RosterPanels, agents.RosterRewriter} {
		if _, err := deps.Rosters.Get(name); err != nil {
			return nil, err
		}
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewExtractor(nil, extract.DefaultCaps)
	}
	if deps.Matcher == nil {
		deps.Matcher = match.NewHeuristic()
	}

	o := &Orchestrator{
		deps:    deps,
		newSeed: randomSeed,
		state:   State{Stage: domain.StageInput},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func randomSeed() int64 {
	return rand.Int64N(math.MaxInt32) + 1
}

// State は現在の状態のコピーを返します。
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Start は入力を検証し、計画と物語本文の生成を行って確認工程で停止します。
// 入力工程（または前回の完了後）からのみ呼び出せます。
func (o *Orchestrator) Start(ctx context.Context, in Input) error {
	in, err := in.normalize()
	if err != nil {
		return err
	}
	if in.StoryID == "" {
		in.StoryID = uuid.NewString()
	}

	o.mu.Lock()
	if o.busy || (o.state.Stage != domain.StageInput && o.state.Stage != domain.StageComplete) {
		stage := o.state.Stage
		o.mu.Unlock()
		return fmt.Errorf("%w: start (現在: %s)", ErrInvalidTransition, stage)
	}
	o.busy = true
	o.state = State{
		RunID:     uuid.NewString(),
		Stage:     domain.StageInput,
		Input:     in,
		StyleSeed: o.newSeed(),
	}
	o.mu.Unlock()
	defer o.release()

	ctx, span := tracer.Start(ctx, "pipeline.Start", trace.WithAttributes(
		attribute.String("story_id", in.StoryID),
		attribute.Int("chapter", in.ChapterNumber),
		attribute.Int("panels", in.PanelCount),
	))
	defer span.End()

	slog.InfoContext(ctx, "パイプラインを開始します", "story_id", in.StoryID, "chapter", in.ChapterNumber, "panels", in.PanelCount)

	o.advance(domain.StagePlanning, progressPlanning, "物語の構成を計画しています")
	plan, err := o.plan(ctx, in)
	if err != nil {
		return o.fail(span, domain.StagePlanning, err)
	}
	o.update(func(s *State) { s.Plan = &plan })

	o.advance(domain.StageGeneratingNarrative, progressNarrative, "物語本文を生成しています")
	narrative, err := o.narrative(ctx, in, plan)
	if err != nil {
		return o.fail(span, domain.StageGeneratingNarrative, err)
	}
	o.update(func(s *State) { s.Narrative = narrative })

	o.advance(domain.StageNarrativeReview, progressReview, "物語本文の確認待ちです")
	return nil
}

// Retry は確認工程から物語本文を生成し直し、再び確認工程で停止します。
// 失敗した場合は入力工程に戻ります。
func (o *Orchestrator) Retry(ctx context.Context) error {
	if err := o.acquire(domain.StageNarrativeReview, "retry"); err != nil {
		return err
	}
	defer o.release()

	ctx, span := tracer.Start(ctx, "pipeline.Retry")
	defer span.End()

	s := o.State()
	plan := domain.StoryPlan{}
	if s.Plan != nil {
		plan = *s.Plan
	}

	o.advance(domain.StageGeneratingNarrative, progressNarrative, "物語本文を生成し直しています")
	narrative, err := o.narrative(ctx, s.Input, plan)
	if err != nil {
		return o.fail(span, domain.StageGeneratingNarrative, err)
	}
	o.update(func(s *State) { s.Narrative = narrative })

	o.advance(domain.StageNarrativeReview, progressReview, "物語本文の確認待ちです")
	return nil
}

// Rewrite は本文中の selection を instruction に従って書き換えた全文で本文を置き換えます。
// 工程は確認工程のままです。失敗した場合も本文と工程は変わりません。
func (o *Orchestrator) Rewrite(ctx context.Context, selection, instruction string) error {
	selection = strings.TrimSpace(selection)
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return fmt.Errorf("%w: 書き換えの指示は必須です", ErrInvalidInput)
	}

	if err := o.acquire(domain.StageNarrativeReview, "rewrite"); err != nil {
		return err
	}
	defer o.release()

	s := o.State()
	if selection == "" || !strings.Contains(s.Narrative, selection) {
		return ErrSelectionNotFound
	}

	ctx, span := tracer.Start(ctx, "pipeline.Rewrite")
	defer span.End()

	revised, err := o.rewrite(ctx, s, selection, instruction)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "本文の書き換えに失敗しました。元の本文を保持します", "error", err)
		return fmt.Errorf("本文の書き換えに失敗しました: %w", err)
	}
	o.update(func(s *State) { s.Narrative = revised })
	o.emit(domain.StageNarrativeReview, "物語本文を書き換えました", "")
	return nil
}

// Continue は確認工程から残りの工程（抽出 → 設定画 → パネル分割 → レンダリング → 保存）を実行します。
// 1枚以上のパネルが得られれば成功し、全パネルが失敗した場合は何も保存せずに入力工程へ戻ります。
func (o *Orchestrator) Continue(ctx context.Context) (*domain.Result, error) {
	if err := o.acquire(domain.StageNarrativeReview, "continue"); err != nil {
		return nil, err
	}
	defer o.release()

	ctx, span := tracer.Start(ctx, "pipeline.Continue")
	defer span.End()

	s := o.State()
	in := s.Input

	o.advance(domain.StageExtractingEntities, progressExtracting, "登場要素を抽出しています")
	entities, err := o.extractEntities(ctx, in, s.Narrative)
	if err != nil {
		return o.failResult(span, domain.StageExtractingEntities, err)
	}
	o.update(func(s *State) { s.Entities = entities })

	o.advance(domain.StageGeneratingReferences, progressReferences, "設定画を生成しています")
	entities = o.deps.References.Generate(ctx, entities)
	o.update(func(s *State) { s.Entities = domain.Entities(entities).Clone() })

	o.advance(domain.StageBreakingIntoPanels, progressBreakdown, "パネルに分割しています")
	panels, err := o.breakdown(ctx, in, s.Narrative, entities)
	if err != nil {
		return o.failResult(span, domain.StageBreakingIntoPanels, err)
	}
	o.update(func(s *State) { s.Panels = panels })

	o.advance(domain.StageGeneratingPanelImages, progressRendering, "パネル画像を生成しています")
	rendered := o.render(ctx, panels, entities, s.StyleSeed)
	if len(rendered) == 0 {
		return o.failResult(span, domain.StageGeneratingPanelImages, ErrAllPanelsFailed)
	}
	if failed := len(panels) - len(rendered); failed > 0 {
		slog.WarnContext(ctx, "一部のパネルを破棄して章を構成します", "failed", failed, "kept", len(rendered))
	}

	chapter := o.buildChapter(s, rendered)
	o.persist(ctx, chapter, entities)
	o.update(func(s *State) {
		s.Rendered = rendered
		s.ChapterID = chapter.ID
	})

	o.advance(domain.StageComplete, progressComplete, fmt.Sprintf("章が完成しました (%d/%d パネル)", len(rendered), len(panels)))
	span.SetAttributes(attribute.Int("rendered", len(rendered)), attribute.Int("requested", len(panels)))

	return &domain.Result{
		Success:     true,
		ChapterID:   chapter.ID,
		PanelImages: append([]domain.RenderedPanel(nil), rendered...),
	}, nil
}

// acquire は工程を確認して実行権を得ます。条件を満たさない場合、状態は変わりません。
func (o *Orchestrator) acquire(want domain.Stage, op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy || o.state.Stage != want {
		return fmt.Errorf("%w: %s (現在: %s)", ErrInvalidTransition, op, o.state.Stage)
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

func (o *Orchestrator) update(f func(s *State)) {
	o.mu.Lock()
	f(&o.state)
	o.mu.Unlock()
}

// advance は工程を進めます。進捗率は減少しません。
func (o *Orchestrator) advance(stage domain.Stage, progress int, message string) {
	o.mu.Lock()
	o.state.Stage = stage
	if progress > o.state.Progress {
		o.state.Progress = progress
	}
	o.mu.Unlock()
	o.emit(stage, message, "")
}

// bump は現在の工程のまま進捗率だけを進めます。
func (o *Orchestrator) bump(progress int, message string) {
	o.mu.Lock()
	if progress > o.state.Progress {
		o.state.Progress = progress
	}
	stage := o.state.Stage
	o.mu.Unlock()
	o.emit(stage, message, "")
}

func (o *Orchestrator) emit(stage domain.Stage, message, errMsg string) {
	if o.deps.Observer == nil {
		return
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	o.mu.Lock()
	progress := o.state.Progress
	o.mu.Unlock()
	o.deps.Observer(domain.Event{
		Stage:    stage,
		Progress: progress,
		Message:  message,
		Error:    errMsg,
		Time:     time.Now(),
	})
}

// fail は工程の失敗を記録し、入力工程に戻します。
func (o *Orchestrator) fail(span trace.Span, stage domain.Stage, err error) error {
	msg := fmt.Sprintf("%s の工程で失敗しました: %v", stage, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	slog.Error("パイプラインが失敗しました", "stage", stage.String(), "error", err)

	o.mu.Lock()
	in := o.state.Input
	runID := o.state.RunID
	o.state = State{RunID: runID, Stage: domain.StageInput, Input: in, Error: msg}
	o.mu.Unlock()

	o.emit(domain.StageInput, "入力工程に戻りました", msg)
	return fmt.Errorf("%s: %w", stage, err)
}

func (o *Orchestrator) failResult(span trace.Span, stage domain.Stage, err error) (*domain.Result, error) {
	err = o.fail(span, stage, err)
	return &domain.Result{Success: false, Error: o.State().Error}, err
}
