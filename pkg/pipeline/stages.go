package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/agents"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/generator"
	"github.com/shouni/go-chapter-kit/pkg/parser"
	"github.com/shouni/go-chapter-kit/pkg/prompts"
	"github.com/shouni/go-chapter-kit/pkg/reference"

	"github.com/google/uuid"
)

// placeholderPanel は不足したパネルを補う静かな場面です。
func placeholderPanel(i int) domain.PanelScript {
	return domain.PanelScript{
		Description: fmt.Sprintf("Quiet transitional moment continuing the scene (panel %d)", i+1),
		Placeholder: true,
	}
}

func (o *Orchestrator) roster(name string) agents.Roster {
	// New で存在を確認済み
	r, _ := o.deps.Rosters.Get(name)
	return r
}

// plan は物語全体の構成を返します。入力に計画があればそれを使い、解析できない応答はプロンプトから組み立てた計画で代替します。
func (o *Orchestrator) plan(ctx context.Context, in Input) (domain.StoryPlan, error) {
	if in.Plan != nil {
		return *in.Plan, nil
	}

	brief, err := o.deps.Prompts.Build(prompts.ModePlan, prompts.TemplateData{
		Premise:       in.Prompt,
		Genre:         in.Genre,
		TotalChapters: in.TotalChapters,
		TargetCount:   in.PanelCount,
		KnownEntities: domain.Entities(in.Entities).Names(),
	})
	if err != nil {
		return domain.StoryPlan{}, err
	}
	outcome, err := o.deps.Engine.Collaborate(ctx, o.roster(agents.RosterPlanner), agents.Task{
		Name:          "plan",
		Brief:         brief,
		Genre:         in.Genre,
		TargetCount:   in.PanelCount,
		KnownEntities: domain.Entities(in.Entities).Names(),
		JSON:          true,
	})
	if err != nil {
		return domain.StoryPlan{}, err
	}

	plan, err := parser.ParsePlan(outcome.Output, in.TotalChapters, in.PanelCount)
	if err != nil {
		slog.WarnContext(ctx, "構成案を解析できないため、プロンプトから構成を組み立てます", "error", err)
		return fallbackPlan(in), nil
	}
	return plan, nil
}

func fallbackPlan(in Input) domain.StoryPlan {
	title := in.Prompt
	if r := []rune(title); len(r) > 60 {
		title = string(r[:60])
	}
	return domain.StoryPlan{
		Title:                     title,
		Synopsis:                  in.Prompt,
		TotalChapters:             in.TotalChapters,
		EstimatedPanelsPerChapter: in.PanelCount,
		ChapterOutlines: []domain.ChapterOutline{{
			ChapterNumber:   in.ChapterNumber,
			Title:           fmt.Sprintf("Chapter %d", in.ChapterNumber),
			Summary:         in.Prompt,
			EstimatedPanels: in.PanelCount,
		}},
	}
}

func (o *Orchestrator) narrative(ctx context.Context, in Input, plan domain.StoryPlan) (string, error) {
	outline := plan.Outline(in.ChapterNumber)
	brief, err := o.deps.Prompts.Build(prompts.ModeNarrative, prompts.TemplateData{
		Premise:        in.Prompt,
		Genre:          in.Genre,
		TargetCount:    in.PanelCount,
		KnownEntities:  describeEntities(in.Entities),
		ChapterNumber:  in.ChapterNumber,
		TotalChapters:  plan.TotalChapters,
		ChapterTitle:   outline.Title,
		ChapterSummary: outline.Summary,
		PlanTitle:      plan.Title,
		PlanSynopsis:   plan.Synopsis,
	})
	if err != nil {
		return "", err
	}
	outcome, err := o.deps.Engine.Collaborate(ctx, o.roster(agents.RosterNarrative), agents.Task{
		Name:          "narrative",
		Brief:         brief,
		Genre:         in.Genre,
		TargetCount:   in.PanelCount,
		KnownEntities: domain.Entities(in.Entities).Names(),
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(outcome.Output)
	if text == "" {
		return "", fmt.Errorf("物語本文が空です")
	}
	return text, nil
}

func (o *Orchestrator) rewrite(ctx context.Context, s State, selection, instruction string) (string, error) {
	brief, err := o.deps.Prompts.Build(prompts.ModeRewrite, prompts.TemplateData{
		Context:     s.Narrative,
		Selection:   selection,
		Instruction: instruction,
	})
	if err != nil {
		return "", err
	}
	outcome, err := o.deps.Engine.Collaborate(ctx, o.roster(agents.RosterRewriter), agents.Task{
		Name:  "rewrite",
		Brief: brief,
		Genre: s.Input.Genre,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(outcome.Output)
	if text == "" {
		return "", fmt.Errorf("書き換え後の本文が空です")
	}
	return text, nil
}

func (o *Orchestrator) extractEntities(ctx context.Context, in Input, narrative string) ([]domain.Entity, error) {
	known := domain.Entities(in.Entities).Names()
	brief, err := o.deps.Prompts.Build(prompts.ModeEntities, prompts.TemplateData{
		Context:       narrative,
		KnownEntities: known,
	})
	if err != nil {
		return nil, err
	}
	outcome, err := o.deps.Engine.Collaborate(ctx, o.roster(agents.RosterEntities), agents.Task{
		Name:          "entities",
		Brief:         brief,
		Genre:         in.Genre,
		KnownEntities: known,
	})
	if err != nil {
		return nil, err
	}
	entities := o.deps.Extractor.Extract(outcome.Output, in.Entities)
	slog.InfoContext(ctx, "登場要素を抽出しました", "total", len(entities), "user_authored", len(in.Entities))
	return entities, nil
}

func (o *Orchestrator) breakdown(ctx context.Context, in Input, narrative string, entities []domain.Entity) ([]domain.PanelScript, error) {
	names := domain.Entities(entities).Names()
	brief, err := o.deps.Prompts.Build(prompts.ModePanels, prompts.TemplateData{
		Context:       narrative,
		TargetCount:   in.PanelCount,
		KnownEntities: names,
	})
	if err != nil {
		return nil, err
	}
	return agents.CollectExactly(ctx, o.deps.Engine, o.roster(agents.RosterPanels), agents.Task{
		Name:          "panels",
		Brief:         brief,
		Genre:         in.Genre,
		KnownEntities: names,
	}, agents.ListSpec[domain.PanelScript]{
		Count:       in.PanelCount,
		Parse:       parser.ParsePanels,
		Placeholder: placeholderPanel,
	})
}

// render は全パネルを描画し、成功したものだけを 1..K の連番に詰めて返します。
func (o *Orchestrator) render(ctx context.Context, panels []domain.PanelScript, entities []domain.Entity, styleSeed int64) []domain.RenderedPanel {
	store := reference.NewStore(entities, styleSeed, o.deps.Matcher)
	if o.maxReferences != 0 {
		store.WithMaxReferences(o.maxReferences)
	}

	total := len(panels)
	results := o.deps.Renderer.RenderAll(ctx, panels, store, func(done int, _ *generator.RenderResult) {
		progress := progressRendering + done*progressRenderSpan/total
		if progress > progressRenderCap {
			progress = progressRenderCap
		}
		o.bump(progress, fmt.Sprintf("パネル %d/%d 完了", done, total))
	})

	var rendered []domain.RenderedPanel
	for _, res := range results {
		if !res.Succeeded() {
			continue
		}
		rendered = append(rendered, domain.RenderedPanel{
			ImageURL: res.Image.ImageURL,
			Text:     res.Panel.Dialogue,
			Order:    len(rendered) + 1,
		})
	}
	return rendered
}

func (o *Orchestrator) buildChapter(s State, rendered []domain.RenderedPanel) domain.Chapter {
	title := fmt.Sprintf("Chapter %d", s.Input.ChapterNumber)
	if s.Plan != nil {
		if t := strings.TrimSpace(s.Plan.Outline(s.Input.ChapterNumber).Title); t != "" {
			title = t
		}
	}
	return domain.Chapter{
		ID:            uuid.NewString(),
		StoryID:       s.Input.StoryID,
		ChapterNumber: s.Input.ChapterNumber,
		Title:         title,
		Narrative:     s.Narrative,
		Panels:        rendered,
	}
}

// persist は章と登場要素を保存し、公開します。失敗は記録のみです。
func (o *Orchestrator) persist(ctx context.Context, ch domain.Chapter, entities []domain.Entity) {
	if o.deps.Store != nil {
		if err := o.deps.Store.CreateChapter(ctx, ch); err != nil {
			slog.ErrorContext(ctx, "章の保存に失敗しました", "chapter_id", ch.ID, "error", err)
		}
		for _, e := range entities {
			if err := o.deps.Store.CreateCharacterRecord(ctx, ch.StoryID, e); err != nil {
				slog.ErrorContext(ctx, "登場要素の保存に失敗しました", "entity", e.Name, "error", err)
			}
		}
	}
	if o.deps.Publisher != nil {
		p, err := o.deps.Publisher.Publish(ctx, ch, entities)
		if err != nil {
			slog.ErrorContext(ctx, "章の書き出しに失敗しました", "chapter_id", ch.ID, "error", err)
			return
		}
		slog.InfoContext(ctx, "章を書き出しました", "path", p)
	}
}

// describeEntities はユーザー作成の登場要素を本文生成向けに「名前: 説明」の形へ整えます。
func describeEntities(es []domain.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		if d := strings.TrimSpace(e.Description); d != "" {
			out = append(out, fmt.Sprintf("%s (%s): %s", e.Name, e.Kind, d))
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", e.Name, e.Kind))
	}
	return out
}
