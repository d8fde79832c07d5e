package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/llm"
	"github.com/shouni/go-chapter-kit/pkg/prompts"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrNoContributions は全ペルソナが失敗した場合のエラーです。工程レベルの致命的エラーとして扱われます。
var ErrNoContributions = errors.New("すべてのペルソナの生成に失敗しました")

// PlaceholderConfidence は失敗したペルソナの代替出力に付ける信頼度です。
const PlaceholderConfidence = 0.1

var tracer = otel.Tracer("github.com/shouni/go-chapter-kit/pkg/agents")

// Task は協調ラウンドに共通で渡されるタスク文脈です。
type Task struct {
	Name          string
	Brief         string // 全ペルソナ共通のタスク指示（テンプレート展開済み）
	Genre         string
	TargetCount   int
	KnownEntities []string
	// JSON は統合結果を構造化出力モードで要求します。
	JSON bool
}

// Outcome は協調ラウンドの結果です。
type Outcome struct {
	Output        string
	Contributions []domain.AgentContribution
}

// Engine は並列の専門家 → 単一の統合 → 継続 → 補完、というパターンを実行します。
type Engine struct {
	model       llm.Generator
	prompts     prompts.PromptBuilder
	concurrency int
}

// NewEngine は Engine を初期化します。concurrency が 0 以下なら並列数を制限しません。
func NewEngine(model llm.Generator, pb prompts.PromptBuilder, concurrency int) *Engine {
	return &Engine{model: model, prompts: pb, concurrency: concurrency}
}

// Collaborate は名簿の全ペルソナを並列に呼び出し、結果を1回の統合呼び出しでまとめます。
// 個々のペルソナの失敗は低信頼度のプレースホルダーとして吸収され、ラウンドは継続します。
// ペルソナを持たない名簿では統合担当が単独で生成します。
func (e *Engine) Collaborate(ctx context.Context, roster Roster, task Task) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "agents.Collaborate")
	defer span.End()
	span.SetAttributes(
		attribute.String("roster", roster.Name),
		attribute.String("task", task.Name),
		attribute.Int("personas", len(roster.Personas)),
	)

	if len(roster.Personas) == 0 {
		out, err := e.call(ctx, roster.Synthesizer, task.Genre, task.Brief, task.JSON)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Outcome{}, fmt.Errorf("%s の生成に失敗しました: %w", roster.Synthesizer.Name, err)
		}
		return Outcome{Output: out}, nil
	}

	contributions := e.dispatch(ctx, roster, task)

	succeeded := 0
	for _, c := range contributions {
		if !c.Failed() {
			succeeded++
		}
	}
	span.SetAttributes(attribute.Int("succeeded", succeeded))
	if succeeded == 0 {
		span.SetStatus(codes.Error, ErrNoContributions.Error())
		return Outcome{Contributions: contributions}, fmt.Errorf("%s (%s): %w", task.Name, roster.Name, ErrNoContributions)
	}

	output, err := e.synthesize(ctx, roster, task, contributions)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Outcome{Contributions: contributions}, err
	}

	return Outcome{Output: output, Contributions: contributions}, nil
}

// dispatch は全ペルソナを並列に呼び出します。エラーを errgroup に返さないため、
// 1つの失敗で他の呼び出しが打ち切られることはありません。
func (e *Engine) dispatch(ctx context.Context, roster Roster, task Task) []domain.AgentContribution {
	contributions := make([]domain.AgentContribution, len(roster.Personas))

	var eg errgroup.Group
	if e.concurrency > 0 {
		eg.SetLimit(e.concurrency)
	}

	for i, persona := range roster.Personas {
		eg.Go(func() error {
			logger := slog.With("task", task.Name, "persona", persona.Name)
			startTime := time.Now()

			out, err := e.call(ctx, persona, task.Genre, task.Brief, false)
			if err != nil {
				logger.WarnContext(ctx, "ペルソナの生成に失敗したため、プレースホルダーで代替します", "error", err)
				contributions[i] = domain.AgentContribution{
					AgentName:       persona.Name,
					FocusArea:       persona.FocusArea(),
					ConfidenceScore: PlaceholderConfidence,
				}
				return nil
			}

			contributions[i] = domain.AgentContribution{
				AgentName:       persona.Name,
				Output:          out,
				FocusArea:       persona.FocusArea(),
				ConfidenceScore: confidence(persona, out),
			}
			logger.DebugContext(ctx, "Persona contribution completed", "duration", time.Since(startTime).Round(time.Millisecond))
			return nil
		})
	}
	_ = eg.Wait()

	return contributions
}

func (e *Engine) synthesize(ctx context.Context, roster Roster, task Task, contributions []domain.AgentContribution) (string, error) {
	data := prompts.TemplateData{Context: task.Brief}
	for _, c := range contributions {
		data.Contributions = append(data.Contributions, prompts.ContributionData{
			Name:   c.AgentName,
			Focus:  c.FocusArea,
			Output: strings.TrimSpace(c.Output),
		})
	}
	prompt, err := e.prompts.Build(prompts.ModeSynthesis, data)
	if err != nil {
		return "", err
	}

	out, err := e.call(ctx, roster.Synthesizer, task.Genre, prompt, task.JSON)
	if err != nil {
		return "", fmt.Errorf("%s の統合に失敗しました: %w", task.Name, err)
	}
	return out, nil
}

// Continue は不足分（from..to）だけを統合担当に追加生成させます。
func (e *Engine) Continue(ctx context.Context, roster Roster, task Task, existing string, from, to int) (string, error) {
	ctx, span := tracer.Start(ctx, "agents.Continue")
	defer span.End()
	span.SetAttributes(attribute.String("task", task.Name), attribute.Int("from", from), attribute.Int("to", to))

	prompt, err := e.prompts.Build(prompts.ModeContinuation, prompts.TemplateData{
		Context:  task.Brief,
		Existing: existing,
		From:     from,
		To:       to,
	})
	if err != nil {
		return "", err
	}
	return e.call(ctx, roster.Synthesizer, task.Genre, prompt, task.JSON)
}

func (e *Engine) call(ctx context.Context, persona Persona, genre, prompt string, jsonMode bool) (string, error) {
	system, err := e.prompts.Build(prompts.ModePersona, prompts.TemplateData{
		Genre: genre,
		Persona: prompts.PersonaData{
			Name:  persona.Name,
			Role:  persona.Role,
			Focus: persona.FocusArea(),
		},
	})
	if err != nil {
		return "", err
	}
	return e.model.Generate(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: persona.Temperature,
		JSON:        jsonMode,
	})
}

// confidence は注力分野の語が出力にどれだけ現れるかで簡易的な信頼度を算出します。
func confidence(p Persona, out string) float64 {
	score := 0.5
	lower := strings.ToLower(out)
	if len(p.Focus) > 0 {
		hits := 0
		for _, f := range p.Focus {
			for _, word := range strings.Fields(strings.ToLower(f)) {
				if strings.Contains(lower, word) {
					hits++
					break
				}
			}
		}
		score += 0.4 * float64(hits) / float64(len(p.Focus))
	}
	if len(out) > 200 {
		score += 0.1
	}
	return min(score, 1.0)
}
