package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-chapter-kit/internal/builder"
	"github.com/shouni/go-chapter-kit/internal/config"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"
)

// ErrAborted は確認工程で中止が選ばれた場合のエラーなのだ。
var ErrAborted = errors.New("確認工程で中止されたのだ")

// Runner は CLI から操作するパイプラインの操作なのだ。*chkit.Orchestrator が満たすのだ。
type Runner interface {
	State() chkit.State
	Start(ctx context.Context, in chkit.Input) error
	Retry(ctx context.Context) error
	Rewrite(ctx context.Context, selection, instruction string) error
	Continue(ctx context.Context) (*domain.Result, error)
}

// Execute は入力を読み込み、章の生成を最後まで実行するのだ。
// reviewer が nil の場合は確認工程をそのまま通過するのだ。
func Execute(ctx context.Context, cfg *config.Config, reviewer Reviewer) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := appCtx.Close(); err != nil {
			slog.Warn("リソースの解放に失敗したのだ", "error", err)
		}
	}()

	in, err := LoadInput(ctx, appCtx.Reader, cfg.Options)
	if err != nil {
		return err
	}

	orch, err := appCtx.Workflow.BuildOrchestrator(LogEvent)
	if err != nil {
		return fmt.Errorf("パイプラインの構築に失敗したのだ: %w", err)
	}

	res, err := Run(ctx, orch, in, reviewer)
	if err != nil {
		return err
	}

	slog.Info("章が完成したのだ！", "chapter_id", res.ChapterID, "panels", len(res.PanelImages))
	for _, p := range res.PanelImages {
		slog.Debug("パネル", "order", p.Order, "image", p.ImageURL)
	}
	return nil
}

// Run は確認工程をはさんで章の生成を進めるのだ。
func Run(ctx context.Context, r Runner, in chkit.Input, reviewer Reviewer) (*domain.Result, error) {
	if err := r.Start(ctx, in); err != nil {
		return nil, fmt.Errorf("物語本文の生成に失敗したのだ: %w", err)
	}

	for reviewer != nil {
		d, err := reviewer.Review(ctx, r.State().Narrative)
		if err != nil {
			return nil, err
		}
		if d.Action == ActionContinue {
			break
		}
		switch d.Action {
		case ActionAbort:
			return nil, ErrAborted
		case ActionRetry:
			if err := r.Retry(ctx); err != nil {
				return nil, fmt.Errorf("物語本文の再生成に失敗したのだ: %w", err)
			}
		case ActionRewrite:
			if err := r.Rewrite(ctx, d.Selection, d.Instruction); err != nil {
				// 書き換えの失敗では確認工程に留まるのだ
				if r.State().Stage != domain.StageNarrativeReview {
					return nil, err
				}
				slog.Warn("書き換えできなかったのだ。元の本文のままなのだ", "error", err)
			}
		}
	}

	res, err := r.Continue(ctx)
	if err != nil {
		return nil, fmt.Errorf("章の生成に失敗したのだ: %w", err)
	}
	return res, nil
}

// ExecuteReferences は登場要素ファイルの設定画とシードを確定し、JSON として書き出すのだ。
func ExecuteReferences(ctx context.Context, cfg *config.Config) error {
	if cfg.Options.EntitiesFile == "" {
		return fmt.Errorf("登場要素ファイル（--entities）を指定してほしいのだ")
	}

	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	entities, err := loadEntities(ctx, appCtx.Reader, cfg.Options.EntitiesFile)
	if err != nil {
		return err
	}

	slog.Info("設定画の生成を開始するのだ...", "entities", len(entities))
	entities = appCtx.Workflow.BuildReferenceRunner().Generate(ctx, entities)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("登場要素の変換に失敗したのだ: %w", err)
	}
	out := referenceOutput(cfg)
	if err := appCtx.Writer.Write(ctx, out, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("登場要素の保存に失敗したのだ: %w", err)
	}

	slog.Info("設定画の生成が完了したのだ！", "path", out)
	return nil
}

func referenceOutput(cfg *config.Config) string {
	if cfg.Options.ReferenceOut != "" {
		return cfg.Options.ReferenceOut
	}
	return cfg.OutputDir + "/entities.json"
}

// LogEvent は工程の通知をログに出すのだ。
func LogEvent(e domain.Event) {
	if e.Error != "" {
		slog.Warn("工程が失敗したのだ", "stage", e.Stage.String(), "progress", e.Progress, "error", e.Error)
		return
	}
	slog.Info(e.Message, "stage", e.Stage.String(), "progress", e.Progress)
}
