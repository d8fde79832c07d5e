package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shouni/go-chapter-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、プロンプトから挿絵付きの章を生成するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "プロンプトから挿絵付きの章を生成するのだ。",
	Long: `プロンプトから物語の構成と本文を生成し、登場要素の設定画とパネル画像を作って
章として書き出すのだ。--review を付けると本文の確認工程で一度止まるのだよ。`,
	RunE: generateCommand,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&opts.Prompt, "prompt", "p", "", "物語のもとになるプロンプトなのだ。")
	f.StringVarP(&opts.PromptFile, "prompt-file", "f", "", "プロンプトを読み込むファイル（ローカル or gs://...）なのだ。")
	f.StringVarP(&opts.Genre, "genre", "g", "", "物語のジャンルなのだ。")
	f.StringVar(&opts.StoryID, "story-id", "", "続きの章を同じ物語として保存するための ID なのだ。")
	f.IntVar(&opts.ChapterNumber, "chapter", 1, "生成する章の番号なのだ。")
	f.IntVar(&opts.TotalChapters, "total-chapters", 0, "物語全体の章の数なのだ。")
	f.IntVarP(&opts.PanelCount, "panels", "n", 0, "生成するパネルの数なのだ（0 でデフォルト）。")
	f.StringVarP(&opts.EntitiesFile, "entities", "e", "", "ユーザーが定義した登場要素の JSON なのだ。")
	f.StringVar(&opts.PlanFile, "plan", "", "既存の構成案の JSON なのだ（続きの章の生成用）。")
	f.BoolVar(&opts.Review, "review", false, "物語本文の確認工程で止まって操作を受け付けるのだ。")
	f.BoolVar(&opts.NoVerify, "no-verify", false, "パネル画像の整合性の検証を行わないのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	slog.Info("章生成パイプラインを起動するのだ！",
		"text_provider", cfg.TextProvider,
		"image_model", cfg.GeminiImageModel,
		"output", cfg.OutputDir)

	var reviewer pipeline.Reviewer
	if opts.Review {
		reviewer = pipeline.NewConsoleReviewer(os.Stdin, cmd.OutOrStdout())
	}

	if err := pipeline.Execute(ctx, cfg, reviewer); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
