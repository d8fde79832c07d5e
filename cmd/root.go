package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shouni/go-chapter-kit/internal/config"
	"github.com/shouni/go-chapter-kit/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	opts    config.GenerateOptions
	verbose bool

	// 環境変数より優先するのだ
	textProvider string
	outputDir    string
)

// shutdownTelemetry は PersistentPostRunE でトレースを送り出すためのものなのだ。
var shutdownTelemetry telemetry.ShutdownFunc = func(context.Context) error { return nil }

var rootCmd = &cobra.Command{
	Use:   "chapter-kit",
	Short: "短いプロンプトから挿絵付きの章を生成するのだ。",
	Long: `物語の構成、本文、登場要素の抽出、設定画、パネル分割、パネル画像までを
順番に生成して、挿絵付きの章として書き出すのだ。`,
	SilenceUsage:       true,
	PersistentPreRunE:  preRunAppE,
	PersistentPostRunE: postRunAppE,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "詳細なログを出力するのだ。")
	rootCmd.PersistentFlags().StringVar(&textProvider, "text-provider", "", "テキスト生成のプロバイダ（gemini / openai / anthropic）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "生成物の保存先（ローカル or gs://...）なのだ。")
	rootCmd.AddCommand(generateCmd, referencesCmd, serveCmd)
}

// preRunAppE はログとトレースを準備するのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.LoadConfig()
	shutdown, err := telemetry.Setup(cmd.Context(), config.DefaultServiceName, cfg.OTelEndpoint)
	if err != nil {
		// トレースが使えなくても生成は続けるのだ
		slog.Warn("トレースの初期化に失敗したのだ", "error", err)
		return nil
	}
	shutdownTelemetry = shutdown
	return nil
}

func postRunAppE(cmd *cobra.Command, args []string) error {
	if err := shutdownTelemetry(context.Background()); err != nil {
		slog.Warn("トレースの送信に失敗したのだ", "error", err)
	}
	return nil
}

// loadConfig は環境変数を読み込み、コマンドラインの設定を重ねるのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	cfg.Options = opts
	if textProvider != "" {
		cfg.TextProvider = strings.ToLower(textProvider)
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("コマンドの実行に失敗したのだ", "error", err)
		stop()
		os.Exit(1)
	}
}
