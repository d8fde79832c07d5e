package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shouni/go-chapter-kit/internal/config"
	"github.com/shouni/go-chapter-kit/pkg/agents"
	"github.com/shouni/go-chapter-kit/pkg/llm"
	"github.com/shouni/go-chapter-kit/pkg/pipeline"
	"github.com/shouni/go-chapter-kit/pkg/storage/sqlite"
	"github.com/shouni/go-chapter-kit/pkg/workflow"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// BuildWorkflow は具体的なクライアントを用意して workflow.Manager を構築するのだ。
func BuildWorkflow(ctx context.Context, cfg *config.Config, reader remoteio.InputReader, writer remoteio.OutputWriter, store *sqlite.Store) (*workflow.Manager, error) {
	text, err := InitializeTextModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// 画像を読めるのは Gemini だけなので、検証は常に Gemini を使うのだ
	vision, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("検証用モデルの初期化に失敗したのだ: %w", err)
	}

	rosters, err := InitializeRosters(cfg.RosterFile)
	if err != nil {
		return nil, err
	}

	args := workflow.ManagerArgs{
		Config:      cfg.Library(),
		TextModel:   text,
		VisionModel: vision,
		HTTPClient:  httpkit.New(config.DefaultHTTPTimeout),
		Reader:      reader,
		Writer:      writer,
		Rosters:     rosters,
	}
	// nil の *sqlite.Store をインターフェースに入れないようにするのだ
	if store != nil {
		args.Store = pipeline.ChapterStore(store)
	}

	manager, err := workflow.New(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("ワークフローの構築に失敗したのだ: %w", err)
	}
	return manager, nil
}

// InitializeTextModel は TEXT_PROVIDER に応じたテキスト生成モデルを初期化するのだ。
func InitializeTextModel(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	switch cfg.TextProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.TextModel), nil
	case config.ProviderAnthropic:
		return llm.NewAnthropic(cfg.AnthropicAPIKey, cfg.TextModel), nil
	case config.ProviderGemini, "":
		model := cfg.TextModel
		if model == "" {
			model = cfg.GeminiModel
		}
		g, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("テキスト生成モデルの初期化に失敗したのだ: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("未対応のテキストプロバイダなのだ: %q", cfg.TextProvider)
	}
}

// InitializeRosters は ROSTER_FILE が指定されていればそれを、なければ組み込みの名簿を読み込むのだ。
func InitializeRosters(path string) (agents.Rosters, error) {
	if path == "" {
		return agents.DefaultRosters()
	}
	rosters, err := agents.LoadRosters(path)
	if err != nil {
		return nil, fmt.Errorf("ペルソナ名簿 '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	return rosters, nil
}

// InitializeRemoteIO はローカルと GCS の両方を扱える入出力を作成するのだ。
func InitializeRemoteIO(ctx context.Context) (remoteio.InputReader, remoteio.OutputWriter, error) {
	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, nil, err
	}
	return reader, writer, nil
}

// OpenStore は SQLite の保存先を開くのだ。パスが空なら永続化しないのだ。
func OpenStore(path string) (*sqlite.Store, error) {
	if path == "" {
		return nil, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("データベースのディレクトリ作成に失敗したのだ: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
