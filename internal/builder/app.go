package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-chapter-kit/internal/config"
	"github.com/shouni/go-chapter-kit/pkg/storage/sqlite"
	"github.com/shouni/go-chapter-kit/pkg/workflow"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各実行関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config   *config.Config        // 環境変数とコマンドラインから組み立てた設定なのだ。
	Reader   remoteio.InputReader  // 登場要素や構成案の読み込みに使用する入力元です。
	Writer   remoteio.OutputWriter // 生成された画像や章を保存するための出力先です。
	Store    *sqlite.Store         // DATABASE_PATH が空の場合は nil なのだ。
	Workflow *workflow.Manager
}

// NewAppContext は設定から全ての部品を組み立てるのだ。
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reader, writer, err := InitializeRemoteIO(ctx)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	manager, err := BuildWorkflow(ctx, cfg, reader, writer, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	slog.Debug("アプリケーションの構築が完了したのだ",
		"text_provider", cfg.TextProvider,
		"image_model", cfg.GeminiImageModel,
		"database", cfg.DatabasePath)

	return &AppContext{
		Config:   cfg,
		Reader:   reader,
		Writer:   writer,
		Store:    store,
		Workflow: manager,
	}, nil
}

// Close は保持しているリソースを解放するのだ。
func (a *AppContext) Close() error {
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("データベースのクローズに失敗したのだ: %w", err)
	}
	return nil
}
