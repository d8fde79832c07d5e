package cmd

import (
	"fmt"

	"github.com/shouni/go-chapter-kit/internal/builder"
	"github.com/shouni/go-chapter-kit/internal/server"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd は、パイプラインを HTTP で操作するサーバーを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "章生成を HTTP API として提供するのだ。",
	RunE:  serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "待ち受けアドレス（デフォルトは SERVER_ADDR）なのだ。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()
	if serveAddr != "" {
		cfg.ServerAddr = serveAddr
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	srv := server.New(ctx, func(observer chkit.Observer) (server.Run, error) {
		orch, err := appCtx.Workflow.BuildOrchestrator(observer)
		if err != nil {
			return nil, err
		}
		return orch, nil
	})
	if err := srv.ListenAndServe(ctx, cfg.ServerAddr); err != nil {
		return fmt.Errorf("サーバーの実行に失敗したのだ: %w", err)
	}
	srv.Wait()
	return nil
}
