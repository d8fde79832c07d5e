// Package server は章生成パイプラインを HTTP で操作するための API を提供するのだ。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"

	"github.com/gin-gonic/gin"
)

// Run は1回分のパイプラインの操作なのだ。*chkit.Orchestrator が満たすのだ。
type Run interface {
	State() chkit.State
	Start(ctx context.Context, in chkit.Input) error
	Retry(ctx context.Context) error
	Rewrite(ctx context.Context, selection, instruction string) error
	Continue(ctx context.Context) (*domain.Result, error)
}

// Factory は observer に工程の通知を送る新しい Run を作るのだ。
type Factory func(observer chkit.Observer) (Run, error)

// Server は実行中のパイプラインをメモリ上で管理するのだ。プロセスを再起動すると失われるのだ。
type Server struct {
	factory Factory
	baseCtx context.Context

	mu   sync.RWMutex
	runs map[string]*run

	wg sync.WaitGroup
}

// New は Server を作成するのだ。ctx はバックグラウンドで動く工程の寿命なのだ。
func New(ctx context.Context, factory Factory) *Server {
	return &Server{
		factory: factory,
		baseCtx: ctx,
		runs:    make(map[string]*run),
	}
}

// Handler はルーティング済みの gin エンジンを返すのだ。
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	v1.POST("/runs", s.handleCreate)
	v1.GET("/runs/:id", s.handleGet)
	v1.GET("/runs/:id/events", s.handleEvents)
	v1.POST("/runs/:id/continue", s.handleContinue)
	v1.POST("/runs/:id/retry", s.handleRetry)
	v1.POST("/runs/:id/rewrite", s.handleRewrite)
	return router
}

// ListenAndServe は ctx がキャンセルされるまで addr で待ち受けるのだ。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP サーバーを起動したのだ", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP サーバーが停止したのだ: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP サーバーの停止に失敗したのだ: %w", err)
	}
	slog.Info("HTTP サーバーを停止したのだ")
	return nil
}

// Wait はバックグラウンドで動いている工程の終了を待つのだ。
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) lookup(id string) (*run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rn, ok := s.runs[id]
	return rn, ok
}

// background は工程を非同期で実行し、失敗を記録するのだ。
func (s *Server) background(rn *run, op string, f func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := f(s.baseCtx); err != nil {
			slog.Warn("工程が失敗したのだ", "run_id", rn.id, "op", op, "error", err)
			rn.setError(err)
		}
	}()
}
