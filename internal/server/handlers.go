package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type runResponse struct {
	RunID  string         `json:"runId"`
	State  chkit.State    `json:"state"`
	Result *domain.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type rewriteRequest struct {
	Selection   string `json:"selection"`
	Instruction string `json:"instruction"`
}

func (s *Server) response(rn *run) runResponse {
	res, lastErr := rn.snapshot()
	return runResponse{RunID: rn.id, State: rn.r.State(), Result: res, Error: lastErr}
}

func (s *Server) handleCreate(c *gin.Context) {
	var in chkit.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が不正なのだ: " + err.Error()})
		return
	}
	if strings.TrimSpace(in.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt は必須なのだ"})
		return
	}

	rn := newRun(uuid.NewString())
	r, err := s.factory(rn.record)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rn.r = r

	s.mu.Lock()
	s.runs[rn.id] = rn
	s.mu.Unlock()

	s.background(rn, "start", func(ctx context.Context) error {
		return rn.r.Start(ctx, in)
	})
	c.JSON(http.StatusAccepted, gin.H{"runId": rn.id})
}

func (s *Server) handleGet(c *gin.Context) {
	rn, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "指定された実行が見つからないのだ"})
		return
	}
	c.JSON(http.StatusOK, s.response(rn))
}

// handleEvents は工程の通知を Server-Sent Events で配信するのだ。
// 過去の通知を先に送り、章の完成か失敗で終了するのだ。
func (s *Server) handleEvents(c *gin.Context) {
	rn, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "指定された実行が見つからないのだ"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	next := 0
	for {
		events, changed := rn.since(next)
		for _, e := range events {
			c.SSEvent("stage", e)
			next++
		}
		c.Writer.Flush()
		if len(events) > 0 && terminal(events[len(events)-1]) {
			return
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleContinue(c *gin.Context) {
	rn, ok := s.reviewing(c)
	if !ok {
		return
	}
	s.background(rn, "continue", func(ctx context.Context) error {
		res, err := rn.r.Continue(ctx)
		if err != nil {
			return err
		}
		rn.setResult(res)
		return nil
	})
	c.JSON(http.StatusAccepted, gin.H{"runId": rn.id})
}

func (s *Server) handleRetry(c *gin.Context) {
	rn, ok := s.reviewing(c)
	if !ok {
		return
	}
	s.background(rn, "retry", rn.r.Retry)
	c.JSON(http.StatusAccepted, gin.H{"runId": rn.id})
}

// handleRewrite は書き換えを同期で実行するのだ。失敗しても本文は元のままなのだ。
func (s *Server) handleRewrite(c *gin.Context) {
	rn, ok := s.reviewing(c)
	if !ok {
		return
	}
	var req rewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が不正なのだ: " + err.Error()})
		return
	}
	if err := rn.r.Rewrite(c.Request.Context(), req.Selection, req.Instruction); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.response(rn))
}

// reviewing は確認工程にある実行だけを通すのだ。
func (s *Server) reviewing(c *gin.Context) (*run, bool) {
	rn, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "指定された実行が見つからないのだ"})
		return nil, false
	}
	if stage := rn.r.State().Stage; stage != domain.StageNarrativeReview {
		c.JSON(http.StatusConflict, gin.H{"error": "物語本文の確認工程ではないのだ", "stage": stage})
		return nil, false
	}
	return rn, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chkit.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chkit.ErrSelectionNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chkit.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
