package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRun は確認工程で止まり、続行で完成する最小のパイプラインなのだ。
type fakeRun struct {
	observer chkit.Observer

	mu    sync.Mutex
	state chkit.State
}

func (f *fakeRun) State() chkit.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRun) set(stage domain.Stage, progress int, narrative string) {
	f.mu.Lock()
	f.state.Stage = stage
	f.state.Progress = progress
	if narrative != "" {
		f.state.Narrative = narrative
	}
	f.mu.Unlock()
	f.observer(domain.Event{Stage: stage, Progress: progress, Message: stage.String(), Time: time.Now()})
}

func (f *fakeRun) Start(_ context.Context, in chkit.Input) error {
	f.set(domain.StagePlanning, 5, "")
	f.set(domain.StageNarrativeReview, 30, "Mira lifts the blade.")
	return nil
}

func (f *fakeRun) Retry(context.Context) error {
	f.set(domain.StageNarrativeReview, 30, "Mira hesitates.")
	return nil
}

func (f *fakeRun) Rewrite(_ context.Context, selection, instruction string) error {
	if !strings.Contains(f.State().Narrative, selection) {
		return chkit.ErrSelectionNotFound
	}
	if instruction == "fail" {
		return errors.New("model unavailable")
	}
	f.mu.Lock()
	f.state.Narrative = strings.Replace(f.state.Narrative, selection, instruction, 1)
	f.mu.Unlock()
	return nil
}

func (f *fakeRun) Continue(context.Context) (*domain.Result, error) {
	f.set(domain.StageComplete, 100, "")
	return &domain.Result{Success: true, ChapterID: "ch-1"}, nil
}

func newTestServer() *Server {
	return New(context.Background(), func(observer chkit.Observer) (Run, error) {
		return &fakeRun{observer: observer}, nil
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createRun(t *testing.T, s *Server, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/v1/runs", `{"prompt":"a warrior finds a cursed blade"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("期待値 202, 実際の値 %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		RunID string `json:"runId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.RunID == "" {
		t.Fatalf("runId が返されませんでした: %s", w.Body.String())
	}
	s.Wait()
	return body.RunID
}

func TestServer_Lifecycle(t *testing.T) {
	s := newTestServer()
	h := s.Handler()
	id := createRun(t, s, h)

	w := do(t, h, http.MethodGet, "/v1/runs/"+id, "")
	var got runResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("応答のデコードに失敗: %v", err)
	}
	if got.State.Stage != domain.StageNarrativeReview || got.State.Narrative != "Mira lifts the blade." {
		t.Errorf("確認工程で止まっているべきです: %+v", got.State)
	}

	t.Run("書き換え", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/v1/runs/"+id+"/rewrite", `{"selection":"lifts","instruction":"drops"}`)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Mira drops the blade.") {
			t.Errorf("想定外の応答 %d: %s", w.Code, w.Body.String())
		}

		w = do(t, h, http.MethodPost, "/v1/runs/"+id+"/rewrite", `{"selection":"dragon","instruction":"x"}`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("期待値 422, 実際の値 %d", w.Code)
		}

		w = do(t, h, http.MethodPost, "/v1/runs/"+id+"/rewrite", `{"selection":"Mira","instruction":"fail"}`)
		if w.Code != http.StatusBadGateway {
			t.Errorf("期待値 502, 実際の値 %d", w.Code)
		}
	})

	t.Run("再生成", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/v1/runs/"+id+"/retry", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("期待値 202, 実際の値 %d", w.Code)
		}
		s.Wait()
		rn, _ := s.lookup(id)
		if n := rn.r.State().Narrative; n != "Mira hesitates." {
			t.Errorf("本文が再生成されていません: %s", n)
		}
	})

	t.Run("続行して完成", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/v1/runs/"+id+"/continue", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("期待値 202, 実際の値 %d", w.Code)
		}
		s.Wait()

		w = do(t, h, http.MethodGet, "/v1/runs/"+id, "")
		var got runResponse
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if got.State.Stage != domain.StageComplete || got.Result == nil || got.Result.ChapterID != "ch-1" {
			t.Errorf("完成していません: %+v", got)
		}

		w = do(t, h, http.MethodPost, "/v1/runs/"+id+"/continue", "")
		if w.Code != http.StatusConflict {
			t.Errorf("完成後の続行は 409 になるべきです: %d", w.Code)
		}
	})

	t.Run("イベントの配信", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/v1/runs/"+id+"/events", "")
		body := w.Body.String()
		if !strings.Contains(w.Header().Get("Content-Type"), "text/event-stream") {
			t.Errorf("Content-Type が想定外です: %s", w.Header().Get("Content-Type"))
		}
		if n := strings.Count(body, "event:stage"); n != 4 {
			t.Errorf("期待値 4 件, 実際の値 %d 件: %s", n, body)
		}
		if !strings.Contains(body, `"stage":"complete"`) {
			t.Errorf("完成の通知がありません: %s", body)
		}
	})
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer()
	h := s.Handler()

	if w := do(t, h, http.MethodPost, "/v1/runs", `{"prompt":"  "}`); w.Code != http.StatusBadRequest {
		t.Errorf("空のプロンプトは 400 になるべきです: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/v1/runs", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("不正な JSON は 400 になるべきです: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/v1/runs/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("存在しない実行は 404 になるべきです: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/v1/runs/missing/continue", ""); w.Code != http.StatusNotFound {
		t.Errorf("存在しない実行は 404 になるべきです: %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		chkit.ErrInvalidInput:      http.StatusBadRequest,
		chkit.ErrSelectionNotFound: http.StatusUnprocessableEntity,
		chkit.ErrInvalidTransition: http.StatusConflict,
		errors.New("other"):        http.StatusBadGateway,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("%v: 期待値 %d, 実際の値 %d", err, want, got)
		}
	}
}
