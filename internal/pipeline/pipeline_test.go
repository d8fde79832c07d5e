package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/shouni/go-chapter-kit/internal/config"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"
)

type fakeRunner struct {
	state      chkit.State
	calls      []string
	failRetry  bool
	rewriteErr error
}

func (f *fakeRunner) State() chkit.State { return f.state }

func (f *fakeRunner) Start(_ context.Context, in chkit.Input) error {
	f.calls = append(f.calls, "start")
	f.state = chkit.State{Stage: domain.StageNarrativeReview, Input: in, Narrative: "v1"}
	return nil
}

func (f *fakeRunner) Retry(context.Context) error {
	f.calls = append(f.calls, "retry")
	if f.failRetry {
		f.state.Stage = domain.StageInput
		return errors.New("boom")
	}
	f.state.Narrative = "v2"
	return nil
}

func (f *fakeRunner) Rewrite(_ context.Context, sel, inst string) error {
	f.calls = append(f.calls, "rewrite:"+sel+":"+inst)
	return f.rewriteErr
}

func (f *fakeRunner) Continue(context.Context) (*domain.Result, error) {
	f.calls = append(f.calls, "continue")
	f.state.Stage = domain.StageComplete
	return &domain.Result{Success: true, ChapterID: "ch-1"}, nil
}

type scriptedReviewer struct {
	decisions []Decision
	seen      []string
}

func (s *scriptedReviewer) Review(_ context.Context, narrative string) (Decision, error) {
	s.seen = append(s.seen, narrative)
	if len(s.decisions) == 0 {
		return Decision{Action: ActionContinue}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	in := chkit.Input{Prompt: "a warrior finds a cursed blade"}

	t.Run("確認なしでそのまま完了する", func(t *testing.T) {
		r := &fakeRunner{}
		res, err := Run(ctx, r, in, nil)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if res.ChapterID != "ch-1" || strings.Join(r.calls, ",") != "start,continue" {
			t.Errorf("想定外の呼び出し: %v", r.calls)
		}
	})

	t.Run("再生成と書き換えを経て続行する", func(t *testing.T) {
		r := &fakeRunner{rewriteErr: chkit.ErrSelectionNotFound}
		rv := &scriptedReviewer{decisions: []Decision{
			{Action: ActionRetry},
			{Action: ActionRewrite, Selection: "x", Instruction: "darker"},
		}}
		if _, err := Run(ctx, r, in, rv); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		want := "start,retry,rewrite:x:darker,continue"
		if got := strings.Join(r.calls, ","); got != want {
			t.Errorf("期待値 %s, 実際の値 %s", want, got)
		}
		if strings.Join(rv.seen, ",") != "v1,v2,v2" {
			t.Errorf("確認した本文が想定外です: %v", rv.seen)
		}
	})

	t.Run("中止", func(t *testing.T) {
		r := &fakeRunner{}
		rv := &scriptedReviewer{decisions: []Decision{{Action: ActionAbort}}}
		if _, err := Run(ctx, r, in, rv); !errors.Is(err, ErrAborted) {
			t.Errorf("期待値 ErrAborted, 実際の値 %v", err)
		}
	})

	t.Run("再生成の失敗は終了する", func(t *testing.T) {
		r := &fakeRunner{failRetry: true}
		rv := &scriptedReviewer{decisions: []Decision{{Action: ActionRetry}}}
		if _, err := Run(ctx, r, in, rv); err == nil {
			t.Error("エラーが返されるべきです")
		}
		for _, c := range r.calls {
			if c == "continue" {
				t.Error("失敗後に続行してはいけません")
			}
		}
	})
}

func TestConsoleReviewer(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	rv := NewConsoleReviewer(strings.NewReader("huh\nw\nthe blade\nmake it glow\nr\n"), &out)
	d, err := rv.Review(ctx, "The blade waits.")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if d.Action != ActionRewrite || d.Selection != "the blade" || d.Instruction != "make it glow" {
		t.Errorf("想定外の判断: %+v", d)
	}
	if !strings.Contains(out.String(), "The blade waits.") || !strings.Contains(out.String(), "不明な操作") {
		t.Errorf("出力が想定外です: %s", out.String())
	}

	d, _ = rv.Review(ctx, "again")
	if d.Action != ActionRetry {
		t.Errorf("期待値 retry, 実際の値 %v", d.Action)
	}

	d, _ = rv.Review(ctx, "eof")
	if d.Action != ActionContinue {
		t.Errorf("入力が尽きたら続行するべきです: %v", d.Action)
	}
}

type memReader map[string]string

func (m memReader) Open(_ context.Context, path string) (io.ReadCloser, error) {
	s, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("not found: %s", path)
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func TestLoadInput(t *testing.T) {
	ctx := context.Background()
	files := memReader{
		"prompt.txt":    "a warrior finds a cursed blade",
		"entities.json": `[{"kind":"character","name":"Mira","description":"a young warrior","role":"protagonist"}]`,
		"plan.json":     `{"title":"The Blade","totalChapters":3,"chapterOutlines":[{"chapterNumber":2,"title":"Return"}]}`,
	}

	in, err := LoadInput(ctx, files, config.GenerateOptions{
		PromptFile:    "prompt.txt",
		EntitiesFile:  "entities.json",
		PlanFile:      "plan.json",
		ChapterNumber: 2,
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if in.Prompt != "a warrior finds a cursed blade" || in.ChapterNumber != 2 {
		t.Errorf("想定外の入力: %+v", in)
	}
	if len(in.Entities) != 1 || in.Entities[0].Name != "Mira" {
		t.Errorf("登場要素が想定外です: %+v", in.Entities)
	}
	if in.Plan == nil || in.Plan.Title != "The Blade" {
		t.Errorf("構成案が想定外です: %+v", in.Plan)
	}

	t.Run("プロンプトがない", func(t *testing.T) {
		if _, err := LoadInput(ctx, files, config.GenerateOptions{}); err == nil {
			t.Error("エラーが返されるべきです")
		}
	})

	t.Run("ファイルがない", func(t *testing.T) {
		if _, err := LoadInput(ctx, files, config.GenerateOptions{Prompt: "x", EntitiesFile: "missing.json"}); err == nil {
			t.Error("エラーが返されるべきです")
		}
	})
}
