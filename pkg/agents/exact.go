package agents

import (
	"context"
	"fmt"
	"log/slog"
)

// ListSpec は件数が決まったリストを生成するための解析・補完ルールです。
type ListSpec[T any] struct {
	Count int
	Parse func(raw string) []T
	// Placeholder は index 番目（0始まり）の補完用エントリを決定的に生成します。
	Placeholder func(index int) T
}

// CollectExactly は協調ラウンドの結果を解析し、必ず spec.Count 件のリストを返します。
// 不足時は1回だけ継続呼び出しを行い、それでも足りなければプレースホルダーで補完します。
// 超過分は切り捨てます。
func CollectExactly[T any](ctx context.Context, e *Engine, roster Roster, task Task, spec ListSpec[T]) ([]T, error) {
	if spec.Count <= 0 {
		return nil, fmt.Errorf("要求件数は1以上である必要があります: %d", spec.Count)
	}
	task.TargetCount = spec.Count

	outcome, err := e.Collaborate(ctx, roster, task)
	if err != nil {
		return nil, err
	}
	items := spec.Parse(outcome.Output)

	if len(items) < spec.Count {
		from, to := len(items)+1, spec.Count
		slog.InfoContext(ctx, "統合結果が不足しているため継続生成します", "task", task.Name, "have", len(items), "from", from, "to", to)

		more, err := e.Continue(ctx, roster, task, outcome.Output, from, to)
		if err != nil {
			slog.WarnContext(ctx, "継続生成に失敗しました。プレースホルダーで補完します", "task", task.Name, "error", err)
		} else {
			items = append(items, spec.Parse(more)...)
		}
	}

	if len(items) > spec.Count {
		items = items[:spec.Count]
	}
	if missing := spec.Count - len(items); missing > 0 {
		slog.WarnContext(ctx, "不足分をプレースホルダーで補完します", "task", task.Name, "missing", missing)
		for i := len(items); i < spec.Count; i++ {
			items = append(items, spec.Placeholder(i))
		}
	}
	return items, nil
}
