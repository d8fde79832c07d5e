package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shouni/go-chapter-kit/internal/config"
	"github.com/shouni/go-chapter-kit/pkg/asset"
	"github.com/shouni/go-chapter-kit/pkg/domain"
	chkit "github.com/shouni/go-chapter-kit/pkg/pipeline"
)

// LoadInput はコマンドラインの設定からパイプラインの入力を組み立てるのだ。
func LoadInput(ctx context.Context, reader asset.Reader, opts config.GenerateOptions) (chkit.Input, error) {
	in := chkit.Input{
		StoryID:       opts.StoryID,
		Prompt:        opts.Prompt,
		Genre:         opts.Genre,
		ChapterNumber: opts.ChapterNumber,
		TotalChapters: opts.TotalChapters,
		PanelCount:    opts.PanelCount,
	}

	if strings.TrimSpace(in.Prompt) == "" && opts.PromptFile != "" {
		data, err := readAll(ctx, reader, opts.PromptFile)
		if err != nil {
			return in, fmt.Errorf("プロンプトファイル '%s' の読み込みに失敗したのだ: %w", opts.PromptFile, err)
		}
		in.Prompt = string(data)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return in, fmt.Errorf("プロンプト（--prompt または --prompt-file）を指定してほしいのだ")
	}

	if opts.EntitiesFile != "" {
		entities, err := loadEntities(ctx, reader, opts.EntitiesFile)
		if err != nil {
			return in, err
		}
		in.Entities = entities
	}

	if opts.PlanFile != "" {
		data, err := readAll(ctx, reader, opts.PlanFile)
		if err != nil {
			return in, fmt.Errorf("構成案 '%s' の読み込みに失敗したのだ: %w", opts.PlanFile, err)
		}
		var plan domain.StoryPlan
		if err := json.Unmarshal(data, &plan); err != nil {
			return in, fmt.Errorf("構成案 '%s' のデコードに失敗したのだ: %w", opts.PlanFile, err)
		}
		in.Plan = &plan
	}
	return in, nil
}

func loadEntities(ctx context.Context, reader asset.Reader, path string) ([]domain.Entity, error) {
	data, err := readAll(ctx, reader, path)
	if err != nil {
		return nil, fmt.Errorf("登場要素ファイル '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	entities, err := domain.ParseEntities(data)
	if err != nil {
		return nil, fmt.Errorf("登場要素ファイル '%s' の解析に失敗したのだ: %w", path, err)
	}
	return entities, nil
}

func readAll(ctx context.Context, reader asset.Reader, path string) ([]byte, error) {
	rc, err := reader.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
