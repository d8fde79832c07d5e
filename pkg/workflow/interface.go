package workflow

import (
	"context"

	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/pipeline"
)

// Workflow は、章生成の各工程を担う部品を構築するためのインターフェースを定義します。
type Workflow interface {
	BuildOrchestrator(observer pipeline.Observer) (*pipeline.Orchestrator, error)
	BuildReferenceRunner() ReferenceRunner
}

// ReferenceRunner は、エンティティ定義に基づいて設定画を生成し、Seed値を確定する責務を持ちます。
type ReferenceRunner interface {
	Generate(ctx context.Context, entities []domain.Entity) []domain.Entity
}
