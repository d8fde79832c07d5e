package telemetry

import (
	"context"
	"testing"
)

func TestSetup_NoEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test", "  ")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op の終了処理でエラー: %v", err)
	}
}
