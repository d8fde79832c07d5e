// Package llm はテキスト生成・画像理解（ビジョン）サービスの呼び出し口を提供します。
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrImagesUnsupported は画像入力に対応しないプロバイダに画像を渡した場合のエラーです。
var ErrImagesUnsupported = errors.New("このプロバイダは画像入力に対応していません")

// ErrEmptyResponse はモデルが空の応答を返した場合のエラーです。
var ErrEmptyResponse = errors.New("モデルの応答が空です")

// Image はビジョン呼び出しに添付する画像です。
type Image struct {
	Data     []byte
	MimeType string
}

// Request は1回の生成呼び出しの入力です。
type Request struct {
	System      string
	Prompt      string
	Temperature float32 // 0 の場合はプロバイダのデフォルト
	// JSON は構造化出力（JSON）モードを要求します。
	JSON   bool
	Images []Image
}

// Generator はテキスト生成サービスの契約です。ビジョン用途でも同じ契約を使います。
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc は関数を Generator として扱うためのアダプタです。
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// timeoutGenerator は1呼び出しごとにタイムアウトを課します。
type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout は呼び出しごとのタイムアウトを付与した Generator を返します。
// timeout が 0 以下の場合は元の Generator をそのまま返します。
func WithTimeout(g Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return g
	}
	return &timeoutGenerator{next: g, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, req)
}
